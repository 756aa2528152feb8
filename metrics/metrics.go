// Copyright 2025 The zkanvil Authors
// This file is part of zkanvil.
//
// zkanvil is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// zkanvil is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with zkanvil. If not, see <http://www.gnu.org/licenses/>.

// Package metrics declares the node's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BlocksSealed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zkanvil_blocks_sealed_total",
		Help: "Number of blocks sealed since startup.",
	})

	TxExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zkanvil_transactions_executed_total",
		Help: "Number of transactions included in sealed blocks.",
	})

	TxHalted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zkanvil_transactions_halted_total",
		Help: "Number of transactions dropped during validation.",
	})

	ForkRemoteFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zkanvil_fork_remote_fetches_total",
		Help: "Outbound requests issued by the fork backend.",
	})

	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zkanvil_rpc_requests_total",
		Help: "JSON-RPC requests served, by method prefix.",
	}, []string{"namespace"})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
