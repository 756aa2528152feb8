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

package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/ledgerwatch/log/v3"
	"github.com/rs/cors"

	"github.com/zkstack/zkanvil/metrics"
	"github.com/zkstack/zkanvil/node"
)

// DaemonConfig carries the HTTP front-end settings.
type DaemonConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// Daemon owns the rpc server, its HTTP wrapper and the registered
// namespaces.
type Daemon struct {
	cfg    DaemonConfig
	rpcSrv *rpc.Server
	http   *http.Server
	obs    *ObsConfig
	logger log.Logger
}

// NewDaemon registers every namespace against the node's sequencer and
// builds the HTTP stack around the rpc server.
func NewDaemon(cfg DaemonConfig, n *node.Node, logger log.Logger) (*Daemon, error) {
	obs := NewObsConfig()
	base := NewBaseAPI(n.Sequencer(), obs, logger)

	srv := rpc.NewServer()
	anvil := NewAnvilAPI(base)
	for _, api := range []struct {
		namespace string
		service   interface{}
	}{
		{"eth", NewEthAPI(base)},
		{"zks", NewZksAPI(base)},
		{"anvil", anvil},
		{"hardhat", NewHardhatAPI(anvil)},
		{"evm", NewEvmAPI(base)},
		{"debug", NewDebugAPI(base)},
		{"config", NewConfigAPI(base)},
	} {
		if err := srv.RegisterName(api.namespace, api.service); err != nil {
			return nil, fmt.Errorf("register %s namespace: %w", api.namespace, err)
		}
	}

	d := &Daemon{cfg: cfg, rpcSrv: srv, obs: obs, logger: logger}

	router := chi.NewRouter()
	router.Use(cors.New(cors.Options{
		AllowedOrigins: corsOrigins(cfg.CORSOrigins),
		AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)
	router.Use(d.countRequests)
	router.Handle("/metrics", metrics.Handler())
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/*", srv)

	d.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
	}
	return d, nil
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// rpcCall is the subset of the request envelope the metrics middleware
// needs.
type rpcCall struct {
	Method string `json:"method"`
}

// countRequests peeks the request body for the method name, counts it by
// namespace and logs it when request logging is enabled. The body is
// restored before the rpc server sees it.
func (d *Daemon) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
			if err == nil {
				r.Body = io.NopCloser(bytes.NewReader(body))
				for _, method := range decodeMethods(body) {
					namespace, _, found := strings.Cut(method, "_")
					if !found {
						namespace = "unknown"
					}
					metrics.RPCRequests.WithLabelValues(namespace).Inc()
					if d.obs.LoggingEnabled() {
						d.logger.Debug("rpc request", "method", method)
					}
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// decodeMethods handles both single calls and batches.
func decodeMethods(body []byte) []string {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' {
		var batch []rpcCall
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil
		}
		methods := make([]string, 0, len(batch))
		for _, call := range batch {
			if call.Method != "" {
				methods = append(methods, call.Method)
			}
		}
		return methods
	}
	var call rpcCall
	if err := json.Unmarshal(trimmed, &call); err != nil || call.Method == "" {
		return nil
	}
	return []string{call.Method}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (d *Daemon) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", d.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.http.Addr, err)
	}
	d.logger.Info("JSON-RPC server listening", "addr", listener.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- d.http.Serve(listener) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.http.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("http shutdown", "err", err)
		}
		d.rpcSrv.Stop()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// RPCServer exposes the underlying server for in-process clients.
func (d *Daemon) RPCServer() *rpc.Server { return d.rpcSrv }
