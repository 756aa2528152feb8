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
	"context"
	"sync/atomic"
)

// ObsConfig is the shared observability configuration toggled at runtime
// through the config_ namespace. The daemon's request logger and the debug
// tracers read it on every request, so all fields are atomics.
type ObsConfig struct {
	loggingEnabled  atomic.Bool
	showCalls       atomic.Bool
	showOutputs     atomic.Bool
	showStorageLogs atomic.Bool
	showGasDetails  atomic.Bool
	resolveHashes   atomic.Bool
}

// NewObsConfig starts with request logging on and the verbose trace
// channels off.
func NewObsConfig() *ObsConfig {
	c := &ObsConfig{}
	c.loggingEnabled.Store(true)
	return c
}

func (c *ObsConfig) LoggingEnabled() bool  { return c.loggingEnabled.Load() }
func (c *ObsConfig) ShowCalls() bool       { return c.showCalls.Load() }
func (c *ObsConfig) ShowOutputs() bool     { return c.showOutputs.Load() }
func (c *ObsConfig) ShowStorageLogs() bool { return c.showStorageLogs.Load() }
func (c *ObsConfig) ShowGasDetails() bool  { return c.showGasDetails.Load() }
func (c *ObsConfig) ResolveHashes() bool   { return c.resolveHashes.Load() }

func (c *ObsConfig) SetLoggingEnabled(on bool) { c.loggingEnabled.Store(on) }

// ConfigAPI controls trace and log verbosity at runtime.
type ConfigAPI interface {
	SetShowCalls(ctx context.Context, on bool) (bool, error)
	GetShowCalls(ctx context.Context) (bool, error)
	SetShowOutputs(ctx context.Context, on bool) (bool, error)
	GetShowOutputs(ctx context.Context) (bool, error)
	SetShowStorageLogs(ctx context.Context, on bool) (bool, error)
	GetShowStorageLogs(ctx context.Context) (bool, error)
	SetShowGasDetails(ctx context.Context, on bool) (bool, error)
	GetShowGasDetails(ctx context.Context) (bool, error)
	SetResolveHashes(ctx context.Context, on bool) (bool, error)
	GetResolveHashes(ctx context.Context) (bool, error)
}

// ConfigAPIImpl is implementation of the ConfigAPI interface.
type ConfigAPIImpl struct {
	*BaseAPI
}

// NewConfigAPI returns ConfigAPIImpl instance.
func NewConfigAPI(base *BaseAPI) *ConfigAPIImpl {
	return &ConfigAPIImpl{BaseAPI: base}
}

func (api *ConfigAPIImpl) SetShowCalls(_ context.Context, on bool) (bool, error) {
	api.obs.showCalls.Store(on)
	api.logger.Info("config updated", "showCalls", on)
	return on, nil
}

func (api *ConfigAPIImpl) GetShowCalls(_ context.Context) (bool, error) {
	return api.obs.ShowCalls(), nil
}

func (api *ConfigAPIImpl) SetShowOutputs(_ context.Context, on bool) (bool, error) {
	api.obs.showOutputs.Store(on)
	api.logger.Info("config updated", "showOutputs", on)
	return on, nil
}

func (api *ConfigAPIImpl) GetShowOutputs(_ context.Context) (bool, error) {
	return api.obs.ShowOutputs(), nil
}

func (api *ConfigAPIImpl) SetShowStorageLogs(_ context.Context, on bool) (bool, error) {
	api.obs.showStorageLogs.Store(on)
	api.logger.Info("config updated", "showStorageLogs", on)
	return on, nil
}

func (api *ConfigAPIImpl) GetShowStorageLogs(_ context.Context) (bool, error) {
	return api.obs.ShowStorageLogs(), nil
}

func (api *ConfigAPIImpl) SetShowGasDetails(_ context.Context, on bool) (bool, error) {
	api.obs.showGasDetails.Store(on)
	api.logger.Info("config updated", "showGasDetails", on)
	return on, nil
}

func (api *ConfigAPIImpl) GetShowGasDetails(_ context.Context) (bool, error) {
	return api.obs.ShowGasDetails(), nil
}

func (api *ConfigAPIImpl) SetResolveHashes(_ context.Context, on bool) (bool, error) {
	api.obs.resolveHashes.Store(on)
	api.logger.Info("config updated", "resolveHashes", on)
	return on, nil
}

func (api *ConfigAPIImpl) GetResolveHashes(_ context.Context) (bool, error) {
	return api.obs.ResolveHashes(), nil
}
