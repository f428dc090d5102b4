// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type Plugin interface {
	Start() error
	Stop() error
}

// Instrumented is implemented by plugins that accept the process logger and
// metrics registry. Both are applied before Start
type Instrumented interface {
	SetLogger(*slog.Logger)
	SetPromRegistry(prometheus.Registerer)
}

type startOptions struct {
	logger       *slog.Logger
	promRegistry prometheus.Registerer
}

type StartOptionFunc func(*startOptions)

// WithLogger passes a logger to instrumented plugins
func WithLogger(logger *slog.Logger) StartOptionFunc {
	return func(o *startOptions) {
		o.logger = logger
	}
}

// WithPromRegistry passes a metrics registry to instrumented plugins
func WithPromRegistry(registry prometheus.Registerer) StartOptionFunc {
	return func(o *startOptions) {
		o.promRegistry = registry
	}
}

// ErrorPlugin is a plugin that always returns an error on Start()
type ErrorPlugin struct {
	Err error
}

func (e *ErrorPlugin) Start() error {
	return e.Err
}

func (e *ErrorPlugin) Stop() error {
	return nil
}

// NewErrorPlugin creates a new error plugin that returns the given error on Start()
func NewErrorPlugin(err error) Plugin {
	return &ErrorPlugin{Err: err}
}

// StartPlugin gets a plugin from the registry and starts it
func StartPlugin(
	pluginType PluginType,
	pluginName string,
	opts ...StartOptionFunc,
) (Plugin, error) {
	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}
	p := GetPlugin(pluginType, pluginName)
	if p == nil {
		return nil, fmt.Errorf(
			"%s plugin '%s' not found",
			PluginTypeName(pluginType),
			pluginName,
		)
	}
	if inst, ok := p.(Instrumented); ok {
		if o.logger != nil {
			inst.SetLogger(o.logger)
		}
		if o.promRegistry != nil {
			inst.SetPromRegistry(o.promRegistry)
		}
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf(
			"failed to start %s plugin '%s': %w",
			PluginTypeName(pluginType),
			pluginName,
			err,
		)
	}
	return p, nil
}

// SetPluginOption sets the value of a named option for a plugin entry, for
// example to point a storage plugin at the configured data directory before it
// is started. Unknown options are ignored so callers can set options that only
// some plugins define.
// NOTE: This writes directly into the plugin option destinations and must only
// be called during initialization, before any plugin is instantiated.
func SetPluginOption(
	pluginType PluginType,
	pluginName string,
	optionName string,
	value any,
) error {
	entry := findEntry(pluginType, pluginName)
	if entry == nil {
		return fmt.Errorf(
			"plugin %s of type %s not found",
			pluginName,
			PluginTypeName(pluginType),
		)
	}
	for _, opt := range entry.Options {
		if opt.Name == optionName {
			return opt.setValue(value)
		}
	}
	return nil
}
