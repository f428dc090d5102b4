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

package badger

import (
	"sync"

	"github.com/blinklabs-io/raffled/database/plugin"
)

// Raffle snapshots and receipts are a few hundred bytes each, so the
// caches and tables are sized well below the badger defaults
const (
	DefaultBlockCacheSize = 64 << 20
	DefaultIndexCacheSize = 32 << 20
	DefaultDataDir        = ".raffled"

	valueLogFileSize = 256 << 20
	memTableSize     = 32 << 20
	valueThreshold   = 1 << 10
)

// pluginOptions receives values from the command line, environment and
// config file before the plugin is instantiated
var pluginOptions = struct {
	sync.RWMutex
	dataDir        string
	blockCacheSize uint64
	indexCacheSize uint64
	gc             bool
}{
	dataDir:        DefaultDataDir,
	blockCacheSize: DefaultBlockCacheSize,
	indexCacheSize: DefaultIndexCacheSize,
	gc:             true,
}

func init() {
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               "badger",
		Description:        "embedded BadgerDB store for raffle snapshots and receipts",
		NewFromOptionsFunc: newFromPluginOptions,
		Options: []plugin.PluginOption{
			{
				Name:         "data-dir",
				Type:         plugin.PluginOptionTypeString,
				Description:  "directory holding the badger files",
				DefaultValue: DefaultDataDir,
				Dest:         &pluginOptions.dataDir,
			},
			{
				Name:         "block-cache-size",
				Type:         plugin.PluginOptionTypeUint,
				Description:  "block cache size in bytes",
				DefaultValue: uint64(DefaultBlockCacheSize),
				Dest:         &pluginOptions.blockCacheSize,
			},
			{
				Name:         "index-cache-size",
				Type:         plugin.PluginOptionTypeUint,
				Description:  "index cache size in bytes",
				DefaultValue: uint64(DefaultIndexCacheSize),
				Dest:         &pluginOptions.indexCacheSize,
			},
			{
				Name:         "gc",
				Type:         plugin.PluginOptionTypeBool,
				Description:  "run value log garbage collection",
				DefaultValue: true,
				Dest:         &pluginOptions.gc,
			},
		},
	})
}

func newFromPluginOptions() plugin.Plugin {
	pluginOptions.RLock()
	defer pluginOptions.RUnlock()
	return NewWithOptions(
		WithDataDir(pluginOptions.dataDir),
		WithCacheSizes(pluginOptions.blockCacheSize, pluginOptions.indexCacheSize),
		WithGc(pluginOptions.gc),
	)
}
