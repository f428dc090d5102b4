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

package sqlite

import (
	"sync"

	"github.com/blinklabs-io/raffled/database/plugin"
)

// DefaultDataDir matches the badger blob plugin so both stores share a directory
const DefaultDataDir = ".raffled"

var pluginOptions = struct {
	sync.RWMutex
	dataDir string
}{
	dataDir: DefaultDataDir,
}

func init() {
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeMetadata,
		Name:               "sqlite",
		Description:        "embedded SQLite database",
		NewFromOptionsFunc: newFromPluginOptions,
		Options: []plugin.PluginOption{
			{
				Name:         "data-dir",
				Type:         plugin.PluginOptionTypeString,
				Description:  "directory holding the SQLite file",
				DefaultValue: DefaultDataDir,
				Dest:         &pluginOptions.dataDir,
			},
		},
	})
}

func newFromPluginOptions() plugin.Plugin {
	pluginOptions.RLock()
	defer pluginOptions.RUnlock()
	store, err := NewWithOptions(WithDataDir(pluginOptions.dataDir))
	if err != nil {
		return plugin.NewErrorPlugin(err)
	}
	return store
}
