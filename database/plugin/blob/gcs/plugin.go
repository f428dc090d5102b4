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

package gcs

import (
	"sync"

	"github.com/blinklabs-io/raffled/database/plugin"
)

var pluginOptions struct {
	sync.RWMutex
	bucket          string
	prefix          string
	credentialsFile string
}

func init() {
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               "gcs",
		Description:        "Google Cloud Storage bucket",
		NewFromOptionsFunc: newFromPluginOptions,
		Options: []plugin.PluginOption{
			{
				Name:        "bucket",
				Type:        plugin.PluginOptionTypeString,
				Description: "bucket name",
				Dest:        &pluginOptions.bucket,
			},
			{
				Name:        "prefix",
				Type:        plugin.PluginOptionTypeString,
				Description: "object name prefix within the bucket",
				Dest:        &pluginOptions.prefix,
			},
			{
				Name:        "credentials-file",
				Type:        plugin.PluginOptionTypeString,
				Description: "service account key file",
				Dest:        &pluginOptions.credentialsFile,
			},
		},
	})
}

func newFromPluginOptions() plugin.Plugin {
	pluginOptions.RLock()
	defer pluginOptions.RUnlock()
	store, err := NewWithOptions(
		WithBucket(pluginOptions.bucket),
		WithPrefix(pluginOptions.prefix),
		WithCredentialsFile(pluginOptions.credentialsFile),
	)
	if err != nil {
		return plugin.NewErrorPlugin(err)
	}
	return store
}
