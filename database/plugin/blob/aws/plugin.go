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

package aws

import (
	"sync"
	"time"

	"github.com/blinklabs-io/raffled/database/plugin"
)

// DefaultTimeoutSeconds bounds each S3 request when no timeout is set
const DefaultTimeoutSeconds = 60

var pluginOptions = struct {
	sync.RWMutex
	endpoint string
	bucket   string
	prefix   string
	region   string
	timeout  int
}{
	timeout: DefaultTimeoutSeconds,
}

func init() {
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               "s3",
		Description:        "AWS S3 or S3-compatible bucket",
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
				Description: "object key prefix within the bucket",
				Dest:        &pluginOptions.prefix,
			},
			{
				Name:        "region",
				Type:        plugin.PluginOptionTypeString,
				Description: "AWS region",
				Dest:        &pluginOptions.region,
			},
			{
				Name:        "endpoint",
				Type:        plugin.PluginOptionTypeString,
				Description: "custom endpoint for S3-compatible servers",
				Dest:        &pluginOptions.endpoint,
			},
			{
				Name:         "timeout",
				Type:         plugin.PluginOptionTypeInt,
				Description:  "per-request timeout in seconds",
				DefaultValue: DefaultTimeoutSeconds,
				Dest:         &pluginOptions.timeout,
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
		WithRegion(pluginOptions.region),
		WithEndpoint(pluginOptions.endpoint),
		WithTimeout(time.Duration(pluginOptions.timeout)*time.Second),
	)
	if err != nil {
		return plugin.NewErrorPlugin(err)
	}
	return store
}
