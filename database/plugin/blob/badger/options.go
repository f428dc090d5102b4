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
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type BlobStoreBadgerOptionFunc func(*BlobStoreBadger)

// WithLogger sets the logger. Badger's own output is routed through it
func WithLogger(logger *slog.Logger) BlobStoreBadgerOptionFunc {
	return func(d *BlobStoreBadger) {
		d.logger = logger
	}
}

// WithPromRegistry sets the registry for the blob store metrics
func WithPromRegistry(registry prometheus.Registerer) BlobStoreBadgerOptionFunc {
	return func(d *BlobStoreBadger) {
		d.promRegistry = registry
	}
}

// WithDataDir sets the parent directory of the badger files. An empty
// value keeps everything in memory
func WithDataDir(dataDir string) BlobStoreBadgerOptionFunc {
	return func(d *BlobStoreBadger) {
		d.dataDir = dataDir
	}
}

// WithCacheSizes sets the block and index cache sizes in bytes. Zero keeps
// the current value
func WithCacheSizes(block, index uint64) BlobStoreBadgerOptionFunc {
	return func(d *BlobStoreBadger) {
		if block > 0 {
			d.blockCacheSize = block
		}
		if index > 0 {
			d.indexCacheSize = index
		}
	}
}

// WithGc toggles periodic value log garbage collection
func WithGc(enabled bool) BlobStoreBadgerOptionFunc {
	return func(d *BlobStoreBadger) {
		d.gcEnabled = enabled
	}
}
