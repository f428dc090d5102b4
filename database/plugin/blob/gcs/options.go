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
	"log/slog"

	"github.com/blinklabs-io/raffled/database/plugin/blob/internal/storelog"
	"github.com/prometheus/client_golang/prometheus"
)

type BlobStoreGCSOptionFunc func(*BlobStoreGCS)

func WithLogger(logger *slog.Logger) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.SetLogger(logger)
	}
}

func WithPromRegistry(registry prometheus.Registerer) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.promRegistry = registry
	}
}

// WithBucket sets the bucket holding raffle snapshots and receipts
func WithBucket(bucket string) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.bucketName = bucket
	}
}

// WithPrefix places every object under a name prefix
func WithPrefix(prefix string) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.prefix = prefix
	}
}

// WithCredentialsFile uses a service account key instead of application
// default credentials
func WithCredentialsFile(path string) BlobStoreGCSOptionFunc {
	return func(d *BlobStoreGCS) {
		d.credentialsFile = path
	}
}

// SetLogger implements plugin.Instrumented
func (d *BlobStoreGCS) SetLogger(logger *slog.Logger) {
	d.logger = storelog.New(logger, "gcs")
}

// SetPromRegistry implements plugin.Instrumented
func (d *BlobStoreGCS) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}
