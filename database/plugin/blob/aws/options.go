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
	"log/slog"
	"time"

	"github.com/blinklabs-io/raffled/database/plugin/blob/internal/storelog"
	"github.com/prometheus/client_golang/prometheus"
)

type BlobStoreS3OptionFunc func(*BlobStoreS3)

func WithLogger(logger *slog.Logger) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.SetLogger(logger)
	}
}

func WithPromRegistry(registry prometheus.Registerer) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.promRegistry = registry
	}
}

// WithBucket sets the bucket holding raffle snapshots and receipts
func WithBucket(bucket string) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.bucket = bucket
	}
}

// WithPrefix places every object under a key prefix so one bucket can
// serve several raffles
func WithPrefix(prefix string) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.prefix = prefix
	}
}

// WithRegion overrides the region from the shared AWS config
func WithRegion(region string) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.region = region
	}
}

// WithTimeout bounds each S3 request
func WithTimeout(timeout time.Duration) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.timeout = timeout
	}
}

// WithEndpoint points the client at an S3-compatible server such as minio
func WithEndpoint(endpoint string) BlobStoreS3OptionFunc {
	return func(d *BlobStoreS3) {
		d.endpoint = endpoint
	}
}

// SetLogger implements plugin.Instrumented
func (d *BlobStoreS3) SetLogger(logger *slog.Logger) {
	d.logger = storelog.New(logger, "s3")
}

// SetPromRegistry implements plugin.Instrumented
func (d *BlobStoreS3) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}
