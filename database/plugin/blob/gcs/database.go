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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/blinklabs-io/raffled/database/plugin/blob/internal/objectstore"
	"github.com/blinklabs-io/raffled/database/plugin/blob/internal/storelog"
	"github.com/blinklabs-io/raffled/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultOpTimeout = 60 * time.Second

// BlobStoreGCS stores data in a Google Cloud Storage bucket.
type BlobStoreGCS struct {
	promRegistry    prometheus.Registerer
	logger          *storelog.Logger
	client          *storage.Client
	bucket          *storage.BucketHandle
	metrics         *blobMetrics
	bucketName      string
	prefix          string
	credentialsFile string
}

// New creates a new GCS-backed blob store from "gcs://bucket[/prefix]"
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreGCS, error) {
	const prefix = "gcs://"
	var bucketName, keyPrefix string
	if after, ok := strings.CutPrefix(dataDir, prefix); ok {
		bucketName, keyPrefix, _ = strings.Cut(after, "/")
	}
	if bucketName == "" {
		return nil, errors.New(
			"gcs blob: bucket not set (expected dataDir='gcs://<bucket>')",
		)
	}
	return NewWithOptions(
		WithBucket(bucketName),
		WithPrefix(keyPrefix),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a new GCS-backed blob store using options.
func NewWithOptions(opts ...BlobStoreGCSOptionFunc) (*BlobStoreGCS, error) {
	db := &BlobStoreGCS{}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.SetLogger(nil)
	}
	db.prefix = strings.Trim(db.prefix, "/")
	if db.prefix != "" {
		db.prefix += "/"
	}
	return db, nil
}

// ValidateCredentials checks that a configured credentials file exists
func ValidateCredentials(credentialsFile string) error {
	if credentialsFile == "" {
		return nil
	}
	if _, err := os.Stat(credentialsFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf(
				"GCS credentials file does not exist: %s",
				credentialsFile,
			)
		}
		return fmt.Errorf("failed to read GCS credentials file: %w", err)
	}
	return nil
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultOpTimeout)
}

// Close closes the GCS client.
func (d *BlobStoreGCS) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	d.bucket = nil
	return err
}

// Client returns the GCS client.
func (d *BlobStoreGCS) Client() *storage.Client {
	return d.client
}

// Bucket returns the bucket handle.
func (d *BlobStoreGCS) Bucket() *storage.BucketHandle {
	return d.bucket
}

func (d *BlobStoreGCS) objectKey(key []byte) string {
	return objectstore.EncodeKey(d.prefix, key)
}

// NewTransaction returns a transaction handle. GCS writes are not
// transactional
func (d *BlobStoreGCS) NewTransaction(readWrite bool) types.Txn {
	return objectstore.NewTxn(d, readWrite)
}

func (d *BlobStoreGCS) validateTxn(txn types.Txn, write bool) error {
	if err := objectstore.CheckTxn(txn, d, write); err != nil {
		return err
	}
	if d.bucket == nil {
		return types.ErrBlobStoreUnavailable
	}
	return nil
}

// Get retrieves a value from GCS within a transaction
func (d *BlobStoreGCS) Get(txn types.Txn, key []byte) ([]byte, error) {
	if err := d.validateTxn(txn, false); err != nil {
		return nil, err
	}
	ctx, cancel := opContext()
	defer cancel()
	r, err := d.bucket.Object(d.objectKey(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, types.ErrBlobKeyNotFound
		}
		d.logger.Errorf("gcs get %x failed: %v", key, err)
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		d.logger.Errorf("gcs read %x failed: %v", key, err)
		return nil, err
	}
	d.metrics.observe(opGet, len(data))
	return data, nil
}

// Set stores a key-value pair in GCS within a transaction
func (d *BlobStoreGCS) Set(txn types.Txn, key, val []byte) error {
	if err := d.validateTxn(txn, true); err != nil {
		return err
	}
	ctx, cancel := opContext()
	defer cancel()
	w := d.bucket.Object(d.objectKey(key)).NewWriter(ctx)
	if _, err := w.Write(val); err != nil {
		_ = w.Close()
		d.logger.Errorf("gcs write %x failed: %v", key, err)
		return err
	}
	if err := w.Close(); err != nil {
		d.logger.Errorf("gcs close writer %x failed: %v", key, err)
		return err
	}
	d.metrics.observe(opSet, len(val))
	return nil
}

// Delete removes a key from GCS within a transaction
func (d *BlobStoreGCS) Delete(txn types.Txn, key []byte) error {
	if err := d.validateTxn(txn, true); err != nil {
		return err
	}
	ctx, cancel := opContext()
	defer cancel()
	if err := d.bucket.Object(d.objectKey(key)).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return types.ErrBlobKeyNotFound
		}
		d.logger.Errorf("gcs delete %x failed: %v", key, err)
		return err
	}
	d.metrics.observe(opDelete, 0)
	return nil
}

// NewIterator lists the matching keys up front and fetches values lazily
func (d *BlobStoreGCS) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	if err := d.validateTxn(txn, false); err != nil {
		return objectstore.NewErrorIterator(err)
	}
	keys, err := d.listKeys(opts.Prefix)
	if err != nil {
		d.logger.Errorf("gcs list failed: %v", err)
	}
	return objectstore.NewIterator(d.Get, txn, keys, opts.Reverse, err)
}

func (d *BlobStoreGCS) listKeys(prefix []byte) ([][]byte, error) {
	ctx, cancel := opContext()
	defer cancel()
	it := d.bucket.Objects(ctx, &storage.Query{Prefix: d.objectKey(prefix)})
	var keys [][]byte
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		key, err := objectstore.DecodeKey(d.prefix, attrs.Name)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Start implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Start() error {
	if d.bucketName == "" {
		return errors.New("gcs blob: bucket not set")
	}
	if err := ValidateCredentials(d.credentialsFile); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	clientOpts := []option.ClientOption{storage.WithDisabledClientMetrics()}
	if d.credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(d.credentialsFile),
		)
	}
	client, err := storage.NewGRPCClient(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf(
			"gcs blob: failed in creating storage client: %w",
			err,
		)
	}
	d.client = client
	d.bucket = client.Bucket(d.bucketName)
	d.metrics = newBlobMetrics(d.promRegistry)
	return nil
}

// Stop implements the plugin.Plugin interface.
func (d *BlobStoreGCS) Stop() error {
	return d.Close()
}
