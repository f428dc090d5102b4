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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/blinklabs-io/raffled/database/plugin/blob/internal/objectstore"
	"github.com/blinklabs-io/raffled/database/plugin/blob/internal/storelog"
	"github.com/blinklabs-io/raffled/database/types"
	"github.com/prometheus/client_golang/prometheus"
)

// BlobStoreS3 stores data in an AWS S3 bucket
type BlobStoreS3 struct {
	promRegistry prometheus.Registerer
	logger       *storelog.Logger
	client       *s3.Client
	metrics      *blobMetrics
	bucket       string
	prefix       string
	region       string
	endpoint     string
	timeout      time.Duration
}

// New creates a new S3-backed blob store and dataDir must be "s3://bucket" or "s3://bucket/prefix"
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*BlobStoreS3, error) {
	const prefix = "s3://"
	if !strings.HasPrefix(dataDir, prefix) {
		return nil, errors.New(
			"s3 blob: expected dataDir='s3://<bucket>[/prefix]'",
		)
	}
	path := strings.TrimPrefix(dataDir, prefix)
	bucket, keyPrefix, _ := strings.Cut(path, "/")
	if bucket == "" {
		return nil, errors.New("s3 blob: bucket not set")
	}
	return NewWithOptions(
		WithBucket(bucket),
		WithPrefix(keyPrefix),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

// NewWithOptions creates a new S3-backed blob store using options.
func NewWithOptions(opts ...BlobStoreS3OptionFunc) (*BlobStoreS3, error) {
	db := &BlobStoreS3{}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		db.SetLogger(nil)
	}
	db.prefix = normalizePrefix(db.prefix)
	return db, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (d *BlobStoreS3) opContext() (context.Context, context.CancelFunc) {
	timeout := d.timeout
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Close implements the BlobStore interface.
func (d *BlobStoreS3) Close() error {
	return d.Stop()
}

// NewTransaction returns a transaction handle. S3 writes are not
// transactional
func (d *BlobStoreS3) NewTransaction(readWrite bool) types.Txn {
	return objectstore.NewTxn(d, readWrite)
}

func (d *BlobStoreS3) validateTxn(txn types.Txn, write bool) error {
	if err := objectstore.CheckTxn(txn, d, write); err != nil {
		return err
	}
	if d.client == nil {
		return types.ErrBlobStoreUnavailable
	}
	return nil
}

// Get retrieves a value from S3 within a transaction
func (d *BlobStoreS3) Get(txn types.Txn, key []byte) ([]byte, error) {
	if err := d.validateTxn(txn, false); err != nil {
		return nil, err
	}
	ctx, cancel := d.opContext()
	defer cancel()
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, types.ErrBlobKeyNotFound
		}
		d.logger.Errorf("s3 get %x failed: %v", key, err)
		return nil, err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		d.logger.Errorf("s3 read %x failed: %v", key, err)
		return nil, err
	}
	d.metrics.observe(opGet, len(data))
	d.logger.Debugf("s3 get %x ok (%d bytes)", key, len(data))
	return data, nil
}

// Set stores a key-value pair in S3 within a transaction
func (d *BlobStoreS3) Set(txn types.Txn, key, val []byte) error {
	if err := d.validateTxn(txn, true); err != nil {
		return err
	}
	ctx, cancel := d.opContext()
	defer cancel()
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(key)),
		Body:   bytes.NewReader(val),
	})
	if err != nil {
		d.logger.Errorf("s3 put %x failed: %v", key, err)
		return err
	}
	d.metrics.observe(opSet, len(val))
	d.logger.Debugf("s3 put %x ok (%d bytes)", key, len(val))
	return nil
}

// Delete removes a key from S3 within a transaction
func (d *BlobStoreS3) Delete(txn types.Txn, key []byte) error {
	if err := d.validateTxn(txn, true); err != nil {
		return err
	}
	ctx, cancel := d.opContext()
	defer cancel()
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.objectKey(key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return types.ErrBlobKeyNotFound
		}
		d.logger.Errorf("s3 delete %x failed: %v", key, err)
		return err
	}
	d.metrics.observe(opDelete, 0)
	return nil
}

// NewIterator lists the matching keys up front and fetches values lazily
func (d *BlobStoreS3) NewIterator(
	txn types.Txn,
	opts types.BlobIteratorOptions,
) types.BlobIterator {
	if err := d.validateTxn(txn, false); err != nil {
		return objectstore.NewErrorIterator(err)
	}
	keys, err := d.listKeys(opts.Prefix)
	if err != nil {
		d.logger.Errorf("s3 list failed: %v", err)
	}
	return objectstore.NewIterator(d.Get, txn, keys, opts.Reverse, err)
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

func (d *BlobStoreS3) listKeys(prefix []byte) ([][]byte, error) {
	ctx, cancel := d.opContext()
	defer cancel()
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(d.objectKey(prefix)),
	}
	paginator := s3.NewListObjectsV2Paginator(d.client, input)
	var keys [][]byte
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key, err := objectstore.DecodeKey(d.prefix, aws.ToString(obj.Key))
			if err != nil {
				// Not one of ours
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Client returns the S3 client.
func (d *BlobStoreS3) Client() *s3.Client {
	return d.client
}

// Bucket returns the bucket name.
func (d *BlobStoreS3) Bucket() string {
	return d.bucket
}

func (d *BlobStoreS3) objectKey(key []byte) string {
	return objectstore.EncodeKey(d.prefix, key)
}

// Start implements the plugin.Plugin interface.
func (d *BlobStoreS3) Start() error {
	if d.bucket == "" {
		return errors.New("s3 blob: bucket not set")
	}
	ctx, cancel := d.opContext()
	defer cancel()
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("s3 blob: load default AWS config: %w", err)
	}
	if d.region != "" {
		awsCfg.Region = d.region
	}
	d.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if d.endpoint != "" {
			o.BaseEndpoint = aws.String(d.endpoint)
			// S3-compatible servers such as minio want path-style requests
			o.UsePathStyle = true
		}
	})
	d.metrics = newBlobMetrics(d.promRegistry)
	return nil
}

// Stop implements the plugin.Plugin interface.
func (d *BlobStoreS3) Stop() error {
	// S3 client doesn't need explicit closing
	return nil
}
