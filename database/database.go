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

package database

import (
	"errors"
	"io"
	"log/slog"

	"github.com/blinklabs-io/raffled/database/plugin"
	"github.com/blinklabs-io/raffled/database/plugin/blob"
	"github.com/blinklabs-io/raffled/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// Config holds the storage plugin selection
type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	BlobPlugin     string
	MetadataPlugin string
	// DataDir is passed to plugins that store data locally. An empty value
	// keeps everything in memory
	DataDir string
}

// Database pairs a blob store holding raffle snapshots and draw receipts with
// a metadata store holding the queryable raffle history
type Database struct {
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	config   Config
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// Config returns the config object used for the database instance
func (d *Database) Config() Config {
	return d.config
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

// init verifies that both stores saw the same last commit
func (d *Database) init() error {
	return d.checkCommitTimestamp()
}

// New creates a new database instance using the configured storage plugins
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	cfg := *config
	if cfg.BlobPlugin == "" {
		cfg.BlobPlugin = DefaultBlobPlugin
	}
	if cfg.MetadataPlugin == "" {
		cfg.MetadataPlugin = DefaultMetadataPlugin
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	// Plugins without a data-dir option ignore this
	if err := plugin.SetPluginOption(plugin.PluginTypeBlob, cfg.BlobPlugin, "data-dir", cfg.DataDir); err != nil {
		return nil, err
	}
	if err := plugin.SetPluginOption(plugin.PluginTypeMetadata, cfg.MetadataPlugin, "data-dir", cfg.DataDir); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	metadataDb, err := metadata.New(cfg.MetadataPlugin, logger, cfg.PromRegistry)
	if err != nil {
		return nil, err
	}
	blobDb, err := blob.New(cfg.BlobPlugin, logger, cfg.PromRegistry)
	if err != nil {
		_ = metadataDb.Close()
		return nil, err
	}
	db := &Database{
		logger:   logger,
		blob:     blobDb,
		metadata: metadataDb,
		config:   cfg,
	}
	if err := db.init(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}
