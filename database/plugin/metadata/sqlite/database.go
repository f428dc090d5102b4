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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/raffled/database/plugin/metadata/internal/gormstore"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	vacuumInterval = 24 * time.Hour
	dbFileName     = "metadata.sqlite"
	// WAL journal, wait up to 5s on locks, 50MB page cache
	fileParams = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=cache_size(-50000)"
)

// memoryDbCounter gives each in-memory store its own database
var memoryDbCounter atomic.Uint64

// MetadataStoreSqlite keeps raffle entries, requests and draws in a SQLite
// file, or in memory when no data directory is set
type MetadataStoreSqlite struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	vacuumStop   chan struct{}
	dataDir      string
	vacuumWg     sync.WaitGroup
}

// New creates and opens a SQLite metadata store
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStoreSqlite, error) {
	d, err := NewWithOptions(
		WithDataDir(dataDir),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
	if err != nil {
		return nil, err
	}
	if err := d.Start(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithOptions creates a SQLite metadata store. The database is opened by Start
func NewWithOptions(opts ...SqliteOptionFunc) (*MetadataStoreSqlite, error) {
	d := &MetadataStoreSqlite{}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return d, nil
}

func (d *MetadataStoreSqlite) open() (*gorm.DB, error) {
	if d.dataDir != "" {
		if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		path := filepath.Join(d.dataDir, dbFileName)
		return gorm.Open(
			sqlite.Open("file:"+path+"?"+fileParams),
			gormstore.GormConfig(false),
		)
	}
	// cache=shared lets every pooled connection see the same named database
	dsn := fmt.Sprintf(
		"file:raffled-%d?mode=memory&cache=shared",
		memoryDbCounter.Add(1),
	)
	db, err := gorm.Open(sqlite.Open(dsn), gormstore.GormConfig(false))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Shared-cache databases lock whole tables
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreSqlite) Start() error {
	db, err := d.open()
	if err != nil {
		return err
	}
	d.Store, err = gormstore.Open(db, d.logger)
	if err != nil {
		_ = d.Store.Close()
		d.Store = nil
		return err
	}
	d.RegisterMetrics(d.promRegistry)
	if d.dataDir != "" {
		d.vacuumStop = make(chan struct{})
		d.vacuumWg.Add(1)
		go d.vacuumLoop(d.vacuumStop)
	}
	return nil
}

// vacuumLoop reclaims space left behind by deleted rows once a day
func (d *MetadataStoreSqlite) vacuumLoop(stop <-chan struct{}) {
	defer d.vacuumWg.Done()
	ticker := time.NewTicker(vacuumInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.logger.Debug("vacuuming metadata database", "component", "database")
			if err := d.DB().Exec("VACUUM").Error; err != nil {
				d.logger.Error(
					"metadata vacuum failed",
					"component", "database",
					"error", err,
				)
			}
		case <-stop:
			return
		}
	}
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreSqlite) Stop() error {
	return d.Close()
}

// Close waits for a running vacuum and closes the database
func (d *MetadataStoreSqlite) Close() error {
	if d.vacuumStop != nil {
		close(d.vacuumStop)
		d.vacuumStop = nil
		d.vacuumWg.Wait()
	}
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}
