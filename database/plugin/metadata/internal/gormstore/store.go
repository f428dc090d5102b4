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

// Package gormstore implements the metadata store queries shared by the SQL
// plugins. Each plugin opens its own dialect and embeds a Store.
package gormstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/raffled/database/models"
	"github.com/blinklabs-io/raffled/database/types"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Txn wraps a gorm transaction and implements types.Txn
type Txn struct {
	db       *gorm.DB
	beginErr error
	finished bool
}

func newTxn(db *gorm.DB) *Txn {
	return &Txn{db: db}
}

func newFailedTxn(err error) *Txn {
	return &Txn{beginErr: err}
}

func (t *Txn) Commit() error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if t.finished {
		return nil
	}
	if t.db == nil {
		t.finished = true
		return nil
	}
	if result := t.db.Commit(); result.Error != nil {
		return result.Error
	}
	t.finished = true
	return nil
}

func (t *Txn) Rollback() error {
	if t.beginErr != nil {
		return t.beginErr
	}
	if t.finished {
		return nil
	}
	if t.db != nil {
		if result := t.db.Rollback(); result.Error != nil {
			return result.Error
		}
	}
	t.finished = true
	return nil
}

// Store holds the gorm handle for an opened metadata database
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open configures tracing on db and creates the table schemas
func Open(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		// Create logger to throw away logs
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Store{db: db, logger: logger}
	// Configure tracing for GORM
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return s, err
	}
	if err := s.AutoMigrate(&CommitTimestamp{}); err != nil {
		return s, err
	}
	if err := s.AutoMigrate(models.MigrateModels...); err != nil {
		return s, err
	}
	return s, nil
}

// AutoMigrate creates or updates database schema for the given models.
func (s *Store) AutoMigrate(dst ...any) error {
	for _, model := range dst {
		s.logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := s.db.AutoMigrate(model); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the underlying GORM database handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}

// Transaction begins a new database transaction. A failure to begin is
// reported by Commit and Rollback
func (s *Store) Transaction() types.Txn {
	db := s.db.Begin()
	if db.Error != nil {
		s.logger.Error(
			"failed to begin transaction",
			"component", "database",
			"error", db.Error,
		)
		return newFailedTxn(db.Error)
	}
	return newTxn(db)
}

// resolveDB returns the gorm handle for txn, or the base handle for a nil txn
func (s *Store) resolveDB(txn types.Txn) (*gorm.DB, error) {
	if txn == nil {
		return s.db, nil
	}
	t, ok := txn.(*Txn)
	if !ok {
		return nil, types.ErrTxnWrongType
	}
	if t.beginErr != nil {
		return nil, t.beginErr
	}
	if t.finished {
		return nil, errors.New("transaction already finished")
	}
	if t.db == nil {
		return s.db, nil
	}
	return t.db, nil
}
