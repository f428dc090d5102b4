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

package postgres

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blinklabs-io/raffled/database/plugin/metadata/internal/gormstore"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
)

var serverDefaults = gormstore.Server{
	Host:     "localhost",
	Port:     5432,
	User:     "postgres",
	Database: "postgres",
	SSLMode:  "disable",
	TimeZone: "UTC",
}

// MetadataStorePostgres keeps raffle entries, requests and draws in Postgres
type MetadataStorePostgres struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	server       gormstore.Server
}

// New creates a Postgres metadata store. The connection is opened by Start
func New(
	host string,
	port uint,
	user string,
	password string,
	database string,
	sslMode string,
	timeZone string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (*MetadataStorePostgres, error) {
	return NewWithOptions(
		WithServer(gormstore.Server{
			Host:     host,
			Port:     port,
			User:     user,
			Password: password,
			Database: database,
			SSLMode:  sslMode,
			TimeZone: timeZone,
		}),
		WithLogger(logger),
		WithPromRegistry(promRegistry),
	)
}

func NewWithOptions(opts ...PostgresOptionFunc) (*MetadataStorePostgres, error) {
	d := &MetadataStorePostgres{}
	for _, opt := range opts {
		opt(d)
	}
	d.server = d.server.WithDefaults(serverDefaults)
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return d, nil
}

// DSN returns the keyword/value connection string used by Start
func (d *MetadataStorePostgres) DSN() string {
	if dsn := strings.TrimSpace(d.server.DSN); dsn != "" {
		return dsn
	}
	s := d.server
	dsn := "host=" + s.Host +
		" user=" + s.User +
		" password=" + s.Password +
		" dbname=" + s.Database +
		" port=" + strconv.FormatUint(uint64(s.Port), 10) +
		" sslmode=" + s.SSLMode
	if s.TimeZone != "" {
		dsn += " TimeZone=" + s.TimeZone
	}
	return dsn
}

// Start implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Start() error {
	db, err := gormstore.OpenServer(postgres.Open(d.DSN()))
	if err != nil {
		return err
	}
	d.logger.Info(
		"connected to postgres",
		"component", "database",
		"host", d.server.Host,
		"database", d.server.Database,
	)
	// The store is kept on error so Close can release the connection
	d.Store, err = gormstore.Open(db, d.logger)
	if err != nil {
		return err
	}
	d.RegisterMetrics(d.promRegistry)
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStorePostgres) Stop() error {
	return d.Close()
}

func (d *MetadataStorePostgres) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}
