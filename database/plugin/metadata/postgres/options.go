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
	"log/slog"

	"github.com/blinklabs-io/raffled/database/plugin/metadata/internal/gormstore"
	"github.com/prometheus/client_golang/prometheus"
)

type PostgresOptionFunc func(*MetadataStorePostgres)

func WithLogger(logger *slog.Logger) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) {
		d.SetLogger(logger)
	}
}

func WithPromRegistry(registry prometheus.Registerer) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) {
		d.promRegistry = registry
	}
}

// WithServer replaces all connection settings. Unset fields take the
// Postgres defaults
func WithServer(server gormstore.Server) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) {
		d.server = server
	}
}

func WithHost(host string) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) { d.server.Host = host }
}

func WithPort(port uint) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) { d.server.Port = port }
}

func WithUser(user string) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) { d.server.User = user }
}

func WithPassword(password string) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) { d.server.Password = password }
}

func WithDatabase(database string) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) { d.server.Database = database }
}

// WithSSLMode sets the libpq sslmode
func WithSSLMode(sslMode string) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) { d.server.SSLMode = sslMode }
}

func WithTimeZone(timeZone string) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) { d.server.TimeZone = timeZone }
}

// WithDSN uses a complete connection string instead of the other settings
func WithDSN(dsn string) PostgresOptionFunc {
	return func(d *MetadataStorePostgres) { d.server.DSN = dsn }
}

// SetLogger implements plugin.Instrumented
func (d *MetadataStorePostgres) SetLogger(logger *slog.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// SetPromRegistry implements plugin.Instrumented
func (d *MetadataStorePostgres) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}
