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

package mysql

import (
	"log/slog"

	"github.com/blinklabs-io/raffled/database/plugin/metadata/internal/gormstore"
	"github.com/prometheus/client_golang/prometheus"
)

type MysqlOptionFunc func(*MetadataStoreMysql)

func WithLogger(logger *slog.Logger) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) {
		d.SetLogger(logger)
	}
}

func WithPromRegistry(registry prometheus.Registerer) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) {
		d.promRegistry = registry
	}
}

// WithServer replaces all connection settings. Unset fields take the
// MySQL defaults
func WithServer(server gormstore.Server) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) {
		d.server = server
	}
}

func WithHost(host string) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) { d.server.Host = host }
}

func WithPort(port uint) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) { d.server.Port = port }
}

func WithUser(user string) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) { d.server.User = user }
}

func WithPassword(password string) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) { d.server.Password = password }
}

func WithDatabase(database string) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) { d.server.Database = database }
}

// WithSSLMode sets the driver tls parameter, such as "true" or "skip-verify"
func WithSSLMode(sslMode string) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) { d.server.SSLMode = sslMode }
}

func WithTimeZone(timeZone string) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) { d.server.TimeZone = timeZone }
}

// WithDSN uses a complete connection string instead of the other settings
func WithDSN(dsn string) MysqlOptionFunc {
	return func(d *MetadataStoreMysql) { d.server.DSN = dsn }
}

// SetLogger implements plugin.Instrumented
func (d *MetadataStoreMysql) SetLogger(logger *slog.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// SetPromRegistry implements plugin.Instrumented
func (d *MetadataStoreMysql) SetPromRegistry(registry prometheus.Registerer) {
	d.promRegistry = registry
}
