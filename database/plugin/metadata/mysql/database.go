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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/raffled/database/plugin/metadata/internal/gormstore"
	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	gormmysql "gorm.io/driver/mysql"
)

// errUnknownDatabase is the server error number for a missing schema
const errUnknownDatabase = 1049

var serverDefaults = gormstore.Server{
	Host:     "localhost",
	Port:     3306,
	User:     "root",
	Database: "raffled",
	TimeZone: "UTC",
}

// MetadataStoreMysql keeps raffle entries, requests and draws in MySQL
type MetadataStoreMysql struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	server       gormstore.Server
}

// New creates a MySQL metadata store. The connection is opened by Start
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
) (*MetadataStoreMysql, error) {
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

func NewWithOptions(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	d := &MetadataStoreMysql{}
	for _, opt := range opts {
		opt(d)
	}
	d.server = d.server.WithDefaults(serverDefaults)
	if d.logger == nil {
		d.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return d, nil
}

// DSN returns the driver connection string used by Start. SSLMode maps to
// the driver's tls parameter
func (d *MetadataStoreMysql) DSN() string {
	if dsn := strings.TrimSpace(d.server.DSN); dsn != "" {
		return dsn
	}
	s := d.server
	cfg := mysql.NewConfig()
	cfg.User = s.User
	cfg.Passwd = s.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(s.Host, strconv.FormatUint(uint64(s.Port), 10))
	cfg.DBName = s.Database
	cfg.ParseTime = true
	cfg.TLSConfig = s.SSLMode
	if loc, err := time.LoadLocation(s.TimeZone); err == nil {
		cfg.Loc = loc
	}
	return cfg.FormatDSN()
}

// Start implements the plugin.Plugin interface. A missing database is
// created once before giving up
func (d *MetadataStoreMysql) Start() error {
	dsn := d.DSN()
	dbName, ok := databaseFromDSN(dsn)
	if !ok {
		dbName = d.server.Database
	}
	db, err := gormstore.OpenServer(gormmysql.Open(dsn))
	if err != nil {
		var myErr *mysql.MySQLError
		if !errors.As(err, &myErr) || myErr.Number != errUnknownDatabase {
			return err
		}
		if createErr := d.createDatabase(dsn, dbName); createErr != nil {
			return errors.Join(err, createErr)
		}
		if db, err = gormstore.OpenServer(gormmysql.Open(dsn)); err != nil {
			return err
		}
	}
	d.logger.Info(
		"connected to mysql",
		"component", "database",
		"host", d.server.Host,
		"database", dbName,
	)
	// The store is kept on error so Close can release the connection
	d.Store, err = gormstore.Open(db, d.logger)
	if err != nil {
		return err
	}
	d.RegisterMetrics(d.promRegistry)
	return nil
}

func (d *MetadataStoreMysql) createDatabase(dsn string, name string) error {
	if name == "" {
		return errors.New("no database name in DSN")
	}
	serverDSN, ok := serverFromDSN(dsn)
	if !ok {
		return errors.New("could not derive server DSN")
	}
	db, err := gormstore.OpenServer(gormmysql.Open(serverDSN))
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	d.logger.Info(
		"creating mysql database",
		"component", "database",
		"database", name,
	)
	return db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)).Error
}

// databaseFromDSN returns the schema named after the last slash of dsn
func databaseFromDSN(dsn string) (string, bool) {
	base, _, _ := strings.Cut(dsn, "?")
	idx := strings.LastIndexByte(base, '/')
	if idx < 0 || idx == len(base)-1 {
		return "", false
	}
	return base[idx+1:], true
}

// serverFromDSN drops the schema from dsn, keeping any parameters
func serverFromDSN(dsn string) (string, bool) {
	base, params, hasParams := strings.Cut(dsn, "?")
	idx := strings.LastIndexByte(base, '/')
	if idx < 0 {
		return "", false
	}
	base = base[:idx+1]
	if hasParams && params != "" {
		base += "?" + params
	}
	return base, true
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}

func (d *MetadataStoreMysql) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}
