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

package gormstore

import (
	"sync"
	"time"

	"github.com/blinklabs-io/raffled/database/plugin"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Pool limits for networked servers. The raffle issues one transaction per
// operation, so a small pool is plenty
const (
	serverMaxIdleConns    = 4
	serverMaxOpenConns    = 16
	serverConnMaxLifetime = time.Hour
)

// Server holds the connection settings of a networked SQL backend. DSN,
// when set, replaces the individual fields
type Server struct {
	Host     string
	User     string
	Password string
	Database string
	SSLMode  string
	TimeZone string
	DSN      string
	Port     uint
}

// WithDefaults fills the unset fields of s from def
func (s Server) WithDefaults(def Server) Server {
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&s.Host, def.Host)
	fill(&s.User, def.User)
	fill(&s.Database, def.Database)
	fill(&s.SSLMode, def.SSLMode)
	fill(&s.TimeZone, def.TimeZone)
	if s.Port == 0 {
		s.Port = def.Port
	}
	return s
}

// ServerOptions receives plugin option values for a server backend
type ServerOptions struct {
	sync.RWMutex
	host     string
	user     string
	password string
	database string
	sslMode  string
	timeZone string
	dsn      string
	port     uint64
}

// PluginOptions describes the options of a server backend named product,
// bound to o and seeded from def
func (o *ServerOptions) PluginOptions(product string, def Server) []plugin.PluginOption {
	o.Lock()
	o.host, o.user, o.database = def.Host, def.User, def.Database
	o.sslMode, o.timeZone, o.port = def.SSLMode, def.TimeZone, uint64(def.Port)
	o.Unlock()
	str := func(name, desc, def string, dest *string) plugin.PluginOption {
		return plugin.PluginOption{
			Name:         name,
			Type:         plugin.PluginOptionTypeString,
			Description:  product + " " + desc,
			DefaultValue: def,
			Dest:         dest,
		}
	}
	return []plugin.PluginOption{
		str("host", "host", def.Host, &o.host),
		{
			Name:         "port",
			Type:         plugin.PluginOptionTypeUint,
			Description:  product + " port",
			DefaultValue: uint64(def.Port),
			Dest:         &o.port,
		},
		str("user", "user", def.User, &o.user),
		str("password", "password", "", &o.password),
		str("database", "database name", def.Database, &o.database),
		str("ssl-mode", "TLS mode", def.SSLMode, &o.sslMode),
		str("timezone", "session time zone", def.TimeZone, &o.timeZone),
		str("dsn", "connection string, replacing the other options", "", &o.dsn),
	}
}

// Server returns the current option values
func (o *ServerOptions) Server() Server {
	o.RLock()
	defer o.RUnlock()
	return Server{
		Host:     o.host,
		User:     o.user,
		Password: o.password,
		Database: o.database,
		SSLMode:  o.sslMode,
		TimeZone: o.timeZone,
		DSN:      o.dsn,
		Port:     uint(o.port),
	}
}

// GormConfig is the gorm configuration used by every backend. Statement
// logging is left to tracing
func GormConfig(prepareStmt bool) *gorm.Config {
	return &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		PrepareStmt:            prepareStmt,
	}
}

// OpenServer opens a networked backend with prepared statements and a
// bounded connection pool
func OpenServer(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, GormConfig(true))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(serverMaxIdleConns)
	sqlDB.SetMaxOpenConns(serverMaxOpenConns)
	sqlDB.SetConnMaxLifetime(serverConnMaxLifetime)
	return db, nil
}
