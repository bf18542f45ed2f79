/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// AbstractDatabaseManager defines the operations for managing a database
// connection, creating registered tables, and reporting health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	CreateTables(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// AbstractDatabaseConfigProvider exposes configuration loading.
type AbstractDatabaseConfigProvider interface {
	ConfigLoader() *Config
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database, tune its pool and
// how sessions opened on it batch their writes.
type ConnectionConfig struct {
	Type                string            `json:"type" mapstructure:"type" yaml:"type" envconfig:"TYPE"` // postgres、mysql、sqlite
	Driver              string            `json:"driver" mapstructure:"driver" yaml:"driver,omitempty" envconfig:"DRIVER"`
	Host                string            `json:"host" mapstructure:"host" yaml:"host,omitempty" envconfig:"HOST"`
	Port                int               `json:"port" mapstructure:"port" yaml:"port,omitempty" envconfig:"PORT"`
	Username            string            `json:"username" mapstructure:"username" yaml:"username,omitempty" envconfig:"USERNAME"`
	Password            string            `json:"password" mapstructure:"password" yaml:"password,omitempty" envconfig:"PASSWORD"`
	DBName              string            `json:"dbname" mapstructure:"dbname" yaml:"dbname,omitempty" envconfig:"NAME"`
	SSLMode             string            `json:"sslmode" mapstructure:"sslmode" yaml:"sslmode,omitempty" envconfig:"SSLMODE"`
	Params              map[string]string `json:"params" mapstructure:"params" yaml:"params,omitempty" envconfig:"PARAMS"`
	MaxIdleConns        int               `json:"max_idle_conns" mapstructure:"max_idle_conns" yaml:"max_idle_conns,omitempty" envconfig:"MAX_IDLE_CONNS"`
	MaxOpenConns        int               `json:"max_open_conns" mapstructure:"max_open_conns" yaml:"max_open_conns,omitempty" envconfig:"MAX_OPEN_CONNS"`
	ConnMaxLifetime     time.Duration     `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime,omitempty" envconfig:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime     time.Duration     `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time,omitempty" envconfig:"CONN_MAX_IDLE_TIME"`
	ConnectTimeout      time.Duration     `json:"connect_timeout" mapstructure:"connect_timeout" yaml:"connect_timeout,omitempty" envconfig:"CONNECT_TIMEOUT"`
	ReadTimeout         time.Duration     `json:"read_timeout" mapstructure:"read_timeout" yaml:"read_timeout,omitempty" envconfig:"READ_TIMEOUT"`
	WriteTimeout        time.Duration     `json:"write_timeout" mapstructure:"write_timeout" yaml:"write_timeout,omitempty" envconfig:"WRITE_TIMEOUT"`
	EnableReconnect     bool              `json:"enable_reconnect" mapstructure:"enable_reconnect" yaml:"enable_reconnect,omitempty" envconfig:"ENABLE_RECONNECT"`
	ReconnectInterval   time.Duration     `json:"reconnect_interval" mapstructure:"reconnect_interval" yaml:"reconnect_interval,omitempty" envconfig:"RECONNECT_INTERVAL"`
	MaxReconnectTries   int               `json:"max_reconnect_tries" mapstructure:"max_reconnect_tries" yaml:"max_reconnect_tries,omitempty" envconfig:"MAX_RECONNECT_TRIES"`
	HealthCheckInterval time.Duration     `json:"health_check_interval" mapstructure:"health_check_interval" yaml:"health_check_interval,omitempty" envconfig:"HEALTH_CHECK_INTERVAL"`
	EnableQueryLog      bool              `json:"enable_query_log" mapstructure:"enable_query_log" yaml:"enable_query_log,omitempty" envconfig:"ENABLE_QUERY_LOG"`
	QueryLogger         string            `json:"query_logger" mapstructure:"query_logger" yaml:"query_logger,omitempty" envconfig:"QUERY_LOGGER"` // color、bun
	SlowQueryTime       time.Duration     `json:"slow_query_time" mapstructure:"slow_query_time" yaml:"slow_query_time,omitempty" envconfig:"SLOW_QUERY_TIME"`
	AutoCreate          bool              `json:"auto_create" mapstructure:"auto_create" yaml:"auto_create,omitempty" envconfig:"AUTO_CREATE"`

	// BatchSize is the factory-wide statement grouping used when a session
	// has no batch size of its own. Zero disables grouping.
	BatchSize int `json:"batch_size" mapstructure:"batch_size" yaml:"batch_size,omitempty" envconfig:"BATCH_SIZE"`
	// BatchUpdates overrides whether the driver is treated as supporting
	// grouped writes. Nil keeps the dialect default.
	BatchUpdates *bool `json:"batch_updates" mapstructure:"batch_updates" yaml:"batch_updates,omitempty" envconfig:"BATCH_UPDATES"`
}

// SchemaConfig controls table creation for registered models on startup.
type SchemaConfig struct {
	CreateTablesOnStartup bool `json:"create_tables_on_startup" mapstructure:"create_tables_on_startup" yaml:"create_tables_on_startup"`
	DropTablesOnClose     bool `json:"drop_tables_on_close" mapstructure:"drop_tables_on_close" yaml:"drop_tables_on_close"`
}

// Config aggregates connection and schema settings.
type Config struct {
	ConnectionConfig ConnectionConfig `json:"connection_config" mapstructure:"connection_config" yaml:"connection_config"`
	SchemaConfig     SchemaConfig     `json:"schema_config" mapstructure:"schema_config" yaml:"schema_config"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		EnableQueryLog:      false,
		SlowQueryTime:       time.Second * 2,
	}
}
