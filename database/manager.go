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
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

var errNotConnected = errors.New("database not connected")

type defaultDatabaseManager struct {
	config *ConnectionConfig

	logMu  sync.RWMutex
	logger Logger

	mu             sync.RWMutex
	db             *bun.DB
	sqlDB          *sql.DB
	connected      bool
	lastError      error
	healthStatus   *HealthStatus
	reconnectTries int

	// Set while the health loop runs; cleared by Disconnect.
	stopHealth context.CancelFunc
	healthDone chan struct{}
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun.
// A nil config means DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &defaultDatabaseManager{config: config, healthStatus: &HealthStatus{}}
}

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.connected && dm.db != nil {
		return nil
	}
	if err := dm.openLocked(ctx); err != nil {
		return err
	}
	if dm.config.HealthCheckInterval > 0 && dm.stopHealth == nil {
		loopCtx, cancel := context.WithCancel(context.Background())
		dm.stopHealth = cancel
		dm.healthDone = make(chan struct{})
		go dm.healthLoop(loopCtx, dm.config.HealthCheckInterval, dm.healthDone)
	}
	dm.logInfo("database connected", "type", dm.config.Type, "host", dm.config.Host)
	return nil
}

// openLocked replaces db and sqlDB with a freshly pinged connection.
// dm.mu must be held.
func (dm *defaultDatabaseManager) openLocked(ctx context.Context) error {
	if dm.config.ConnectTimeout <= 0 {
		dm.config.ConnectTimeout = 30 * time.Second
	}

	sqlDB, db, err := dm.open()
	if err != nil {
		dm.lastError = err
		return fmt.Errorf("open %s connection: %w", dm.config.Type, err)
	}
	sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		dm.lastError = err
		return fmt.Errorf("ping %s: %w", dm.config.Type, err)
	}

	dm.sqlDB, dm.db = sqlDB, db
	dm.connected = true
	dm.lastError = nil
	dm.reconnectTries = 0
	return nil
}

func (dm *defaultDatabaseManager) open() (*sql.DB, *bun.DB, error) {
	var (
		driverName string
		dsn        string
		dia        schema.Dialect
	)
	switch dm.config.Type {
	case "mysql":
		driverName, dsn, dia = "mysql", MySQLDSN(dm.config), mysqldialect.New()
	case "postgres", "postgresql":
		driverName, dsn, dia = "postgres", PostgresDSN(dm.config), pgdialect.New()
		if dm.config.Driver == "pgx" {
			driverName = "pgx"
		}
	case "sqlite", "sqlite3":
		driverName, dsn, dia = sqliteshim.ShimName, SQLiteDSN(dm.config), sqlitedialect.New()
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dm.config.Type)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, err
	}
	db := bun.NewDB(sqlDB, dia)

	if dm.config.EnableQueryLog {
		if dm.config.QueryLogger == "bun" {
			db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true), bundebug.FromEnv("BUNDEBUG")))
		} else {
			db.AddQueryHook(NewQueryHook(WithHookVerbose(true), WithHookEnv("BUNDEBUG")))
		}
	}
	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(&slowQueryHook{threshold: dm.config.SlowQueryTime, logger: dm.log()})
	}
	return sqlDB, db, nil
}

// Disconnect stops the health loop and closes the connection. It returns
// once the loop has exited, so no reconnect can follow it.
func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	stop, done := dm.stopHealth, dm.healthDone
	dm.stopHealth, dm.healthDone = nil, nil
	if stop != nil {
		stop()
	}
	err := dm.closeLocked()
	dm.mu.Unlock()

	if done != nil {
		<-done
	}
	return err
}

func (dm *defaultDatabaseManager) closeLocked() error {
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db, dm.sqlDB = nil, nil
	dm.connected = false
	if err != nil {
		dm.logError("close database", "error", err)
	} else {
		dm.logInfo("database closed")
	}
	return err
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	dm.logInfo("reconnecting database", "type", dm.config.Type)
	if err := dm.Disconnect(); err != nil {
		dm.logWarn("close before reconnect", "error", err)
	}
	return dm.Connect(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return errNotConnected
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start, Connected: dm.connected}
	if dm.db == nil {
		status.LastError = errNotConnected.Error()
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := dm.db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	dm.lastError = err
	if err != nil {
		status.LastError = err.Error()
	}

	stats := dm.sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	dm.healthStatus = status
	return status
}

func (dm *defaultDatabaseManager) healthLoop(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		status := dm.HealthCheck(checkCtx)
		cancel()
		if !status.Healthy && dm.config.EnableReconnect {
			dm.tryReconnect(ctx)
		}
	}
}

// tryReconnect reopens the connection in place. It gives up once ctx is
// cancelled, which Disconnect does before closing the handle.
func (dm *defaultDatabaseManager) tryReconnect(ctx context.Context) {
	dm.mu.Lock()
	if ctx.Err() != nil {
		dm.mu.Unlock()
		return
	}
	if dm.reconnectTries >= dm.config.MaxReconnectTries {
		dm.mu.Unlock()
		dm.logError("reconnect attempts exhausted", "tries", dm.config.MaxReconnectTries)
		return
	}
	dm.reconnectTries++
	try := dm.reconnectTries
	dm.mu.Unlock()

	dm.logInfo("reconnecting database", "try", try)
	timer := time.NewTimer(dm.config.ReconnectInterval)
	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if dm.db != nil {
		_ = dm.db.Close()
		dm.db, dm.sqlDB = nil, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := dm.openLocked(connectCtx); err != nil {
		dm.connected = false
		dm.logError("reconnect failed", "error", err, "try", try)
		return
	}
	dm.logInfo("database reconnected", "try", try)
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}

	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (dm *defaultDatabaseManager) CreateTables(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return errNotConnected
	}
	models := RegisteredModelInstances()
	if err := CreateTables(ctx, db, models...); err != nil {
		return err
	}
	dm.logInfo("registered tables created", "count", len(models))
	return nil
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	dm.logMu.Lock()
	defer dm.logMu.Unlock()
	dm.logger = logger
}

// log is safe to call with dm.mu held.
func (dm *defaultDatabaseManager) log() Logger {
	dm.logMu.RLock()
	defer dm.logMu.RUnlock()
	return dm.logger
}

func (dm *defaultDatabaseManager) logInfo(msg string, fields ...interface{}) {
	if l := dm.log(); l != nil {
		l.Info(msg, fields...)
	}
}

func (dm *defaultDatabaseManager) logWarn(msg string, fields ...interface{}) {
	if l := dm.log(); l != nil {
		l.Warn(msg, fields...)
	}
}

func (dm *defaultDatabaseManager) logError(msg string, fields ...interface{}) {
	if l := dm.log(); l != nil {
		l.Error(msg, fields...)
	}
}

// slowQueryHook warns about successful queries slower than threshold.
type slowQueryHook struct {
	threshold time.Duration
	logger    Logger
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if event.Err != nil || h.logger == nil {
		return
	}
	if elapsed := time.Since(event.StartTime); elapsed > h.threshold {
		h.logger.Warn("slow query", "elapsed", elapsed, "threshold", h.threshold, "query", event.Query)
	}
}

// MySQLDSN builds a go-sql-driver DSN; Params are appended after the defaults
// and win on conflict.
func MySQLDSN(cfg *ConnectionConfig) string {
	params := map[string]string{
		"charset":   "utf8mb4",
		"parseTime": "True",
		"loc":       "Local",
	}
	if cfg.ConnectTimeout > 0 {
		params["timeout"] = cfg.ConnectTimeout.String()
	}
	if cfg.ReadTimeout > 0 {
		params["readTimeout"] = cfg.ReadTimeout.String()
	}
	if cfg.WriteTimeout > 0 {
		params["writeTimeout"] = cfg.WriteTimeout.String()
	}
	for k, v := range cfg.Params {
		params[k] = v
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		encodeParams(params),
	)
}

// PostgresDSN builds a postgres:// URL accepted by both lib/pq and pgx.
func PostgresDSN(cfg *ConnectionConfig) string {
	params := map[string]string{"sslmode": "disable"}
	if cfg.SSLMode != "" {
		params["sslmode"] = cfg.SSLMode
	}
	if cfg.ConnectTimeout > 0 {
		params["connect_timeout"] = fmt.Sprintf("%d", int(cfg.ConnectTimeout.Seconds()))
	}
	for k, v := range cfg.Params {
		params[k] = v
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: encodeParams(params),
	}
	return u.String()
}

// SQLiteDSN maps DBName to a file "<name>.db" unless it is already a URI
// or the in-memory name.
func SQLiteDSN(cfg *ConnectionConfig) string {
	name := cfg.DBName
	if name != ":memory:" && !strings.HasPrefix(name, "file:") {
		name = fmt.Sprintf("%s.db", name)
	}
	if len(cfg.Params) == 0 {
		return name
	}
	sep := "?"
	if strings.Contains(name, "?") {
		sep = "&"
	}
	return name + sep + encodeParams(cfg.Params)
}

func encodeParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(pairs, "&")
}
