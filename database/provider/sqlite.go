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

package provider

import (
	"context"
	"regexp"

	"github.com/tomoncle/hypersist/database"
	"github.com/uptrace/bun/dialect"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// SQLiteProvider serves a named in-memory database. Every connection to the
// same name sees the same data, so the pool is limited to one connection
// that is never recycled.
type SQLiteProvider struct {
	DBName       string
	BatchUpdates *bool
}

func NewSQLiteProvider(name string) *SQLiteProvider {
	return &SQLiteProvider{DBName: name}
}

func (p *SQLiteProvider) Name() string { return "sqlite" }

func (p *SQLiteProvider) Dialect() dialect.Name { return dialect.SQLite }

func (p *SQLiteProvider) Start(ctx context.Context) (*database.ConnectionConfig, CleanupFunc, error) {
	name := unsafeNameChars.ReplaceAllString(p.DBName, "_")
	if name == "" {
		name = "hypersist"
	}
	cfg := baseConfig("sqlite")
	cfg.DBName = "file:" + name
	cfg.Params = map[string]string{"mode": "memory", "cache": "shared"}
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	cfg.ConnMaxLifetime = 0
	cfg.ConnMaxIdleTime = 0
	cfg.BatchUpdates = p.BatchUpdates
	return cfg, noCleanup, nil
}
