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
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ory/dockertest/v3"
	"github.com/tomoncle/hypersist/database"
	"github.com/uptrace/bun/dialect"
)

const envPostgresURL = "HYPERSIST_TESTING_PG_URL"

// PostgreSQLProvider connects to HYPERSIST_TESTING_PG_URL when set and
// otherwise starts a postgres container.
type PostgreSQLProvider struct {
	Image    string
	Database string
	Username string
	Password string
	// Driver selects lib/pq ("pq") or pgx ("pgx").
	Driver       string
	BatchUpdates *bool
}

func NewPostgreSQLProvider() *PostgreSQLProvider {
	return &PostgreSQLProvider{
		Image:    "postgres:16-alpine",
		Database: "high_performance_java_persistence",
		Username: "postgres",
		Password: "admin",
		Driver:   "pgx",
	}
}

func (p *PostgreSQLProvider) Name() string { return "postgresql" }

func (p *PostgreSQLProvider) Dialect() dialect.Name { return dialect.PG }

func (p *PostgreSQLProvider) Start(ctx context.Context) (*database.ConnectionConfig, CleanupFunc, error) {
	if url := os.Getenv(envPostgresURL); url != "" {
		cfg, err := p.configFromURL(url)
		if err != nil {
			return nil, noCleanup, err
		}
		return cfg, noCleanup, nil
	}

	repository, tag := splitImage(p.Image)
	opts := &dockertest.RunOptions{
		Repository: repository,
		Tag:        tag,
		Env: []string{
			"POSTGRES_USER=" + p.Username,
			"POSTGRES_PASSWORD=" + p.Password,
			"POSTGRES_DB=" + p.Database,
		},
		Cmd: []string{"-c", "jit=off"},
	}
	cfg := p.config()
	cfg.Username = p.Username
	cfg.Password = p.Password
	cfg.DBName = p.Database
	cfg.SSLMode = "disable"
	return startContainer(ctx, opts, "5432/tcp", cfg)
}

func (p *PostgreSQLProvider) config() *database.ConnectionConfig {
	cfg := baseConfig("postgres")
	cfg.Driver = p.Driver
	cfg.BatchUpdates = p.BatchUpdates
	return cfg
}

// configFromURL accepts any connection string pgconn understands.
func (p *PostgreSQLProvider) configFromURL(url string) (*database.ConnectionConfig, error) {
	pc, err := pgconn.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %w", ErrProviderUnavailable, envPostgresURL, err)
	}
	cfg := p.config()
	cfg.Host = pc.Host
	cfg.Port = int(pc.Port)
	cfg.Username = pc.User
	cfg.Password = pc.Password
	cfg.DBName = pc.Database
	cfg.SSLMode = "disable"
	if pc.TLSConfig != nil {
		cfg.SSLMode = "require"
	}
	return cfg, nil
}
