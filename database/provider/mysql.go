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
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/tomoncle/hypersist/database"
	"github.com/uptrace/bun/dialect"
)

const envMySQLURL = "HYPERSIST_TESTING_MYSQL_URL"

// MySQLProvider connects to the go-sql-driver DSN in
// HYPERSIST_TESTING_MYSQL_URL when set and otherwise starts a mysql container.
type MySQLProvider struct {
	Image    string
	Database string
	Username string
	Password string

	// RewriteBatchedStatements controls whether sessions group writes into
	// multi-row statements.
	RewriteBatchedStatements bool
	// InterpolateParams makes the driver inline arguments client side
	// instead of preparing statements on the server.
	InterpolateParams bool
}

func NewMySQLProvider() *MySQLProvider {
	return &MySQLProvider{
		Image:                    "mysql:8.0",
		Database:                 "high_performance_java_persistence",
		Username:                 "mysql",
		Password:                 "admin",
		RewriteBatchedStatements: true,
		InterpolateParams:        true,
	}
}

func (p *MySQLProvider) Name() string { return "mysql" }

func (p *MySQLProvider) Dialect() dialect.Name { return dialect.MySQL }

func (p *MySQLProvider) String() string {
	return fmt.Sprintf("MySQLProvider{rewriteBatchedStatements=%t, interpolateParams=%t}",
		p.RewriteBatchedStatements, p.InterpolateParams)
}

func (p *MySQLProvider) Start(ctx context.Context) (*database.ConnectionConfig, CleanupFunc, error) {
	if dsn := os.Getenv(envMySQLURL); dsn != "" {
		cfg, err := p.configFromDSN(dsn)
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
			"MYSQL_DATABASE=" + p.Database,
			"MYSQL_USER=" + p.Username,
			"MYSQL_PASSWORD=" + p.Password,
			"MYSQL_ROOT_PASSWORD=" + p.Password,
		},
	}
	cfg := p.config()
	cfg.Username = p.Username
	cfg.Password = p.Password
	cfg.DBName = p.Database
	return startContainer(ctx, opts, "3306/tcp", cfg)
}

func (p *MySQLProvider) config() *database.ConnectionConfig {
	cfg := baseConfig("mysql")
	batch := p.RewriteBatchedStatements
	cfg.BatchUpdates = &batch
	cfg.Params = map[string]string{
		"interpolateParams": strconv.FormatBool(p.InterpolateParams),
	}
	return cfg
}

func (p *MySQLProvider) configFromDSN(dsn string) (*database.ConnectionConfig, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %w", ErrProviderUnavailable, envMySQLURL, err)
	}
	host, port := mc.Addr, 3306
	if h, n, err := splitHostPort(mc.Addr); err == nil {
		host, port = h, n
	}
	cfg := p.config()
	cfg.Host = host
	cfg.Port = port
	cfg.Username = mc.User
	cfg.Password = mc.Passwd
	cfg.DBName = mc.DBName
	for k, v := range mc.Params {
		cfg.Params[k] = v
	}
	return cfg, nil
}
