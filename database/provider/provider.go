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
	"errors"
	"fmt"
	"time"

	"github.com/tomoncle/hypersist/database"
	"github.com/tomoncle/hypersist/utils"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// ErrProviderUnavailable is returned when a data source cannot be started,
// for example when neither an external URL nor docker is available.
var ErrProviderUnavailable = errors.New("data source provider unavailable")

const (
	envDockerEnabled  = "HYPERSIST_TESTING_DOCKER"
	envStartupTimeout = "HYPERSIST_TESTING_STARTUP_TIMEOUT"
)

// CleanupFunc releases whatever Start acquired.
type CleanupFunc func() error

func noCleanup() error { return nil }

// DataSourceProvider makes one database engine reachable and describes how
// to connect to it.
type DataSourceProvider interface {
	Name() string
	Dialect() dialect.Name
	Start(ctx context.Context) (*database.ConnectionConfig, CleanupFunc, error)
}

// Open starts p and connects to it. The returned cleanup disconnects and
// then releases the provider.
func Open(ctx context.Context, p DataSourceProvider) (*bun.DB, CleanupFunc, error) {
	cfg, release, err := p.Start(ctx)
	if err != nil {
		return nil, noCleanup, err
	}
	if release == nil {
		release = noCleanup
	}

	manager := database.NewDatabaseManager(cfg)
	manager.SetLogger(database.GetLogger())
	if err := manager.Connect(ctx); err != nil {
		_ = release()
		return nil, noCleanup, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, p.Name(), err)
	}

	cleanup := func() error {
		return errors.Join(manager.Disconnect(), release())
	}
	return manager.GetDB(), cleanup, nil
}

func dockerEnabled() bool {
	return utils.EnvDefaultBool(envDockerEnabled, false)
}

func startupTimeout() time.Duration {
	return utils.EnvDefaultDuration(envStartupTimeout, 2*time.Minute)
}

// baseConfig returns pool settings suited to short lived test databases.
func baseConfig(typ string) *database.ConnectionConfig {
	cfg := database.DefaultConnectionConfig()
	cfg.Type = typ
	cfg.HealthCheckInterval = 0
	cfg.EnableReconnect = false
	cfg.SlowQueryTime = 0
	cfg.ConnectTimeout = 10 * time.Second
	return cfg
}
