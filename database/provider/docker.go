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
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/tomoncle/hypersist/database"
)

// dockerMu serializes container startup.
var dockerMu sync.Mutex

const containerExpirySeconds = 600

// startContainer runs image, waits until cfg (with its host and port filled
// in from the mapped port) accepts connections and returns the completed
// config.
func startContainer(ctx context.Context, opts *dockertest.RunOptions, port string, cfg *database.ConnectionConfig) (*database.ConnectionConfig, CleanupFunc, error) {
	if !dockerEnabled() {
		return nil, noCleanup, fmt.Errorf("%w: set %s=true or provide an external URL", ErrProviderUnavailable, envDockerEnabled)
	}
	dockerMu.Lock()
	defer dockerMu.Unlock()

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, noCleanup, fmt.Errorf("%w: could not connect to docker: %w", ErrProviderUnavailable, err)
	}
	pool.MaxWait = startupTimeout()
	if err := pool.Client.Ping(); err != nil {
		return nil, noCleanup, fmt.Errorf("%w: docker is not reachable: %w", ErrProviderUnavailable, err)
	}

	resource, err := pool.RunWithOptions(opts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, noCleanup, fmt.Errorf("%w: could not start %s: %w", ErrProviderUnavailable, opts.Repository, err)
	}
	_ = resource.Expire(containerExpirySeconds)

	cleanup := func() error { return purge(pool, resource) }

	host, portNum, err := splitHostPort(resource.GetHostPort(port))
	if err != nil {
		_ = cleanup()
		return nil, noCleanup, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	cfg.Host = host
	cfg.Port = portNum

	if err := pool.Retry(func() error {
		return ping(ctx, cfg)
	}); err != nil {
		_ = cleanup()
		return nil, noCleanup, fmt.Errorf("%w: %s did not become ready: %w", ErrProviderUnavailable, opts.Repository, err)
	}
	return cfg, cleanup, nil
}

func ping(ctx context.Context, cfg *database.ConnectionConfig) error {
	one := *cfg
	one.MaxOpenConns = 1
	one.MaxIdleConns = 0
	manager := database.NewDatabaseManager(&one)
	if err := manager.Connect(ctx); err != nil {
		return err
	}
	return manager.Disconnect()
}

func purge(pool *dockertest.Pool, resource *dockertest.Resource) error {
	var err error
	for i := 0; i < 10; i++ {
		if err = pool.Purge(resource); err == nil {
			return nil
		}
	}
	if strings.Contains(err.Error(), "No such container") {
		return nil
	}
	return fmt.Errorf("failed to cleanup container: %w", err)
}

func splitHostPort(hostPort string) (string, int, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", 0, fmt.Errorf("invalid host port %q: %w", hostPort, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", port, err)
	}
	return host, n, nil
}

// splitImage separates "repo:tag", defaulting the tag to latest.
func splitImage(image string) (string, string) {
	if i := strings.LastIndex(image, ":"); i > 0 && !strings.Contains(image[i:], "/") {
		return image[:i], image[i+1:]
	}
	return image, "latest"
}
