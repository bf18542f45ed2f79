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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const configEnvPrefix = "HYPERSIST"

// LoadConfig reads a YAML (or any viper supported) configuration file.
// Keys may be overridden by HYPERSIST_* environment variables, for example
// HYPERSIST_CONNECTION_CONFIG_HOST.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(configEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setConfigDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	def := DefaultConnectionConfig()
	v.SetDefault("connection_config.type", "sqlite")
	v.SetDefault("connection_config.host", "")
	v.SetDefault("connection_config.port", 0)
	v.SetDefault("connection_config.username", "")
	v.SetDefault("connection_config.password", "")
	v.SetDefault("connection_config.dbname", "")
	v.SetDefault("connection_config.max_idle_conns", def.MaxIdleConns)
	v.SetDefault("connection_config.max_open_conns", def.MaxOpenConns)
	v.SetDefault("connection_config.conn_max_lifetime", def.ConnMaxLifetime)
	v.SetDefault("connection_config.conn_max_idle_time", def.ConnMaxIdleTime)
	v.SetDefault("connection_config.connect_timeout", def.ConnectTimeout)
	v.SetDefault("connection_config.read_timeout", def.ReadTimeout)
	v.SetDefault("connection_config.write_timeout", def.WriteTimeout)
	v.SetDefault("connection_config.enable_reconnect", def.EnableReconnect)
	v.SetDefault("connection_config.reconnect_interval", def.ReconnectInterval)
	v.SetDefault("connection_config.max_reconnect_tries", def.MaxReconnectTries)
	v.SetDefault("connection_config.health_check_interval", def.HealthCheckInterval)
	v.SetDefault("connection_config.slow_query_time", def.SlowQueryTime)
	v.SetDefault("connection_config.batch_size", 0)
	v.SetDefault("schema_config.create_tables_on_startup", false)
	v.SetDefault("schema_config.drop_tables_on_close", false)
}

// WriteConfig writes cfg as YAML to path, creating directories as needed.
func WriteConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("database configuration cannot be empty")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
