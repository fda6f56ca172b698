// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/bulkload/internal/bootstrap"
	"github.com/kraklabs/bulkload/internal/errors"
	"github.com/kraklabs/bulkload/internal/server"
	"github.com/kraklabs/bulkload/pkg/ingestion"
	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

const (
	configDirName  = ".bulkload"
	configFileName = "config.yaml"
	configVersion  = "1"

	// DefaultServerURL is where 'bulkload upload' sends files by default.
	DefaultServerURL = "http://127.0.0.1:8080"
)

// Config is the content of .bulkload/config.yaml.
type Config struct {
	Version string `yaml:"version"`

	Store    bootstrap.StoreConfig `yaml:"store"`
	Pipeline ingestion.Config      `yaml:"pipeline"`
	Server   server.Config         `yaml:"server"`
	Client   ClientConfig          `yaml:"client"`

	// Entities lists YAML alias-table files loaded on top of the built-in
	// entities. Relative paths are resolved against the config directory.
	Entities []string `yaml:"entities,omitempty"`

	// ReportsDir is where terminal upload reports are saved.
	// Defaults to ~/.bulkload/reports
	ReportsDir string `yaml:"reports_dir,omitempty"`

	// dir is the directory the config was loaded from.
	dir string
}

// ClientConfig configures 'bulkload upload'.
type ClientConfig struct {
	ServerURL string `yaml:"server_url"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Version:  configVersion,
		Store:    bootstrap.StoreConfig{Engine: storage.EngineBolt},
		Pipeline: ingestion.DefaultConfig(),
		Server:   server.Config{Addr: server.DefaultAddr},
		Client:   ClientConfig{ServerURL: DefaultServerURL},
	}
}

// ConfigDir returns the .bulkload directory under dir.
func ConfigDir(dir string) string {
	return filepath.Join(dir, configDirName)
}

// ConfigPath returns the config file path under dir.
func ConfigPath(dir string) string {
	return filepath.Join(ConfigDir(dir), configFileName)
}

// LoadConfig reads the config file at path. An empty path means
// ./.bulkload/config.yaml, which may be absent: the defaults are used then.
// An explicitly given path must exist. Environment overrides are applied
// last.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		path = ConfigPath(cwd)
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the --config flag
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigError(
				"Cannot parse configuration",
				fmt.Sprintf("%s is not valid YAML: %v", path, err),
				"Fix the file or recreate it with 'bulkload init --force'",
				err,
			)
		}
		cfg.dir = filepath.Dir(path)
	case os.IsNotExist(err) && !explicit:
	case os.IsNotExist(err):
		return nil, errors.NewConfigError(
			"Configuration not found",
			fmt.Sprintf("%s does not exist", path),
			"Run 'bulkload init' or pass an existing file with --config",
			err,
		)
	default:
		return nil, errors.NewConfigError("Cannot read configuration", err.Error(), "Check the file permissions", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating the directory.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := "# bulkload configuration\n# Environment variables (BULKLOAD_*, SENTRY_DSN) override these values.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0600)
}

// applyEnv overrides file values from the environment.
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Store.Engine, "BULKLOAD_STORE_ENGINE")
	set(&c.Store.DataDir, "BULKLOAD_DATA_DIR")
	set(&c.Store.MongoURI, "BULKLOAD_MONGO_URI")
	set(&c.Store.MongoDatabase, "BULKLOAD_MONGO_DATABASE")
	set(&c.Server.Addr, "BULKLOAD_ADDR")
	set(&c.Client.ServerURL, "BULKLOAD_SERVER_URL")
	set(&c.ReportsDir, "BULKLOAD_REPORTS_DIR")
	set(&c.Server.Sentry.DSN, "SENTRY_DSN")
	set(&c.Server.Sentry.Environment, "SENTRY_ENVIRONMENT")
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Engine {
	case "", storage.EngineBolt, storage.EngineMem:
	case bootstrap.EngineMongo:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			return errors.NewConfigError(
				"Incomplete MongoDB settings",
				"The mongo engine needs store.mongo_uri and store.mongo_database",
				"Set them in .bulkload/config.yaml or via BULKLOAD_MONGO_URI and BULKLOAD_MONGO_DATABASE",
				nil,
			)
		}
	default:
		return errors.NewConfigError(
			fmt.Sprintf("Unknown store engine %q", c.Store.Engine),
			"store.engine must be bolt, mem or mongo",
			"Fix store.engine in .bulkload/config.yaml or BULKLOAD_STORE_ENGINE",
			nil,
		)
	}
	if c.Pipeline.BatchSize < 0 || c.Pipeline.Concurrency < 0 || c.Pipeline.WriteChunkSize < 0 {
		return errors.NewConfigError(
			"Invalid pipeline settings",
			"batch_size, concurrency and write_chunk_size must not be negative",
			"Use 0 for the default or a positive value",
			nil,
		)
	}
	return nil
}

// resolve makes p absolute relative to the config directory.
func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// Registry returns the built-in entities plus the configured alias files.
func (c *Config) Registry() (*schema.Registry, error) {
	reg := schema.DefaultRegistry()
	paths := make([]string, len(c.Entities))
	for i, p := range c.Entities {
		paths[i] = c.resolve(p)
	}
	if err := reg.LoadInto(paths...); err != nil {
		return nil, errors.NewConfigError(
			"Cannot load entity definitions",
			err.Error(),
			"Check the files listed under 'entities' in .bulkload/config.yaml",
			err,
		)
	}
	return reg, nil
}

// Reports returns the report store, defaulting to ~/.bulkload/reports.
func (c *Config) Reports() (*ingestion.ReportStore, error) {
	dir := c.resolve(c.ReportsDir)
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		dir = filepath.Join(home, configDirName, "reports")
	}
	return ingestion.NewReportStore(dir), nil
}

// StoreConfig returns the store settings with relative paths resolved.
func (c *Config) StoreConfig() bootstrap.StoreConfig {
	sc := c.Store
	sc.DataDir = c.resolve(sc.DataDir)
	return sc
}
