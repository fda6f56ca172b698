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

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

// EngineMongo selects the MongoDB store.
const EngineMongo = "mongo"

// StoreConfig holds the settings needed to open a store.
type StoreConfig struct {
	// Engine is "bolt", "mem" or "mongo". Defaults to "bolt".
	Engine string `yaml:"engine"`

	// DataDir is where the bolt file lives.
	// Defaults to ~/.bulkload/data
	DataDir string `yaml:"data_dir,omitempty"`

	// MongoURI and MongoDatabase select the MongoDB deployment.
	MongoURI      string `yaml:"mongo_uri,omitempty"`
	MongoDatabase string `yaml:"mongo_database,omitempty"`

	// Timeout bounds each store call for engines that support it.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// StoreInfo describes an initialized store.
type StoreInfo struct {
	Engine      string
	Location    string
	Collections []string
}

// withDefaults fills in the engine and data directory.
func (c StoreConfig) withDefaults() (StoreConfig, error) {
	if c.Engine == "" {
		c.Engine = storage.EngineBolt
	}
	if c.Engine == storage.EngineBolt && c.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return c, fmt.Errorf("get home dir: %w", err)
		}
		c.DataDir = filepath.Join(homeDir, ".bulkload", "data")
	}
	return c, nil
}

// location is a display string for where the store keeps its data.
func (c StoreConfig) location() string {
	switch c.Engine {
	case EngineMongo:
		return c.MongoURI
	case storage.EngineMem:
		return "memory"
	default:
		return c.DataDir
	}
}

// OpenStore opens the store selected by config.
func OpenStore(ctx context.Context, config StoreConfig, logger *slog.Logger) (storage.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	logger.Debug("bootstrap.store.open",
		"engine", config.Engine,
		"location", config.location(),
	)

	switch config.Engine {
	case EngineMongo:
		store, err := storage.NewMongoStore(ctx, storage.MongoConfig{
			URI:      config.MongoURI,
			Database: config.MongoDatabase,
			Timeout:  config.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("open mongo store: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewEmbeddedStore(storage.EmbeddedConfig{
			DataDir: config.DataDir,
			Engine:  config.Engine,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", config.Engine, err)
		}
		return store, nil
	}
}

// InitStore opens the store and ensures one collection for every entity in
// reg. It is safe to call on an existing store.
func InitStore(ctx context.Context, config StoreConfig, reg *schema.Registry, logger *slog.Logger) (*StoreInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	logger.Info("bootstrap.store.init.start",
		"engine", config.Engine,
		"location", config.location(),
	)

	store, err := OpenStore(ctx, config, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	info := &StoreInfo{Engine: config.Engine, Location: config.location()}
	for _, e := range reg.List() {
		c := storage.Collection{Name: e.CollectionName(), KeyField: e.Key}
		if err := store.EnsureCollection(ctx, c); err != nil {
			return nil, fmt.Errorf("ensure collection %s: %w", c.Name, err)
		}
		info.Collections = append(info.Collections, c.Name)
	}

	logger.Info("bootstrap.store.init.success",
		"engine", config.Engine,
		"collections", len(info.Collections),
	)
	return info, nil
}
