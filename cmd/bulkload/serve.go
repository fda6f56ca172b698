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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/bulkload/internal/bootstrap"
	"github.com/kraklabs/bulkload/internal/errors"
	"github.com/kraklabs/bulkload/internal/server"
	"github.com/kraklabs/bulkload/internal/ui"
	"github.com/kraklabs/bulkload/pkg/ingestion"
)

// runServe executes the 'serve' CLI command, accepting uploads over HTTP
// until interrupted.
//
// Flags:
//   - --addr: Listen address (default: server.addr from config)
//   - --engine, --data-dir: Override the store settings from config
//
// Examples:
//
//	bulkload serve
//	bulkload serve --addr :8080 --engine mem
func runServe(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (default from config or "+server.DefaultAddr+")")
	engine := fs.String("engine", "", "Store engine: bolt, mem or mongo (default from config)")
	dataDir := fs.String("data-dir", "", "Bolt data directory (default from config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bulkload serve [options]

Starts the upload server. Files are posted to /api/v1/uploads/{entity}
and progress is streamed back as NDJSON. Prometheus metrics are served on
/metrics.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *engine != "" {
		cfg.Store.Engine = *engine
	}
	if *dataDir != "" {
		cfg.Store.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	logger := newLogger(globals, slog.LevelInfo)

	cfg.Server.Sentry.Release = version
	if err := server.InitSentry(cfg.Server.Sentry, logger); err != nil {
		logger.Warn("sentry.init.error", "err", err)
	}

	reg, err := cfg.Registry()
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	reports, err := cfg.Reports()
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot locate the reports directory", err.Error(), "Set reports_dir in .bulkload/config.yaml", err), globals.JSON)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg.StoreConfig(), logger)
	if err != nil {
		errors.FatalError(errors.NewStoreError(
			"Cannot open the store",
			err.Error(),
			"Check the store settings, or run 'bulkload init' first",
			err,
		), globals.JSON)
	}

	p := ingestion.NewPipeline(store, cfg.Pipeline, logger).WithReports(reports)
	srv := server.New(cfg.Server, reg, p, reports, logger)

	err = srv.ListenAndServe(ctx, func(bound string) {
		if !globals.Quiet {
			ui.Successf("Accepting uploads on http://%s/api/v1/uploads/{entity}", bound)
			ui.Infof("Entities: %v", reg.Names())
		}
	})
	_ = store.Close()
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Server stopped",
			err.Error(),
			"Check that the address is free and valid",
			err,
		), globals.JSON)
	}
	logger.Info("server.stopped")
}
