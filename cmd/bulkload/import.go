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
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/bulkload/internal/bootstrap"
	"github.com/kraklabs/bulkload/internal/contract"
	"github.com/kraklabs/bulkload/internal/errors"
	"github.com/kraklabs/bulkload/internal/output"
	"github.com/kraklabs/bulkload/pkg/ingestion"
	"github.com/kraklabs/bulkload/pkg/parser"
	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

// runImport executes the 'import' CLI command, reconciling a file against
// the configured store in this process.
//
// Flags:
//   - --batch-size, --concurrency: Override the pipeline tuning from config
//   - --stream: Print every snapshot as NDJSON instead of a summary
//   - --all: List every row outcome in the summary
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
//
// Examples:
//
//	bulkload import material materials.xlsx
//	bulkload import warranty w.csv --concurrency 1
func runImport(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	batchSize := fs.Int("batch-size", 0, "Rows per batch (default from config)")
	concurrency := fs.Int("concurrency", 0, "Batches in flight at once (default from config)")
	stream := fs.Bool("stream", false, "Print each progress snapshot as NDJSON")
	all := fs.Bool("all", false, "List every row outcome")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bulkload import [options] <entity> <file>

Runs the upload pipeline locally against the store configured in
.bulkload/config.yaml. The result is the same as uploading the file to a
server backed by that store.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 2 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"import needs an entity name and a file",
			"Run 'bulkload import <entity> <file>'; 'bulkload entities' lists entity names",
		), globals.JSON)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	if *batchSize > 0 {
		cfg.Pipeline.BatchSize = *batchSize
	}
	if *concurrency > 0 {
		cfg.Pipeline.Concurrency = *concurrency
	}

	logger := newLogger(globals, slog.LevelWarn)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux} //nolint:gosec // G112: local metrics endpoint
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	reg, err := cfg.Registry()
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	reports, err := cfg.Reports()
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot locate the reports directory", err.Error(), "Set reports_dir in .bulkload/config.yaml", err), globals.JSON)
	}

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg.StoreConfig(), logger)
	if err != nil {
		errors.FatalError(errors.NewStoreError(
			"Cannot open the store",
			err.Error(),
			"Check the store settings; a bolt file can only be opened by one process, so stop 'bulkload serve' first",
			err,
		), globals.JSON)
	}

	progress := newProgressReporter(NewProgressConfig(globals))
	if *stream {
		progress = newProgressReporter(ProgressConfig{})
		sw := output.NewStreamWriter(os.Stdout)
		progress.onSnapshot = func(s *ingestion.Snapshot) error { return sw.Write(s) }
	}

	p := ingestion.NewPipeline(store, cfg.Pipeline, logger).WithReports(reports)
	final, err := importFile(ctx, p, reg, fs.Arg(0), fs.Arg(1), progress)
	// FatalError and finishUpload exit without running defers.
	_ = store.Close()
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	finishUpload(final, globals, *stream, *all)
}

// importFile runs one file through p. Problems found before processing
// starts are returned as *errors.UserError with the same kinds the server
// answers with.
func importFile(ctx context.Context, p *ingestion.Pipeline, reg *schema.Registry, entityName, path string, rep ingestion.Reporter) (*ingestion.Snapshot, error) {
	entity, ok := reg.Get(entityName)
	if !ok {
		return nil, errors.NewNotFoundError(
			fmt.Sprintf("Unknown entity %q", entityName),
			"No entity with that name is registered",
			"Run 'bulkload entities' to list entity names",
		)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputError("File not found", err.Error(), "Check the file path")
		}
		return nil, errors.NewPermissionError("Cannot read file", err.Error(), "Check the file permissions", err)
	}

	name := filepath.Base(path)
	contentType := fileContentType(name)
	if err := contract.ValidateUpload(name, contentType, info.Size()); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a CLI argument
	if err != nil {
		return nil, errors.NewPermissionError("Cannot read file", err.Error(), "Check the file permissions", err)
	}

	table, err := parser.Decode(name, contentType, data)
	if err != nil {
		reason := err.Error()
		var pe *parser.ParseError
		if stderrors.As(err, &pe) {
			reason = pe.Reason
		}
		return nil, errors.NewParseFailure(name, reason, err)
	}

	up, err := p.Prepare(ctx, &entity, name, table)
	if err != nil {
		var mismatch *schema.MismatchError
		if stderrors.As(err, &mismatch) {
			return nil, errors.NewSchemaMismatch(entity.Name, mismatch.Error(), mismatch.Missing, mismatch.Headers, err)
		}
		if stderrors.Is(err, storage.ErrClosed) {
			return nil, errors.NewStoreError("Store is closed", err.Error(), "Retry the import", err)
		}
		return nil, errors.NewSystemFailure("Upload could not start", err)
	}

	return up.Run(ctx, rep), nil
}
