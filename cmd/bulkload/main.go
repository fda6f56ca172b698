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

// Package main implements the bulkload CLI: an upload server for entity
// spreadsheets, a client that streams files to it, and a local importer.
//
// Usage:
//
//	bulkload init                         Create .bulkload/config.yaml and prepare the store
//	bulkload serve                        Start the upload server
//	bulkload upload <entity> <file>       Upload a file to a running server
//	bulkload import <entity> <file>       Reconcile a file against the local store
//	bulkload entities [name]              Show registered entities and their headers
//	bulkload report [list|show|delete]    Inspect saved upload reports
package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/bulkload/internal/output"
	"github.com/kraklabs/bulkload/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags are the options accepted before the command name.
type GlobalFlags struct {
	JSON    bool
	Quiet   bool
	NoColor bool
	Verbose int
}

// main parses global flags and dispatches to a command handler.
//
// Global flags:
//   - --config: Path to .bulkload/config.yaml
//   - --json: Machine-readable output (implies --quiet)
//   - -q/--quiet: No progress bars
//   - --no-color: Disable colored output
//   - -v/--verbose: Log level (-v info, -vv debug)
//   - --version: Display version information and exit
func main() {
	var (
		globals     GlobalFlags
		showVersion bool
		configPath  string
	)

	flag.CommandLine.SetInterspersed(false)
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.StringVar(&configPath, "config", "", "Path to .bulkload/config.yaml (default: ./.bulkload/config.yaml)")
	flag.BoolVar(&globals.JSON, "json", false, "Output as JSON")
	flag.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	flag.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	flag.CountVarP(&globals.Verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `bulkload - spreadsheet ingestion and reconciliation

bulkload maps the columns of a CSV or Excel file onto an entity schema,
validates every row, and creates or updates the matching records in a
keyed store. Progress is streamed while the file is processed and every
row ends with a created, updated, skipped or failed outcome.

Usage:
  bulkload [global options] <command> [options]

Commands:
  init          Create .bulkload/config.yaml and prepare the store
  serve         Start the upload server
  upload        Upload a file to a running server
  import        Reconcile a file against the configured store directly
  entities      Show registered entities and accepted headers
  report        List, show or delete saved upload reports
  completion    Generate shell completion script (bash|zsh|fish)

Global Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  bulkload init -y                         Use defaults (bolt store in ~/.bulkload/data)
  bulkload serve --addr :8080              Accept uploads on port 8080
  bulkload upload material materials.xlsx  Send a file and watch progress
  bulkload import warranty warranties.csv  Process a file without a server
  bulkload entities material               Show the headers a material file may use
  bulkload report show <upload-id>         Show a saved report

Environment Variables:
  BULKLOAD_STORE_ENGINE      Store engine: bolt, mem or mongo
  BULKLOAD_DATA_DIR          Bolt data directory
  BULKLOAD_MONGO_URI         MongoDB connection string
  BULKLOAD_MONGO_DATABASE    MongoDB database
  BULKLOAD_ADDR              Server listen address
  BULKLOAD_SERVER_URL        Server used by 'bulkload upload'
  BULKLOAD_REPORTS_DIR       Where terminal reports are saved
  BULKLOAD_MAX_UPLOAD_BYTES  Upload size limit (default 50 MiB)
  SENTRY_DSN                 Report server errors to Sentry

For detailed command help: bulkload <command> --help

`)
	}

	flag.Parse()

	if globals.JSON {
		globals.Quiet = true
	}
	ui.InitColors(globals.NoColor || os.Getenv("NO_COLOR") != "")

	if showVersion {
		if globals.JSON {
			_ = output.JSONCompact(map[string]string{"version": version, "commit": commit, "built": date})
			os.Exit(0)
		}
		fmt.Printf("bulkload version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, configPath, globals)
	case "serve":
		runServe(cmdArgs, configPath, globals)
	case "upload":
		runUpload(cmdArgs, configPath, globals)
	case "import":
		runImport(cmdArgs, configPath, globals)
	case "entities":
		runEntities(cmdArgs, configPath, globals)
	case "report":
		runReport(cmdArgs, configPath, globals)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

// newLogger builds the CLI logger. Logs go to stderr so stdout stays clean
// for --json output.
func newLogger(globals GlobalFlags, base slog.Level) *slog.Logger {
	level := base
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose == 1 && level > slog.LevelInfo:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
