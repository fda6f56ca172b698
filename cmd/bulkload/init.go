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
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/bulkload/internal/bootstrap"
	"github.com/kraklabs/bulkload/internal/errors"
	"github.com/kraklabs/bulkload/internal/output"
	"github.com/kraklabs/bulkload/internal/ui"
	"github.com/kraklabs/bulkload/pkg/storage"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force, nonInteractive bool
	engine, dataDir       string
	mongoURI, mongoDB     string
	serverAddr            string
}

// runInit executes the 'init' CLI command: it writes .bulkload/config.yaml
// and creates one collection per registered entity in the configured store.
//
// Flags:
//   - --force: Overwrite existing configuration (default: false)
//   - -y: Non-interactive mode, use all defaults (default: false)
//   - --engine: Store engine (bolt, mem, mongo)
//   - --data-dir: Bolt data directory
//   - --mongo-uri, --mongo-database: MongoDB settings
//   - --addr: Server listen address
//
// Examples:
//
//	bulkload init                      Interactive setup
//	bulkload init -y                   Use all defaults
//	bulkload init -y --engine mongo --mongo-uri mongodb://localhost:27017 --mongo-database erp
func runInit(args []string, configPath string, globals GlobalFlags) {
	flags := parseInitFlags(args)

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewPermissionError("Cannot get current directory", err.Error(), "Run init from a readable directory", err), globals.JSON)
	}

	if configPath == "" {
		configPath = ConfigPath(cwd)
	}
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		errors.FatalError(errors.NewConfigError(
			"Configuration already exists",
			configPath+" is already present",
			"Use --force to overwrite it",
			nil,
		), globals.JSON)
	}

	cfg := createInitConfig(flags)
	if !flags.nonInteractive && !globals.JSON {
		runInteractiveConfig(bufio.NewReader(os.Stdin), cfg)
	}
	if err := cfg.Validate(); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if err := SaveConfig(cfg, configPath); err != nil {
		errors.FatalError(errors.NewPermissionError("Cannot save configuration", err.Error(), "Check the permissions of "+filepath.Dir(configPath), err), globals.JSON)
	}
	cfg.dir = filepath.Dir(configPath)
	addToGitignore(cwd)

	reg, err := cfg.Registry()
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	info, err := bootstrap.InitStore(context.Background(), cfg.StoreConfig(), reg, newLogger(globals, slog.LevelWarn))
	if err != nil {
		errors.FatalError(errors.NewStoreError(
			"Cannot prepare the store",
			err.Error(),
			"Check the store settings in "+configPath,
			err,
		), globals.JSON)
	}

	if globals.JSON {
		_ = output.JSON(map[string]any{
			"config":      configPath,
			"engine":      info.Engine,
			"location":    info.Location,
			"collections": info.Collections,
		})
		return
	}

	ui.Successf("Created %s", configPath)
	ui.Successf("Store ready: %s at %s (%s)", info.Engine, info.Location, strings.Join(info.Collections, ", "))
	printNextSteps()
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVarP(&f.nonInteractive, "yes", "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.engine, "engine", "", "Store engine: bolt, mem or mongo")
	fs.StringVar(&f.dataDir, "data-dir", "", "Bolt data directory (default ~/.bulkload/data)")
	fs.StringVar(&f.mongoURI, "mongo-uri", "", "MongoDB connection string")
	fs.StringVar(&f.mongoDB, "mongo-database", "", "MongoDB database name")
	fs.StringVar(&f.serverAddr, "addr", "", "Server listen address")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bulkload init [options]

Creates .bulkload/config.yaml and prepares the store.

Examples:
  bulkload init -y
  bulkload init -y --engine mongo --mongo-uri mongodb://localhost:27017 --mongo-database erp

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

func createInitConfig(f initFlags) *Config {
	cfg := DefaultConfig()
	if f.engine != "" {
		cfg.Store.Engine = f.engine
	}
	if f.dataDir != "" {
		cfg.Store.DataDir = f.dataDir
	}
	if f.mongoURI != "" {
		cfg.Store.MongoURI = f.mongoURI
	}
	if f.mongoDB != "" {
		cfg.Store.MongoDatabase = f.mongoDB
	}
	if f.serverAddr != "" {
		cfg.Server.Addr = f.serverAddr
	}
	return cfg
}

func runInteractiveConfig(reader *bufio.Reader, cfg *Config) {
	ui.Header("bulkload Configuration")
	fmt.Println()

	fmt.Println("Store engines: bolt (local file), mongo, mem (testing only)")
	cfg.Store.Engine = prompt(reader, "Store engine", cfg.Store.Engine)
	switch cfg.Store.Engine {
	case storage.EngineBolt:
		cfg.Store.DataDir = prompt(reader, "Data directory (empty for ~/.bulkload/data)", cfg.Store.DataDir)
	case bootstrap.EngineMongo:
		cfg.Store.MongoURI = prompt(reader, "MongoDB URI", cfg.Store.MongoURI)
		cfg.Store.MongoDatabase = prompt(reader, "MongoDB database", cfg.Store.MongoDatabase)
	}

	fmt.Println()
	cfg.Server.Addr = prompt(reader, "Server listen address", cfg.Server.Addr)
	fmt.Println()
}

func printNextSteps() {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .bulkload/config.yaml if needed")
	fmt.Println("  2. Run 'bulkload entities' to see which headers each entity accepts")
	fmt.Println("  3. Run 'bulkload serve', or 'bulkload import <entity> <file>' without a server")
}

// prompt displays an interactive prompt and reads user input from stdin.
//
// If the user presses Enter without providing input, the defaultValue is returned.
func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}

// addToGitignore adds .bulkload/ to the .gitignore in dir if one exists and
// does not list it yet.
func addToGitignore(dir string) {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: gitignorePath built from working dir
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(content), "\n") {
		switch strings.TrimSpace(line) {
		case ".bulkload/", ".bulkload", "/.bulkload/", "/.bulkload":
			return
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: gitignorePath built from working dir
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}
	_, _ = f.WriteString("\n# bulkload configuration and local data\n.bulkload/\n")
}
