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
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/bulkload/internal/contract"
	"github.com/kraklabs/bulkload/internal/errors"
	"github.com/kraklabs/bulkload/internal/output"
	"github.com/kraklabs/bulkload/internal/ui"
	"github.com/kraklabs/bulkload/pkg/schema"
)

// runEntities executes the 'entities' CLI command, listing the registered
// entities or showing one in detail.
//
// Examples:
//
//	bulkload entities              List entity names
//	bulkload entities material     Show material fields and accepted headers
//	bulkload --json entities       All entities as JSON
func runEntities(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("entities", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bulkload entities [name]

Shows the entities files can be uploaded for. With a name, shows the
entity's fields and every header spelling that maps to each field.
Headers match case-insensitively, ignoring spaces and punctuation.
`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	reg, err := cfg.Registry()
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if fs.NArg() == 0 {
		listEntities(reg, globals)
		return
	}

	e, ok := reg.Get(fs.Arg(0))
	if !ok {
		errors.FatalError(errors.NewNotFoundError(
			fmt.Sprintf("Unknown entity %q", fs.Arg(0)),
			"No entity with that name is registered",
			"Run 'bulkload entities' to list entity names",
		), globals.JSON)
	}
	if globals.JSON {
		_ = output.JSON(e)
		return
	}
	printEntity(os.Stdout, e)
}

func listEntities(reg *schema.Registry, globals GlobalFlags) {
	entities := reg.List()
	if globals.JSON {
		_ = output.JSON(entities)
		return
	}

	ui.Header("Entities")
	for _, e := range entities {
		required := e.RequiredFields()
		fmt.Printf("  %-12s %s\n", e.Name, ui.DimText(e.Description))
		fmt.Printf("  %-12s key %s, required: %v\n", "", e.Key, required)
	}
	fmt.Println()
	ui.SubHeader("Accepted files:")
	fmt.Printf("  %s, up to %d bytes\n", strings.Join(contract.AllowedExtensions(), " "), contract.MaxUploadBytes())
	fmt.Println()
	fmt.Println("Run 'bulkload entities <name>' to see accepted headers.")
}
