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
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/bulkload/internal/errors"
	"github.com/kraklabs/bulkload/internal/output"
	"github.com/kraklabs/bulkload/internal/ui"
	"github.com/kraklabs/bulkload/pkg/ingestion"
)

// runReport executes the 'report' CLI command for saved terminal reports.
//
// Subcommands:
//   - list: Saved reports, newest first (default)
//   - show <id>: One report with its row outcomes
//   - delete <id>: Remove a report
func runReport(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	all := fs.Bool("all", false, "show: list every row outcome")
	limit := fs.Int("limit", 20, "list: maximum number of reports")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bulkload report [list|show <id>|delete <id>] [options]

Reports are the final snapshot of each upload, saved when the upload
completes or fails.

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
	reports, err := cfg.Reports()
	if err != nil {
		errors.FatalError(errors.NewConfigError("Cannot locate the reports directory", err.Error(), "Set reports_dir in .bulkload/config.yaml", err), globals.JSON)
	}

	sub := "list"
	if fs.NArg() > 0 {
		sub = fs.Arg(0)
	}
	needID := func() string {
		if fs.NArg() != 2 {
			errors.FatalError(errors.NewInputError(
				"Missing upload id",
				fmt.Sprintf("'report %s' needs an upload id", sub),
				"Run 'bulkload report list' to find one",
			), globals.JSON)
		}
		return fs.Arg(1)
	}

	switch sub {
	case "list":
		listReports(reports, *limit, globals)
	case "show":
		snap := loadReport(reports, needID(), globals)
		if globals.JSON {
			_ = output.JSON(snap)
			return
		}
		max := 50
		if *all {
			max = -1
		}
		printReport(os.Stdout, snap, max)
	case "delete":
		id := needID()
		loadReport(reports, id, globals)
		if err := reports.Delete(id); err != nil {
			errors.FatalError(errors.NewPermissionError("Cannot delete report", err.Error(), "Check the permissions of "+reports.Dir(), err), globals.JSON)
		}
		if !globals.Quiet {
			ui.Successf("Deleted report %s", id)
		}
	default:
		errors.FatalError(errors.NewInputError(
			fmt.Sprintf("Unknown report command %q", sub),
			"report accepts list, show or delete",
			"Run 'bulkload report --help'",
		), globals.JSON)
	}
}

func loadReport(reports *ingestion.ReportStore, id string, globals GlobalFlags) *ingestion.Snapshot {
	snap, err := reports.Load(id)
	if err != nil {
		errors.FatalError(errors.NewInputError("Invalid upload id", err.Error(), "Upload ids are UUIDs; see 'bulkload report list'"), globals.JSON)
	}
	if snap == nil {
		errors.FatalError(errors.NewNotFoundError(
			"Report not found",
			fmt.Sprintf("No report for upload %s in %s", id, reports.Dir()),
			"Run 'bulkload report list' to see saved reports",
		), globals.JSON)
	}
	return snap
}

func listReports(reports *ingestion.ReportStore, limit int, globals GlobalFlags) {
	infos, err := reports.List()
	if err != nil {
		errors.FatalError(errors.NewPermissionError("Cannot list reports", err.Error(), "Check the permissions of "+reports.Dir(), err), globals.JSON)
	}
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	if globals.JSON {
		if infos == nil {
			infos = []ingestion.ReportInfo{}
		}
		_ = output.JSON(infos)
		return
	}
	if len(infos) == 0 {
		fmt.Printf("No reports in %s\n", reports.Dir())
		return
	}

	ui.Header("Upload Reports")
	for _, info := range infos {
		fmt.Printf("  %s  %-10s %-9s %s\n",
			info.UploadID,
			info.Entity,
			ui.StatusText(string(info.Status)),
			ui.DimText(info.Timestamp.Local().Format(time.DateTime)),
		)
		if info.Message != "" {
			fmt.Printf("  %s\n", ui.Truncate(info.Message, 100))
		}
	}
}
