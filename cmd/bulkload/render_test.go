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
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/kraklabs/bulkload/pkg/ingestion"
	"github.com/kraklabs/bulkload/pkg/parser"
	"github.com/kraklabs/bulkload/pkg/schema"
)

func noColor(t *testing.T) {
	t.Helper()
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })
}

func sampleSnapshot() *ingestion.Snapshot {
	return &ingestion.Snapshot{
		UploadID:   "9b2f7c1e-0d4a-4f7e-9a53-2c1d8e6f0a11",
		Entity:     "material",
		FileName:   "materials.csv",
		Status:     ingestion.StatusCompleted,
		DurationMS: 1500,
		Summary: ingestion.Summary{
			TotalRecords:  4,
			Processed:     4,
			Created:       1,
			Updated:       1,
			Failed:        1,
			Duplicates:    1,
			SkippedTotal:  1,
			Existing:      1,
			StatusChanges: map[string]int{"Inactive": 1},
		},
		Unmapped: []string{"Notes"},
		Warnings: []parser.Warning{{Row: 5, Message: "row has more cells than headers"}},
		Outcomes: []ingestion.RecordOutcome{
			{Row: 2, Key: "M-1", Status: ingestion.OutcomeCreated, Action: ingestion.ActionCreated},
			{Row: 3, Key: "M-2", Status: ingestion.OutcomeUpdated, Action: ingestion.ActionUpdated,
				Changes: []ingestion.ChangeDetail{{Field: "status", OldValue: "Active", NewValue: "Inactive"}}},
			{Row: 4, Key: "M-1", Status: ingestion.OutcomeSkipped, Action: ingestion.ActionDuplicate},
			{Row: 5, Key: "", Status: ingestion.OutcomeFailed, Action: ingestion.ActionInvalid, Error: "materialCode is required"},
		},
	}
}

func TestPrintReport(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	printReport(&buf, sampleSnapshot(), -1)
	out := buf.String()

	for _, want := range []string{
		"Upload: 9b2f7c1e-0d4a-4f7e-9a53-2c1d8e6f0a11",
		"Entity: material (materials.csv)",
		"Status: completed in 1.5s",
		"Created:     1",
		"Skipped:     1 (1 duplicate, 0 unchanged)",
		"Status set:  Inactive 1",
		"Ignored columns: Notes",
		"Warning: row 5: row has more cells than headers",
		"updated: status",
		"materialCode is required",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printReport() output missing %q\nGot:\n%s", want, out)
		}
	}
	if strings.Contains(out, "more rows") {
		t.Errorf("printReport() with no limit should list every row\nGot:\n%s", out)
	}
}

func TestPrintOutcomes_FailedFirstAndLimit(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	printOutcomes(&buf, sampleSnapshot().Outcomes, 2)
	out := buf.String()

	failed := strings.Index(out, "materialCode is required")
	skipped := strings.Index(out, "duplicate in file")
	if failed < 0 || skipped < 0 || failed > skipped {
		t.Errorf("failed row should come before skipped row\nGot:\n%s", out)
	}
	if strings.Contains(out, "M-2") {
		t.Errorf("updated row should be cut by the limit\nGot:\n%s", out)
	}
	if !strings.Contains(out, "... 2 more rows") {
		t.Errorf("missing truncation line\nGot:\n%s", out)
	}
}

func TestPrintOutcomes_ZeroLimit(t *testing.T) {
	var buf bytes.Buffer
	printOutcomes(&buf, sampleSnapshot().Outcomes, 0)
	if buf.Len() != 0 {
		t.Errorf("printOutcomes() with limit 0 wrote %q", buf.String())
	}
}

func TestPrintEntity(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	printEntity(&buf, schema.Material())
	out := buf.String()

	for _, want := range []string{"Entity: material", "Key: materialCode", "required", "tracked", "headers: material code"} {
		if !strings.Contains(out, want) {
			t.Errorf("printEntity() output missing %q\nGot:\n%s", want, out)
		}
	}
}
