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
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/bulkload/internal/ui"
	"github.com/kraklabs/bulkload/pkg/ingestion"
	"github.com/kraklabs/bulkload/pkg/schema"
)

// printReport renders a terminal snapshot. At most maxOutcomes outcomes are
// listed, failed rows first; a negative value lists all of them.
func printReport(w io.Writer, snap *ingestion.Snapshot, maxOutcomes int) {
	s := snap.Summary

	fmt.Fprintf(w, "%s %s\n", ui.Label("Upload:"), snap.UploadID)
	fmt.Fprintf(w, "%s %s", ui.Label("Entity:"), snap.Entity)
	if snap.FileName != "" {
		fmt.Fprintf(w, " %s", ui.DimText("("+snap.FileName+")"))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s", ui.Label("Status:"), ui.StatusText(string(snap.Status)))
	if snap.DurationMS > 0 {
		fmt.Fprintf(w, " in %s", (time.Duration(snap.DurationMS) * time.Millisecond).String())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Records:     %s\n", ui.CountText(s.TotalRecords))
	fmt.Fprintf(w, "  Created:     %s\n", ui.CountText(s.Created))
	fmt.Fprintf(w, "  Updated:     %s\n", ui.CountText(s.Updated))
	fmt.Fprintf(w, "  Skipped:     %s %s\n", ui.CountText(s.SkippedTotal),
		ui.DimText(fmt.Sprintf("(%d duplicate, %d unchanged)", s.Duplicates, s.NoChanges)))
	fmt.Fprintf(w, "  Failed:      %s\n", ui.CountText(s.Failed))
	fmt.Fprintf(w, "  Existing:    %s\n", ui.CountText(s.Existing))

	if len(s.StatusChanges) > 0 {
		values := make([]string, 0, len(s.StatusChanges))
		for v := range s.StatusChanges {
			values = append(values, v)
		}
		sort.Strings(values)
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("%s %d", v, s.StatusChanges[v])
		}
		fmt.Fprintf(w, "  Status set:  %s\n", strings.Join(parts, ", "))
	}

	if len(snap.Unmapped) > 0 {
		fmt.Fprintf(w, "\n%s %s\n", ui.Label("Ignored columns:"), strings.Join(snap.Unmapped, ", "))
	}
	for _, wr := range snap.Warnings {
		fmt.Fprintf(w, "%s row %d: %s\n", ui.Label("Warning:"), wr.Row, wr.Message)
	}

	if snap.Message != "" {
		fmt.Fprintf(w, "\n%s\n", snap.Message)
	}
	if snap.Error != "" {
		fmt.Fprintf(w, "%s %s\n", ui.Label("Error:"), snap.Error)
	}

	printOutcomes(w, snap.Outcomes, maxOutcomes)
}

// printOutcomes lists outcomes, failed and skipped rows before the rest,
// each group in row order.
func printOutcomes(w io.Writer, outcomes []ingestion.RecordOutcome, max int) {
	if len(outcomes) == 0 || max == 0 {
		return
	}

	rank := map[ingestion.OutcomeStatus]int{
		ingestion.OutcomeFailed:  0,
		ingestion.OutcomeSkipped: 1,
		ingestion.OutcomeUpdated: 2,
		ingestion.OutcomeCreated: 3,
	}
	sorted := append([]ingestion.RecordOutcome(nil), outcomes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return rank[sorted[i].Status] < rank[sorted[j].Status]
	})

	shown := sorted
	if max > 0 && len(shown) > max {
		shown = shown[:max]
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-6s %-20s %-9s %s\n", "ROW", "KEY", "STATUS", "DETAIL")
	for _, o := range shown {
		detail := o.Action
		if o.Error != "" {
			detail = o.Error
		} else if len(o.Changes) > 0 {
			fields := make([]string, len(o.Changes))
			for i, c := range o.Changes {
				fields[i] = c.Field
			}
			detail = o.Action + ": " + strings.Join(fields, ", ")
		}
		// Pad before coloring so escape codes do not break alignment.
		status := fmt.Sprintf("%-9s", o.Status)
		status = strings.Replace(status, string(o.Status), ui.OutcomeText(string(o.Status)), 1)
		fmt.Fprintf(w, "  %-6d %-20s %s %s\n", o.Row, ui.Truncate(o.Key, 20), status, ui.Truncate(detail, 80))
	}
	if rest := len(sorted) - len(shown); rest > 0 {
		fmt.Fprintf(w, "  %s\n", ui.DimText(fmt.Sprintf("... %d more rows (use --all to list every row)", rest)))
	}
}

// printEntity renders an entity's fields and accepted headers.
func printEntity(w io.Writer, e schema.Entity) {
	fmt.Fprintf(w, "%s %s", ui.Label("Entity:"), e.Name)
	if e.Description != "" {
		fmt.Fprintf(w, " %s", ui.DimText("- "+e.Description))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s %s  %s %s\n", ui.Label("Key:"), e.Key, ui.Label("Collection:"), e.CollectionName())
	fmt.Fprintln(w)

	for _, f := range e.Fields {
		flags := []string{string(f.Kind)}
		if f.Required {
			flags = append(flags, "required")
		}
		if f.Tracked {
			flags = append(flags, "tracked")
		}
		if len(f.Values) > 0 {
			flags = append(flags, "one of "+strings.Join(f.Values, "|"))
		}
		if f.MaxLength > 0 {
			flags = append(flags, fmt.Sprintf("max %d chars", f.MaxLength))
		}
		fmt.Fprintf(w, "  %-16s %s\n", f.Name, ui.DimText(strings.Join(flags, ", ")))
		if len(f.Aliases) > 0 {
			fmt.Fprintf(w, "  %-16s headers: %s\n", "", strings.Join(f.Aliases, ", "))
		}
	}
}
