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

// Package ingestion reconciles uploaded tables against stored entities.
//
// An upload is a decoded table (see package parser) bound to one entity
// schema (see package schema). The pipeline cleans every row, drops keys
// already seen earlier in the file, looks the remaining keys up in the
// store, and writes creates and partial updates in bounded chunks. Every
// input row ends with exactly one RecordOutcome, and the running Summary
// always satisfies
//
//	Processed == Created + Updated + Skipped + Failed
//
// # Pipeline Overview
//
// Rows move through four stages:
//
//  1. Batching: rows are split into fixed-size batches in file order
//  2. Preparation: values are cleaned and in-file duplicates are marked skipped
//  3. Reconciliation: one key lookup per batch, then a diff against the match
//  4. Persistence: create and update ops go out in chunks of WriteChunkSize
//
// Preparation runs in file order on a single goroutine, so the first
// occurrence of a key always wins. Reconciliation and persistence of up to
// Concurrency batches overlap.
//
// # Quick Start
//
//	table, err := parser.Decode(name, contentType, data)
//	if err != nil {
//	    return err
//	}
//	entity, _ := schema.DefaultRegistry().Get("material")
//
//	p := ingestion.NewPipeline(store, ingestion.DefaultConfig(), logger)
//	up, err := p.Prepare(ctx, &entity, name, table)
//	if err != nil {
//	    return err // *schema.MismatchError when required columns are absent
//	}
//	final := up.Run(ctx, ingestion.ReporterFunc(func(ctx context.Context, s *ingestion.Snapshot) error {
//	    return stream.Write(s)
//	}))
//	fmt.Println(final.Message)
//
// # Progress Snapshots
//
// Run hands the Reporter one Snapshot when streaming starts, one per
// dispatched batch, one per completed batch and one terminal snapshot
// (completed or failed). The session status only moves forward:
// received, validating, streaming, then completed or failed. A Reporter
// error stops further reports but never stops the upload.
//
// # Reports
//
// When a ReportStore is attached with WithReports, the terminal snapshot of
// each upload is saved as report-<upload id>.json so it can be fetched after
// the stream is gone.
//
// # Metrics
//
// Prometheus counters and histograms are registered on first use under the
// bulkload_ prefix: uploads and records by outcome, batches, write chunks,
// lookup and write latencies.
package ingestion
