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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/bulkload/pkg/parser"
	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

// Timestamp fields set on every write.
const (
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Pipeline runs uploads against one store.
type Pipeline struct {
	cfg     Config
	store   storage.Store
	reports *ReportStore
	logger  *slog.Logger
}

// NewPipeline creates a pipeline. Zero config values use the defaults.
func NewPipeline(store storage.Store, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg.withDefaults(), store: store, logger: logger}
}

// WithReports makes the pipeline save every terminal snapshot to rs.
func (p *Pipeline) WithReports(rs *ReportStore) *Pipeline {
	p.reports = rs
	return p
}

// Config returns the effective tuning.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Upload is one prepared file, ready to run.
type Upload struct {
	ID string

	p       *Pipeline
	entity  *schema.Entity
	table   *parser.Table
	mapping *schema.FieldMapping
	cleaner *Cleaner
	keys    *KeySet
	writer  *Writer
	sess    *session
	logger  *slog.Logger

	reporter     Reporter
	reporterDead bool
}

// Prepare binds a decoded table to an entity. It fails with a
// *schema.MismatchError when a required field has no column, and with a
// plain error when the store cannot be prepared. Nothing is written and no
// snapshot is sent when Prepare fails.
func (p *Pipeline) Prepare(ctx context.Context, e *schema.Entity, fileName string, table *parser.Table) (*Upload, error) {
	id := uuid.NewString()
	sess := newSession(id, e.Name, fileName, len(table.Rows))
	sess.advance(StatusValidating)

	logger := p.logger.With("upload_id", id, "entity", e.Name)

	mapping, err := schema.MapHeaders(e, table.Headers)
	if err != nil {
		sess.finish(err)
		logger.Info("upload.rejected", "file", fileName, "err", err)
		return nil, err
	}
	sess.setMapping(mapping, table.Warnings)

	coll := storage.Collection{Name: e.CollectionName(), KeyField: e.Key}
	if err := p.store.EnsureCollection(ctx, coll); err != nil {
		sess.finish(err)
		return nil, fmt.Errorf("prepare collection %s: %w", coll.Name, err)
	}

	logger.Info("upload.prepared",
		"file", fileName,
		"format", table.Format,
		"rows", len(table.Rows),
		"mapped", len(mapping.Bindings),
		"unmapped", len(mapping.Unmapped),
	)

	return &Upload{
		ID:      id,
		p:       p,
		entity:  e,
		table:   table,
		mapping: mapping,
		cleaner: NewCleaner(e, mapping),
		keys:    NewKeySet(),
		writer:  NewWriter(p.store, coll.Name, p.cfg.WriteChunkSize, logger),
		sess:    sess,
		logger:  logger,
	}, nil
}

// Entity returns the entity the upload is bound to.
func (u *Upload) Entity() *schema.Entity {
	return u.entity
}

// Mapping returns the header mapping.
func (u *Upload) Mapping() *schema.FieldMapping {
	return u.mapping
}

// TotalRecords returns the number of data rows in the file.
func (u *Upload) TotalRecords() int {
	return len(u.table.Rows)
}

// Run processes every row and returns the terminal snapshot. Snapshots are
// sent to rep as the upload progresses; rep may be nil.
//
// Run does not stop when ctx is cancelled: writes that were issued finish
// and are reported. Stores apply their own per-call deadlines.
func (u *Upload) Run(ctx context.Context, rep Reporter) (final *Snapshot) {
	if rep == nil {
		rep = Discard
	}
	u.reporter = rep
	ctx = context.WithoutCancel(ctx)

	if !u.sess.advance(StatusStreaming) {
		return u.sess.finish(fmt.Errorf("upload %s already ran", u.ID))
	}

	defer func() {
		if r := recover(); r != nil {
			u.logger.Error("upload.panic", "panic", r, "stack", string(debug.Stack()))
			final = u.finish(ctx, fmt.Errorf("internal error: %v", r))
		}
	}()

	batches := NewBatcher(u.p.cfg.BatchSize).Batch(u.table.Rows)
	u.sess.setBatches(len(batches))
	u.emit(ctx, u.sess.startedSnapshot())

	err := u.schedule(ctx, batches)
	return u.finish(ctx, err)
}

// batchWork is a batch after validation and dedup, ready for its lookup.
type batchWork struct {
	index    int
	outcomes []RecordOutcome
	delta    Summary
	pending  []pendingRecord
}

// pendingRecord is a valid, first-seen record awaiting its diff.
type pendingRecord struct {
	pos int
	row int
	key string
	rec Record
}

// batchResult is what a finished batch sends back to the driver.
type batchResult struct {
	index    int
	outcomes []RecordOutcome
	delta    Summary
	err      error
}

// schedule prepares batches in order on the calling goroutine and runs their
// lookups and writes with at most cfg.Concurrency in flight. When the limit
// is reached it waits for whichever batch finishes first.
func (u *Upload) schedule(ctx context.Context, batches []Batch) error {
	limit := u.p.cfg.Concurrency
	done := make(chan batchResult, limit)
	inFlight := 0
	var fatal error

	collect := func(r batchResult) {
		inFlight--
		if r.err != nil {
			if fatal == nil {
				fatal = r.err
			}
			return
		}
		u.logger.Debug("upload.batch.complete",
			"batch", r.index,
			"created", r.delta.Created,
			"updated", r.delta.Updated,
			"failed", r.delta.Failed,
			"skipped", r.delta.SkippedTotal,
		)
		u.emit(ctx, u.sess.batchDone(r.index, r.outcomes, r.delta, u.p.cfg.PreviewSize))
	}

	for _, b := range batches {
		if inFlight == limit {
			collect(<-done)
		}
		if fatal != nil {
			break
		}

		work := u.prepareBatch(b)
		u.emit(ctx, u.sess.dispatch(b.Index))
		inFlight++
		go u.persist(ctx, work, done)
	}

	for inFlight > 0 {
		collect(<-done)
	}
	return fatal
}

// prepareBatch cleans and deduplicates a batch. It runs on the driver
// goroutine only, so key claims happen in file order.
func (u *Upload) prepareBatch(b Batch) *batchWork {
	w := &batchWork{
		index:    b.Index,
		outcomes: make([]RecordOutcome, len(b.Rows)),
	}

	for pos, row := range b.Rows {
		w.delta.Processed++
		res := u.cleaner.Clean(row)
		key := canonicalString(res.Record.Values[u.entity.Key])

		o := &w.outcomes[pos]
		o.Row = row.Number
		o.Key = key
		o.Warnings = res.Warnings

		if !res.OK() {
			o.Status = OutcomeFailed
			o.Action = ActionInvalid
			o.Error = strings.Join(res.Errors, "; ")
			w.delta.Failed++
			continue
		}

		if first, ok := u.keys.Claim(key, row.Number); !ok {
			o.Status = OutcomeSkipped
			o.Action = ActionDuplicate
			o.Error = fmt.Sprintf("%s %q already appears on row %d", u.entity.Key, key, first)
			w.delta.Duplicates++
			w.delta.SkippedTotal++
			continue
		}

		w.pending = append(w.pending, pendingRecord{pos: pos, row: row.Number, key: key, rec: res.Record})
	}
	return w
}

// persist runs one batch's lookup, diff and writes and reports the result on
// done. A panic is reported as a fatal batch error.
func (u *Upload) persist(ctx context.Context, w *batchWork, done chan<- batchResult) {
	defer func() {
		if r := recover(); r != nil {
			u.logger.Error("upload.batch.panic", "batch", w.index, "panic", r, "stack", string(debug.Stack()))
			done <- batchResult{index: w.index, err: fmt.Errorf("batch %d: %v", w.index, r)}
		}
	}()

	t0 := time.Now()
	if err := u.resolve(ctx, w); err != nil {
		u.logger.Error("upload.batch.error", "batch", w.index, "err", err)
		done <- batchResult{index: w.index, err: fmt.Errorf("batch %d: %w", w.index, err)}
		return
	}
	recordBatch(time.Since(t0))

	done <- batchResult{index: w.index, outcomes: w.outcomes, delta: w.delta}
}

// resolve fills the outcomes of w's pending records. Store failures become
// outcomes; an error means the batch could not be resolved at all.
func (u *Upload) resolve(ctx context.Context, w *batchWork) error {
	if len(w.pending) == 0 {
		return nil
	}
	coll := u.entity.CollectionName()

	keys := make([]string, len(w.pending))
	for i, pr := range w.pending {
		keys[i] = pr.key
	}

	t0 := time.Now()
	stored, err := u.p.store.FindByKeys(ctx, coll, keys)
	recordLookup(time.Since(t0), err)
	if err != nil {
		u.logger.Warn("upload.lookup.error", "batch", w.index, "keys", len(keys), "err", err)
		for _, pr := range w.pending {
			o := &w.outcomes[pr.pos]
			o.Status = OutcomeFailed
			o.Action = ActionLookupFailed
			o.Error = err.Error()
			w.delta.Failed++
		}
		return nil
	}

	now := time.Now().UTC()
	var creates, updates []storage.WriteOp
	byID := make(map[string]int, len(w.pending))
	newStatus := make(map[int]string)

	for i := range w.pending {
		pr := &w.pending[i]
		o := &w.outcomes[pr.pos]
		d := Diff(u.entity, &pr.rec, stored[pr.key])
		id := correlationID(pr.row)

		switch {
		case !d.Exists:
			fields := make(storage.Document, len(pr.rec.Values)+2)
			for k, v := range pr.rec.Values {
				fields[k] = v
			}
			fields[FieldCreatedAt] = now
			fields[FieldUpdatedAt] = now
			creates = append(creates, storage.WriteOp{ID: id, Kind: storage.OpInsert, Key: pr.key, Fields: fields})
			byID[id] = pr.pos

			o.Status = OutcomeCreated
			o.Action = ActionCreated
			w.delta.Created++

		case !d.HasChanges():
			o.Status = OutcomeSkipped
			o.Action = ActionNoChanges
			w.delta.NoChanges++
			w.delta.SkippedTotal++
			w.delta.Existing++

		default:
			fields := make(storage.Document, len(pr.rec.Provided)+1)
			for name := range pr.rec.Provided {
				fields[name] = pr.rec.Values[name]
			}
			fields[FieldUpdatedAt] = now
			updates = append(updates, storage.WriteOp{ID: id, Kind: storage.OpUpdate, Key: pr.key, Fields: fields})
			byID[id] = pr.pos

			o.Status = OutcomeUpdated
			o.Action = ActionUpdated
			o.Changes = d.Changes
			o.StatusChanged = d.StatusChanged
			w.delta.Updated++
			w.delta.Existing++
			if d.StatusChanged {
				newStatus[pr.pos] = d.Status
				w.delta.tallyStatus(d.Status, 1)
			}
		}
	}

	var createFailures, updateFailures []storage.OpFailure
	var g errgroup.Group
	g.Go(func() (err error) {
		defer recoverAsError(&err)
		createFailures = u.writer.Write(ctx, creates)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverAsError(&err)
		updateFailures = u.writer.Write(ctx, updates)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, f := range append(createFailures, updateFailures...) {
		pos, ok := byID[f.ID]
		if !ok {
			u.logger.Warn("upload.write.unknown_op", "id", f.ID, "key", f.Key)
			continue
		}
		o := &w.outcomes[pos]
		switch o.Status {
		case OutcomeCreated:
			w.delta.Created--
		case OutcomeUpdated:
			w.delta.Updated--
			if o.StatusChanged {
				w.delta.tallyStatus(newStatus[pos], -1)
			}
		}
		o.Status = OutcomeFailed
		o.Action = ActionWriteFailed
		o.Error = f.Reason
		o.StatusChanged = false
		w.delta.Failed++
	}
	return nil
}

// recoverAsError turns a panic in a write goroutine into its error result.
func recoverAsError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("write panic: %v", r)
	}
}

// correlationID names the write op for a row; stores echo it back.
func correlationID(row int) string {
	return fmt.Sprintf("row-%d", row)
}

// emit sends a snapshot to the reporter. After the first reporter error no
// more snapshots are sent.
func (u *Upload) emit(ctx context.Context, snap *Snapshot) {
	if u.reporterDead {
		return
	}
	if err := u.reporter.Report(ctx, snap); err != nil {
		u.reporterDead = true
		u.logger.Warn("upload.reporter.error", "event", snap.Event, "err", err)
		recordReporterDropped()
	}
}

// finish records the terminal state, saves the report and sends the
// terminal snapshot.
func (u *Upload) finish(ctx context.Context, err error) *Snapshot {
	snap := u.sess.finish(err)
	elapsed := time.Duration(snap.DurationMS) * time.Millisecond

	if snap.Status == StatusFailed {
		u.logger.Error("upload.failed",
			"processed", snap.Summary.Processed,
			"total", snap.TotalRecords,
			"err", snap.Error,
		)
	} else {
		u.logger.Info("upload.complete",
			"total", snap.TotalRecords,
			"created", snap.Summary.Created,
			"updated", snap.Summary.Updated,
			"failed", snap.Summary.Failed,
			"skipped", snap.Summary.SkippedTotal,
			"duration", elapsed,
		)
	}
	recordUpload(u.entity.Name, snap.Status, snap.Summary, elapsed)

	if u.p.reports != nil {
		if err := u.p.reports.Save(snap); err != nil {
			u.logger.Warn("upload.report.save.error", "err", err)
		}
	}

	u.emit(ctx, snap)
	return snap
}
