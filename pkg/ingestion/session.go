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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kraklabs/bulkload/pkg/parser"
	"github.com/kraklabs/bulkload/pkg/schema"
)

// Status is the lifecycle state of an upload.
type Status string

const (
	StatusReceived   Status = "received"
	StatusValidating Status = "validating"
	StatusStreaming  Status = "streaming"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var statusRank = map[Status]int{
	StatusReceived:   0,
	StatusValidating: 1,
	StatusStreaming:  2,
	StatusCompleted:  3,
	StatusFailed:     3,
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// canAdvance reports whether moving from s to next goes forward.
func (s Status) canAdvance(next Status) bool {
	if s.Terminal() {
		return false
	}
	return statusRank[next] > statusRank[s]
}

// Event names what caused a snapshot.
type Event string

const (
	EventStarted         Event = "started"
	EventBatchDispatched Event = "batch_dispatched"
	EventBatchCompleted  Event = "batch_completed"
	EventCompleted       Event = "completed"
	EventFailed          Event = "failed"
)

// Snapshot is a complete view of an upload at one point in time. A consumer
// can render from the latest snapshot alone.
type Snapshot struct {
	UploadID string `json:"upload_id"`
	Entity   string `json:"entity"`
	FileName string `json:"file_name,omitempty"`
	Status   Status `json:"status"`
	Event    Event  `json:"event"`

	TotalRecords      int  `json:"total_records"`
	TotalBatches      int  `json:"total_batches"`
	BatchesDispatched int  `json:"batches_dispatched"`
	BatchesCompleted  int  `json:"batches_completed"`
	CurrentBatch      *int `json:"current_batch,omitempty"`

	Summary Summary `json:"summary"`

	// Mapping and Unmapped describe how the file's headers were bound.
	Mapping  []schema.ColumnBinding `json:"mapping,omitempty"`
	Unmapped []string               `json:"unmapped_headers,omitempty"`
	Warnings []parser.Warning       `json:"warnings,omitempty"`

	// Outcomes is a preview of the latest batch on batch_completed, and
	// every row sorted by row number on the terminal snapshot.
	Outcomes []RecordOutcome `json:"outcomes,omitempty"`

	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// session is the mutable state of one upload. Snapshots copy out of it.
type session struct {
	mu sync.Mutex

	id       string
	entity   string
	fileName string
	started  time.Time
	status   Status

	totalBatches int
	dispatched   int
	completed    int
	current      *int

	summary  Summary
	mapping  []schema.ColumnBinding
	unmapped []string
	warnings []parser.Warning

	// outcomes are appended per completed batch and never modified after.
	outcomes []RecordOutcome
	errMsg   string
}

func newSession(id, entity, fileName string, totalRecords int) *session {
	return &session{
		id:       id,
		entity:   entity,
		fileName: fileName,
		started:  time.Now(),
		status:   StatusReceived,
		summary:  Summary{TotalRecords: totalRecords},
	}
}

// advance moves the session forward. Backward or repeated moves are ignored
// and return false.
func (s *session) advance(next Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.canAdvance(next) {
		return false
	}
	s.status = next
	return true
}

func (s *session) currentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *session) setMapping(m *schema.FieldMapping, warnings []parser.Warning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping = append([]schema.ColumnBinding(nil), m.Bindings...)
	s.unmapped = append([]string(nil), m.Unmapped...)
	s.warnings = append([]parser.Warning(nil), warnings...)
}

func (s *session) setBatches(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalBatches = n
}

// startedSnapshot returns the initial snapshot.
func (s *session) startedSnapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(EventStarted, nil)
}

// dispatch marks batch idx as handed to the scheduler.
func (s *session) dispatch(idx int) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched++
	i := idx
	s.current = &i
	return s.snapshotLocked(EventBatchDispatched, nil)
}

// batchDone folds a finished batch into the totals. The snapshot carries the
// last preview outcomes of that batch.
func (s *session) batchDone(idx int, outcomes []RecordOutcome, delta Summary, preview int) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed++
	i := idx
	s.current = &i
	s.summary.add(delta)
	s.outcomes = append(s.outcomes, outcomes...)

	tail := outcomes
	if preview > 0 && len(tail) > preview {
		tail = tail[len(tail)-preview:]
	}
	return s.snapshotLocked(EventBatchCompleted, append([]RecordOutcome(nil), tail...))
}

// finish moves the session to its terminal state. A nil err completes it.
// Calling finish on a finished session returns the state unchanged.
func (s *session) finish(err error) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, event := StatusCompleted, EventCompleted
	if err != nil {
		next, event = StatusFailed, EventFailed
	}
	if s.status.canAdvance(next) {
		s.status = next
		if err != nil {
			s.errMsg = err.Error()
		}
	} else if s.status == StatusFailed {
		event = EventFailed
	} else {
		event = EventCompleted
	}

	sort.SliceStable(s.outcomes, func(i, j int) bool {
		return s.outcomes[i].Row < s.outcomes[j].Row
	})

	snap := s.snapshotLocked(event, append([]RecordOutcome(nil), s.outcomes...))
	snap.CurrentBatch = nil
	if s.status == StatusFailed {
		snap.Error = s.errMsg
		snap.Message = fmt.Sprintf("Upload failed after processing %d of %d records: %s",
			s.summary.Processed, s.summary.TotalRecords, snap.Error)
	} else {
		snap.Message = s.summary.Message()
	}
	return snap
}

func (s *session) snapshotLocked(event Event, outcomes []RecordOutcome) *Snapshot {
	snap := &Snapshot{
		UploadID:          s.id,
		Entity:            s.entity,
		FileName:          s.fileName,
		Status:            s.status,
		Event:             event,
		TotalRecords:      s.summary.TotalRecords,
		TotalBatches:      s.totalBatches,
		BatchesDispatched: s.dispatched,
		BatchesCompleted:  s.completed,
		Summary:           s.summary.clone(),
		Mapping:           append([]schema.ColumnBinding(nil), s.mapping...),
		Unmapped:          append([]string(nil), s.unmapped...),
		Warnings:          append([]parser.Warning(nil), s.warnings...),
		Outcomes:          outcomes,
		DurationMS:        time.Since(s.started).Milliseconds(),
		Timestamp:         time.Now().UTC(),
	}
	if s.current != nil {
		c := *s.current
		snap.CurrentBatch = &c
	}
	return snap
}
