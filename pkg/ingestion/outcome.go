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
	"strings"
)

// OutcomeStatus is the terminal state of one row.
type OutcomeStatus string

const (
	OutcomeCreated OutcomeStatus = "created"
	OutcomeUpdated OutcomeStatus = "updated"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome actions.
const (
	ActionCreated      = "created"
	ActionUpdated      = "updated"
	ActionDuplicate    = "duplicate in file"
	ActionNoChanges    = "no changes"
	ActionInvalid      = "validation failed"
	ActionLookupFailed = "lookup failed"
	ActionWriteFailed  = "write failed"
)

// RecordOutcome is what happened to one row.
type RecordOutcome struct {
	Row           int            `json:"row"`
	Key           string         `json:"key,omitempty"`
	Status        OutcomeStatus  `json:"status"`
	Action        string         `json:"action"`
	Error         string         `json:"error,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Changes       []ChangeDetail `json:"changes,omitempty"`
	StatusChanged bool           `json:"status_changed,omitempty"`
}

// Summary holds the per-status counters of an upload.
type Summary struct {
	TotalRecords int `json:"total_records"`
	Processed    int `json:"processed"`
	Created      int `json:"created"`
	Updated      int `json:"updated"`
	Failed       int `json:"failed"`

	// Duplicates and NoChanges make up SkippedTotal.
	Duplicates   int `json:"duplicates"`
	NoChanges    int `json:"no_changes"`
	SkippedTotal int `json:"skipped_total"`

	// Existing counts rows whose key already had a stored document.
	Existing int `json:"existing"`

	// StatusChanges tallies supplied tracked-field changes by new value.
	StatusChanges map[string]int `json:"status_changes,omitempty"`
}

// Balanced reports whether every record has been accounted for.
func (s Summary) Balanced() bool {
	return s.Created+s.Updated+s.Failed+s.SkippedTotal == s.TotalRecords
}

// add merges a batch delta into s.
func (s *Summary) add(d Summary) {
	s.Processed += d.Processed
	s.Created += d.Created
	s.Updated += d.Updated
	s.Failed += d.Failed
	s.Duplicates += d.Duplicates
	s.NoChanges += d.NoChanges
	s.SkippedTotal += d.SkippedTotal
	s.Existing += d.Existing
	for k, v := range d.StatusChanges {
		s.tallyStatus(k, v)
	}
}

func (s *Summary) tallyStatus(value string, delta int) {
	if s.StatusChanges == nil {
		s.StatusChanges = make(map[string]int)
	}
	s.StatusChanges[value] += delta
	if s.StatusChanges[value] == 0 {
		delete(s.StatusChanges, value)
	}
}

// clone returns a deep copy.
func (s Summary) clone() Summary {
	out := s
	if s.StatusChanges != nil {
		out.StatusChanges = make(map[string]int, len(s.StatusChanges))
		for k, v := range s.StatusChanges {
			out.StatusChanges[k] = v
		}
	}
	return out
}

// Message renders the one-sentence rollup shown when an upload finishes.
func (s Summary) Message() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed %d of %d records: %d created, %d updated, %d failed, %d duplicates in file, %d existing, %d with no changes, %d skipped",
		s.Processed, s.TotalRecords, s.Created, s.Updated, s.Failed, s.Duplicates, s.Existing, s.NoChanges, s.SkippedTotal)
	if len(s.StatusChanges) > 0 {
		b.WriteString("; status changes:")
		for i, k := range sortedKeys(s.StatusChanges) {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " %d to %s", s.StatusChanges[k], k)
		}
	}
	b.WriteString(".")
	return b.String()
}
