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
	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

// ChangeDetail is one field that differs between an incoming record and
// the stored document.
type ChangeDetail struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// DiffResult is the comparison of one record against its stored match.
type DiffResult struct {
	// Exists is false when no document has the record's key.
	Exists bool

	// Changes lists differing provided fields in entity order.
	Changes []ChangeDetail

	// StatusChanged is set when the tracked field was supplied and differs.
	StatusChanged bool

	// Status is the record's tracked value after carry-forward.
	Status string
}

// HasChanges reports whether an update is needed.
func (d DiffResult) HasChanges() bool {
	return len(d.Changes) > 0
}

// Diff compares the provided fields of rec with stored, which is nil when no
// document has the record's key. Values compare by canonical string form and
// an absent stored value compares as "".
//
// When the entity's tracked field was not supplied and stored has a value,
// that value is carried forward into rec so a schema default never resets it.
func Diff(e *schema.Entity, rec *Record, stored storage.Document) DiffResult {
	var d DiffResult
	tracked, hasTracked := e.TrackedField()

	if stored == nil {
		if hasTracked {
			d.Status = canonicalString(rec.Values[tracked.Name])
		}
		return d
	}
	d.Exists = true

	if hasTracked && !rec.Provided[tracked.Name] {
		if prev, ok := stored[tracked.Name]; ok && canonicalString(prev) != "" {
			rec.Values[tracked.Name] = prev
		}
	}

	for _, f := range e.Fields {
		if !rec.Provided[f.Name] {
			continue
		}
		newValue := rec.Values[f.Name]
		oldValue := stored[f.Name]
		if canonicalString(newValue) == canonicalString(oldValue) {
			continue
		}
		d.Changes = append(d.Changes, ChangeDetail{Field: f.Name, OldValue: oldValue, NewValue: newValue})
		if hasTracked && f.Name == tracked.Name {
			d.StatusChanged = true
		}
	}

	if hasTracked {
		d.Status = canonicalString(rec.Values[tracked.Name])
	}
	return d
}
