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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

func record(values map[string]any, provided ...string) *Record {
	r := &Record{Values: values, Provided: map[string]bool{}}
	for _, p := range provided {
		r.Provided[p] = true
	}
	return r
}

func TestDiff_NoMatch(t *testing.T) {
	e := schema.Material()
	rec := record(map[string]any{"materialCode": "M-1", "status": "Active"}, "materialCode")

	d := Diff(&e, rec, nil)
	assert.False(t, d.Exists)
	assert.False(t, d.HasChanges())
	assert.Equal(t, "Active", d.Status)
}

func TestDiff_ComparesProvidedFieldsOnly(t *testing.T) {
	e := schema.Material()
	stored := storage.Document{
		"materialCode": "M-1",
		"description":  "Bolt",
		"category":     "Fasteners",
		"status":       "Active",
	}
	rec := record(map[string]any{"materialCode": "M-1", "description": "Bolt", "status": "Active"},
		"materialCode", "description")

	d := Diff(&e, rec, stored)
	assert.True(t, d.Exists)
	assert.False(t, d.HasChanges(), "category is not provided so it is not compared")
}

func TestDiff_AbsentStoredValueIsEmpty(t *testing.T) {
	e := schema.Material()
	rec := record(map[string]any{"materialCode": "M-1", "category": "Nuts"}, "materialCode", "category")

	d := Diff(&e, rec, storage.Document{"materialCode": "M-1"})
	require.Len(t, d.Changes, 1)
	assert.Equal(t, ChangeDetail{Field: "category", OldValue: nil, NewValue: "Nuts"}, d.Changes[0])
}

func TestDiff_NumericForms(t *testing.T) {
	e := schema.Material()
	rec := record(map[string]any{"materialCode": "M-1", "unitPrice": 12.0}, "materialCode", "unitPrice")

	for name, stored := range map[string]any{
		"int":         12,
		"int64":       int64(12),
		"json number": json.Number("12.0"),
		"string":      "12",
	} {
		t.Run(name, func(t *testing.T) {
			d := Diff(&e, rec, storage.Document{"materialCode": "M-1", "unitPrice": stored})
			assert.False(t, d.HasChanges())
		})
	}
}

func TestDiff_StatusCarriedForward(t *testing.T) {
	e := schema.Material()
	rec := record(map[string]any{"materialCode": "M-1", "description": "New", "status": schema.StatusActive},
		"materialCode", "description")

	d := Diff(&e, rec, storage.Document{"materialCode": "M-1", "description": "Old", "status": schema.StatusInactive})
	assert.False(t, d.StatusChanged)
	assert.Equal(t, schema.StatusInactive, d.Status)
	assert.Equal(t, schema.StatusInactive, rec.Values["status"])
	require.Len(t, d.Changes, 1)
	assert.Equal(t, "description", d.Changes[0].Field)
}

func TestDiff_StatusChanged(t *testing.T) {
	e := schema.Material()
	rec := record(map[string]any{"materialCode": "M-1", "status": schema.StatusInactive},
		"materialCode", "status")

	d := Diff(&e, rec, storage.Document{"materialCode": "M-1", "status": schema.StatusActive})
	assert.True(t, d.StatusChanged)
	assert.Equal(t, schema.StatusInactive, d.Status)
	require.Len(t, d.Changes, 1)
	assert.Equal(t, ChangeDetail{Field: "status", OldValue: schema.StatusActive, NewValue: schema.StatusInactive}, d.Changes[0])
}
