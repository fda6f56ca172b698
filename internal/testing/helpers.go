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

package testing

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

// SetupTestStore creates an in-memory store with a collection ensured for
// each given entity. The store is closed when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t, schema.Material())
//	    testing.SeedDocuments(t, store, schema.Material(), storage.Document{
//	        "materialCode": "M-1", "status": "Inactive",
//	    })
//	    // Run your tests...
//	}
func SetupTestStore(t *testing.T, entities ...schema.Entity) *storage.MemoryStore {
	t.Helper()

	store := storage.NewMemoryStore()
	for _, e := range entities {
		c := storage.Collection{Name: e.CollectionName(), KeyField: e.Key}
		if err := store.EnsureCollection(context.Background(), c); err != nil {
			t.Fatalf("failed to ensure collection %s: %v", c.Name, err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SetupBoltStore creates a bolt-backed store in a temporary directory with
// a collection ensured for each given entity.
func SetupBoltStore(t *testing.T, entities ...schema.Entity) *storage.BoltStore {
	t.Helper()

	store, err := storage.NewBoltStore(storage.EmbeddedConfig{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to open bolt store: %v", err)
	}
	for _, e := range entities {
		c := storage.Collection{Name: e.CollectionName(), KeyField: e.Key}
		if err := store.EnsureCollection(context.Background(), c); err != nil {
			t.Fatalf("failed to ensure collection %s: %v", c.Name, err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedDocuments stores docs in the entity's collection, keyed by the
// entity's key field. Each doc must carry the key field.
func SeedDocuments(t *testing.T, store *storage.MemoryStore, e schema.Entity, docs ...storage.Document) {
	t.Helper()

	for _, d := range docs {
		key, ok := d[e.Key].(string)
		if !ok || key == "" {
			t.Fatalf("seed document has no %s: %v", e.Key, d)
		}
		store.Put(e.CollectionName(), key, d)
	}
}

// CSV renders rows as comma-separated text. The first row is the header.
func CSV(rows ...[]string) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// csv.Writer only fails on the underlying writer, which is a bytes.Buffer.
	_ = w.WriteAll(rows)
	return buf.Bytes()
}

// MaterialRows builds n material rows with sequential codes M-00001...,
// preceded by a header row.
func MaterialRows(n int) [][]string {
	rows := make([][]string, 0, n+1)
	rows = append(rows, []string{"Material Code", "Description", "UOM", "Status"})
	for i := 1; i <= n; i++ {
		rows = append(rows, []string{fmt.Sprintf("M-%05d", i), fmt.Sprintf("Material %d", i), "EA", "Active"})
	}
	return rows
}

// XLSX renders rows into the first sheet of a new workbook. Nil values leave
// the cell unset.
func XLSX(t *testing.T, rows ...[]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set %s: %v", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}
