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
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bulkload/internal/errors"
	testutil "github.com/kraklabs/bulkload/internal/testing"
	"github.com/kraklabs/bulkload/pkg/ingestion"
	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

func newImportPipeline(t *testing.T) (*ingestion.Pipeline, *storage.MemoryStore) {
	t.Helper()
	store := testutil.SetupTestStore(t, schema.Material())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ingestion.NewPipeline(store, ingestion.Config{BatchSize: 2}, logger), store
}

func TestImportFile(t *testing.T) {
	p, store := newImportPipeline(t)
	testutil.SeedDocuments(t, store, schema.Material(), storage.Document{
		"materialCode": "M-00001", "description": "Material 1", "status": "Inactive",
	})
	path := writeFile(t, "materials.csv", testutil.CSV(testutil.MaterialRows(3)...))

	rep := newProgressReporter(ProgressConfig{Enabled: false})
	final, err := importFile(context.Background(), p, schema.DefaultRegistry(), "material", path, rep)
	require.NoError(t, err)
	require.NotNil(t, final)

	assert.Equal(t, ingestion.StatusCompleted, final.Status)
	assert.Equal(t, 2, final.Summary.Created)
	assert.Equal(t, 1, final.Summary.Updated)
	assert.Equal(t, 1, final.Summary.Existing)
	require.NotNil(t, rep.Last())
	assert.Equal(t, ingestion.StatusCompleted, rep.Last().Status)
	material := schema.Material()
	assert.Len(t, store.Keys(material.CollectionName()), 3)
}

func TestImportFile_XLSX(t *testing.T) {
	p, _ := newImportPipeline(t)
	data := testutil.XLSX(t,
		[]any{"Warranty Code", "Description", "Duration (Months)"},
		[]any{"W-1", "Two year parts", 24},
	)
	path := writeFile(t, "warranties.xlsx", data)

	final, err := importFile(context.Background(), p, schema.DefaultRegistry(), "warranty", path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, final.Summary.Created)
}

func TestImportFile_Rejections(t *testing.T) {
	p, _ := newImportPipeline(t)
	reg := schema.DefaultRegistry()

	csv := writeFile(t, "materials.csv", testutil.CSV(testutil.MaterialRows(1)...))
	pdf := writeFile(t, "materials.pdf", []byte("%PDF-1.4"))
	empty := writeFile(t, "empty.csv", nil)
	headerOnly := writeFile(t, "header.csv", testutil.CSV([]string{"Material Code"}))
	noKey := writeFile(t, "nokey.csv", testutil.CSV([]string{"Description"}, []string{"Hex bolt"}))

	tests := []struct {
		name     string
		entity   string
		path     string
		wantKind errors.Kind
	}{
		{"unknown entity", "supplier", csv, errors.KindNotFound},
		{"missing file", "material", csv + ".gone", errors.KindInput},
		{"wrong type", "material", pdf, errors.KindUploadRejected},
		{"empty file", "material", empty, errors.KindUploadRejected},
		{"header only", "material", headerOnly, errors.KindParseFailure},
		{"schema mismatch", "material", noKey, errors.KindSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := importFile(context.Background(), p, reg, tt.entity, tt.path, nil)
			assert.Nil(t, snap)
			var ue *errors.UserError
			require.True(t, stderrors.As(err, &ue), "want *UserError, got %v", err)
			assert.Equal(t, tt.wantKind, ue.Kind)
		})
	}
}
