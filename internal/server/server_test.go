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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bulkload/internal/errors"
	"github.com/kraklabs/bulkload/internal/output"
	testutil "github.com/kraklabs/bulkload/internal/testing"
	"github.com/kraklabs/bulkload/pkg/ingestion"
	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

type fixture struct {
	handler http.Handler
	store   *storage.MemoryStore
	reports *ingestion.ReportStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := testutil.SetupTestStore(t)
	reports := ingestion.NewReportStore(filepath.Join(t.TempDir(), "reports"))
	p := ingestion.NewPipeline(store, ingestion.Config{BatchSize: 2}, logger).WithReports(reports)

	s := New(Config{}, schema.DefaultRegistry(), p, reports, logger)
	return &fixture{handler: s.Handler(), store: store, reports: reports}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// uploadRequest builds a multipart upload with one part under field.
func uploadRequest(t *testing.T, entity, field, fileName, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/"+entity, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func readSnapshots(t *testing.T, body io.Reader) []ingestion.Snapshot {
	t.Helper()

	var snaps []ingestion.Snapshot
	err := output.ReadStream(body, func(s *ingestion.Snapshot) error {
		snaps = append(snaps, *s)
		return nil
	})
	require.NoError(t, err)
	return snaps
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorJSON {
	t.Helper()

	var ej errors.ErrorJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ej), "body: %s", rec.Body.String())
	return ej
}

func TestUpload_StreamsSnapshots(t *testing.T) {
	f := newFixture(t)
	data := testutil.CSV(
		[]string{"Material Code", "Description", "Notes"},
		[]string{"M-1", "Hex bolt", "x"},
		[]string{"M-2", "Washer", ""},
		[]string{"M-1", "Hex bolt again", ""},
	)

	rec := f.do(uploadRequest(t, "material", "file", "materials.csv", "text/csv", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, output.NDJSONContentType, rec.Header().Get("Content-Type"))
	uploadID := rec.Header().Get(UploadIDHeader)
	require.NotEmpty(t, uploadID)

	snaps := readSnapshots(t, rec.Body)
	require.NotEmpty(t, snaps)

	first := snaps[0]
	assert.Equal(t, ingestion.EventStarted, first.Event)
	assert.Equal(t, 3, first.TotalRecords)
	assert.Equal(t, []string{"Notes"}, first.Unmapped)

	last := snaps[len(snaps)-1]
	assert.Equal(t, uploadID, last.UploadID)
	assert.Equal(t, ingestion.StatusCompleted, last.Status)
	assert.Equal(t, 2, last.Summary.Created)
	assert.Equal(t, 1, last.Summary.Duplicates)
	assert.True(t, last.Summary.Balanced())
	assert.Len(t, last.Outcomes, 3)

	for _, s := range snaps[:len(snaps)-1] {
		assert.False(t, s.Status.Terminal(), "only the last snapshot is terminal")
	}

	_, ok := f.store.Get("materials", "M-2")
	assert.True(t, ok)

	// The terminal report is retrievable after the stream ends.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/"+uploadID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var saved ingestion.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, last.Summary, saved.Summary)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/uploads", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list ReportsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Reports, 1)
	assert.Equal(t, uploadID, list.Reports[0].UploadID)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bulkload_uploads_total")
}

func TestUpload_XLSX(t *testing.T) {
	f := newFixture(t)
	data := testutil.XLSX(t,
		[]any{"Warranty Code", "Description", "Duration (Months)"},
		[]any{"W-1", "Standard", 12},
	)

	rec := f.do(uploadRequest(t, "warranty", "file", "warranties.xlsx", "", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snaps := readSnapshots(t, rec.Body)
	last := snaps[len(snaps)-1]
	assert.Equal(t, ingestion.StatusCompleted, last.Status)
	assert.Equal(t, 1, last.Summary.Created)
}

func TestUpload_XLS(t *testing.T) {
	f := newFixture(t)
	data, err := os.ReadFile(filepath.Join("..", "..", "pkg", "parser", "testdata", "materials.xls"))
	require.NoError(t, err)

	rec := f.do(uploadRequest(t, "material", "file", "materials.xls", "application/vnd.ms-excel", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snaps := readSnapshots(t, rec.Body)
	last := snaps[len(snaps)-1]
	assert.Equal(t, ingestion.StatusCompleted, last.Status)
	assert.Equal(t, 3, last.Summary.Created)
	assert.Equal(t, 0, last.Summary.Failed)
	assert.ElementsMatch(t, []string{"M-00001", "M-00002", "10045"}, f.store.Keys("materials"))
}

func TestUpload_Rejections(t *testing.T) {
	t.Setenv("BULKLOAD_MAX_UPLOAD_BYTES", "64")
	csv := testutil.CSV([]string{"Material Code"}, []string{"M-1"})
	big := testutil.CSV(testutil.MaterialRows(10)...)

	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantKind   errors.Kind
	}{
		{
			name:       "unknown entity",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "invoice", "file", "m.csv", "", csv) },
			wantStatus: http.StatusNotFound,
			wantKind:   errors.KindNotFound,
		},
		{
			name:       "wrong form field",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "material", "upload", "m.csv", "", csv) },
			wantStatus: http.StatusBadRequest,
			wantKind:   errors.KindUploadRejected,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/material", bytes.NewReader(csv))
				req.Header.Set("Content-Type", "text/csv")
				return req
			},
			wantStatus: http.StatusBadRequest,
			wantKind:   errors.KindUploadRejected,
		},
		{
			name:       "unsupported type",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "material", "file", "m.pdf", "application/pdf", csv) },
			wantStatus: http.StatusUnsupportedMediaType,
			wantKind:   errors.KindUploadRejected,
		},
		{
			name:       "too large",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "material", "file", "m.csv", "", big) },
			wantStatus: http.StatusRequestEntityTooLarge,
			wantKind:   errors.KindUploadRejected,
		},
		{
			name:       "empty file",
			req:        func(t *testing.T) *http.Request { return uploadRequest(t, "material", "file", "m.csv", "", nil) },
			wantStatus: http.StatusBadRequest,
			wantKind:   errors.KindUploadRejected,
		},
		{
			name: "missing required column",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "material", "file", "m.csv", "", testutil.CSV([]string{"Description"}, []string{"Bolt"}))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   errors.KindSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(tt.req(t))

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantKind, decodeError(t, rec).Kind)
			assert.Empty(t, f.store.Keys("materials"), "nothing is written on a rejected upload")
		})
	}
}

func TestUpload_SchemaMismatchDetails(t *testing.T) {
	f := newFixture(t)
	data := testutil.CSV([]string{"Description", "UOM"}, []string{"Bolt", "EA"})

	rec := f.do(uploadRequest(t, "material", "file", "m.csv", "", data))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	ej := decodeError(t, rec)
	assert.Equal(t, []any{"materialCode"}, ej.Details["missing_fields"])
	assert.Equal(t, []any{"Description", "UOM"}, ej.Details["observed_headers"])
}

func TestEntities(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EntitiesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	names := make([]string, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "material")
	assert.Contains(t, names, "warranty")
	assert.Equal(t, "file", resp.Upload.Field)
	assert.Contains(t, resp.Upload.Extensions, ".xlsx")

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/entities/warranty", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var e schema.Entity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "warrantyCode", e.Key)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/entities/invoice", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetUpload_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/uploads/6f1c3f3e-2b7a-4c4e-9d43-0a3f5d1e2b7c", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.KindNotFound, decodeError(t, rec).Kind)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v2/nothing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.KindNotFound, decodeError(t, rec).Kind)
}

func TestRecoverPanics(t *testing.T) {
	s := New(Config{}, schema.DefaultRegistry(), nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := s.logRequests(s.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.KindSystemFailure, decodeError(t, rec).Kind)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, schema.DefaultRegistry(), nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx, func(addr string) { addrCh <- addr }) }()

	addr := <-addrCh
	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-errCh)
}
