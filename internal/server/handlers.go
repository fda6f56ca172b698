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
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kraklabs/bulkload/internal/contract"
	"github.com/kraklabs/bulkload/internal/errors"
	"github.com/kraklabs/bulkload/internal/output"
	"github.com/kraklabs/bulkload/pkg/ingestion"
	"github.com/kraklabs/bulkload/pkg/parser"
	"github.com/kraklabs/bulkload/pkg/schema"
)

// Room for multipart boundaries and part headers on top of the file itself.
const multipartOverhead = 1 << 20

// Memory used for multipart parsing before parts spill to temp files.
const multipartMemory = 8 << 20

// UploadIDHeader carries the upload id on a streamed upload response.
const UploadIDHeader = "X-Upload-ID"

// EntitiesResponse is the body of GET /api/v1/entities.
type EntitiesResponse struct {
	Entities []schema.Entity `json:"entities"`
	Upload   UploadLimits    `json:"upload"`
}

// UploadLimits describes what POST /api/v1/uploads/{entity} accepts.
type UploadLimits struct {
	Field      string   `json:"field"`
	MaxBytes   int64    `json:"max_bytes"`
	Extensions []string `json:"extensions"`
}

// ReportsResponse is the body of GET /api/v1/uploads.
type ReportsResponse struct {
	Reports []ingestion.ReportInfo `json:"reports"`
}

// GET /healthz
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/v1/entities
func (s *Server) getEntities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, EntitiesResponse{
		Entities: s.registry.List(),
		Upload: UploadLimits{
			Field:      contract.UploadField,
			MaxBytes:   contract.MaxUploadBytes(),
			Extensions: contract.AllowedExtensions(),
		},
	})
}

// GET /api/v1/entities/{entity}
func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, e)
}

// GET /api/v1/uploads
func (s *Server) listUploads(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.writeJSON(w, http.StatusOK, ReportsResponse{Reports: []ingestion.ReportInfo{}})
		return
	}
	infos, err := s.reports.List()
	if err != nil {
		s.writeError(w, r, errors.NewSystemFailure("Cannot list upload reports", err))
		return
	}
	if infos == nil {
		infos = []ingestion.ReportInfo{}
	}
	s.writeJSON(w, http.StatusOK, ReportsResponse{Reports: infos})
}

// GET /api/v1/uploads/{id}
func (s *Server) getUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	notFound := errors.NewNotFoundError(
		"Upload not found",
		fmt.Sprintf("No report is saved for upload %q", id),
		"Use the upload_id from a streamed snapshot; GET /api/v1/uploads lists saved reports",
	)
	if s.reports == nil {
		s.writeError(w, r, notFound)
		return
	}

	snap, err := s.reports.Load(id)
	if err != nil {
		s.writeError(w, r, errors.NewInputError("Invalid upload id", err.Error(), "Upload ids are UUIDs"))
		return
	}
	if snap == nil {
		s.writeError(w, r, notFound)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// POST /api/v1/uploads/{entity}
//
// Everything up to Prepare may still answer with an error status. After
// that the response is committed to 200 and the pipeline reports through
// the NDJSON stream only.
func (s *Server) postUpload(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.lookupEntity(w, r)
	if !ok {
		return
	}

	limit := contract.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooBig):
			s.writeError(w, r, contract.TooLarge("", tooBig.Limit))
		case stderrors.Is(err, http.ErrNotMultipart), stderrors.Is(err, http.ErrMissingBoundary):
			s.writeError(w, r, contract.ValidateUpload("", "", 0))
		default:
			s.writeError(w, r, errors.NewUploadRejected("Malformed upload", err.Error(),
				fmt.Sprintf("Send the file as multipart form field %q", contract.UploadField), http.StatusBadRequest))
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(contract.UploadField)
	if err != nil {
		s.writeError(w, r, contract.ValidateUpload("", "", 0))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := contract.ValidateUpload(header.Filename, contentType, header.Size); err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, errors.NewParseFailure(header.Filename, "the upload could not be read", err))
		return
	}

	table, err := parser.Decode(header.Filename, contentType, data)
	if err != nil {
		reason := err.Error()
		var pe *parser.ParseError
		if stderrors.As(err, &pe) {
			reason = pe.Reason
		}
		s.writeError(w, r, errors.NewParseFailure(header.Filename, reason, err))
		return
	}

	up, err := s.pipeline.Prepare(r.Context(), &entity, header.Filename, table)
	if err != nil {
		var mismatch *schema.MismatchError
		if stderrors.As(err, &mismatch) {
			s.writeError(w, r, errors.NewSchemaMismatch(entity.Name, mismatch.Error(), mismatch.Missing, mismatch.Headers, err))
			return
		}
		captureError(err, map[string]string{"entity": entity.Name, "stage": "prepare"})
		s.writeError(w, r, errors.NewSystemFailure("Upload could not start", err))
		return
	}

	w.Header().Set("Content-Type", output.NDJSONContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set(UploadIDHeader, up.ID)
	w.WriteHeader(http.StatusOK)

	stream := output.NewStreamWriter(w)
	final := up.Run(r.Context(), ingestion.ReporterFunc(func(_ context.Context, snap *ingestion.Snapshot) error {
		return stream.Write(snap)
	}))

	if final.Status == ingestion.StatusFailed {
		captureError(fmt.Errorf("upload %s failed: %s", final.UploadID, final.Error), map[string]string{
			"entity":    final.Entity,
			"upload_id": final.UploadID,
		})
	}
}

func (s *Server) lookupEntity(w http.ResponseWriter, r *http.Request) (schema.Entity, bool) {
	name := chi.URLParam(r, "entity")
	e, ok := s.registry.Get(name)
	if !ok {
		s.writeError(w, r, errors.NewNotFoundError(
			fmt.Sprintf("Unknown entity %q", name),
			"No entity with that name is registered",
			"GET /api/v1/entities lists the registered entities",
		))
	}
	return e, ok
}

func routeNotFound(r *http.Request) *errors.UserError {
	return errors.NewNotFoundError(
		"Not found",
		fmt.Sprintf("No route for %s %s", r.Method, r.URL.Path),
		"Uploads go to POST /api/v1/uploads/{entity}",
	)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := output.JSONTo(w, v); err != nil {
		s.logger.Warn("http.response.encode", "err", err)
	}
}

// writeError answers with the error's status and its JSON form. Errors that
// are not a *UserError become system failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *errors.UserError
	if !stderrors.As(err, &ue) {
		ue = errors.NewSystemFailure("Request failed", err)
	}
	status := ue.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.error", "path", r.URL.Path, "status", status, "kind", ue.Kind, "err", ue)
	} else {
		s.logger.Info("http.rejected", "path", r.URL.Path, "status", status, "kind", ue.Kind, "msg", ue.Message)
	}
	s.writeJSON(w, status, ue.ToJSON())
}
