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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/bulkload/internal/contract"
	"github.com/kraklabs/bulkload/internal/errors"
	"github.com/kraklabs/bulkload/internal/output"
	"github.com/kraklabs/bulkload/internal/ui"
	"github.com/kraklabs/bulkload/pkg/ingestion"
)

// runUpload executes the 'upload' CLI command, sending a file to a running
// server and rendering the streamed progress.
//
// Flags:
//   - --server: Server base URL (default: client.server_url from config)
//   - --timeout: Give up when the whole upload takes longer (default: no limit)
//   - --stream: Print every snapshot as NDJSON instead of a summary
//   - --all: List every row outcome in the summary
//
// Examples:
//
//	bulkload upload material materials.xlsx
//	bulkload upload warranty w.csv --server http://ingest.internal:8080
//	bulkload --json upload material m.csv > report.json
func runUpload(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", "", "Server base URL (default from config or "+DefaultServerURL+")")
	timeout := fs.Duration("timeout", 0, "Abort when the upload takes longer (0 = no limit)")
	stream := fs.Bool("stream", false, "Print each progress snapshot as NDJSON")
	all := fs.Bool("all", false, "List every row outcome")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bulkload upload [options] <entity> <file>

Uploads a .csv, .xlsx or .xls file to a bulkload server and shows progress while
the server reconciles it. The file is rejected before processing when it is
too large, of the wrong type, unreadable, or missing required columns.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 2 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"upload needs an entity name and a file",
			"Run 'bulkload upload <entity> <file>'; 'bulkload entities' lists entity names",
		), globals.JSON)
	}
	entity, path := fs.Arg(0), fs.Arg(1)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	base := *serverURL
	if base == "" {
		base = cfg.Client.ServerURL
	}
	newLogger(globals, slog.LevelWarn)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	progress := newProgressReporter(NewProgressConfig(globals))
	if *stream {
		progress = newProgressReporter(ProgressConfig{})
		sw := output.NewStreamWriter(os.Stdout)
		progress.onSnapshot = func(s *ingestion.Snapshot) error { return sw.Write(s) }
	}

	spinner := NewSpinner(NewProgressConfig(globals), "Uploading "+filepath.Base(path))
	final, err := sendUpload(ctx, http.DefaultClient, base, entity, path, func(s *ingestion.Snapshot) error {
		if spinner != nil {
			_ = spinner.Finish()
			spinner = nil
		}
		return progress.Report(ctx, s)
	})
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	finishUpload(final, globals, *stream, *all)
}

// finishUpload prints the terminal snapshot and exits non-zero when the
// upload failed.
func finishUpload(final *ingestion.Snapshot, globals GlobalFlags, streamed, all bool) {
	switch {
	case streamed:
	case globals.JSON:
		_ = output.JSON(final)
	default:
		limit := 20
		if all {
			limit = -1
		}
		fmt.Println()
		printReport(os.Stdout, final, limit)
		fmt.Println()
		switch {
		case final.Status == ingestion.StatusFailed:
			ui.Error("Upload failed")
		case final.Summary.Failed > 0:
			ui.Warningf("%d of %d rows failed", final.Summary.Failed, final.Summary.TotalRecords)
		default:
			ui.Success("Upload complete")
		}
	}
	if final.Status == ingestion.StatusFailed {
		errors.FatalError(uploadFailure(final), globals.JSON)
	}
}

// uploadFailure describes an upload that ended in a failed snapshot. Rows
// already written stay written.
func uploadFailure(final *ingestion.Snapshot) *errors.UserError {
	return errors.NewInternalError(
		"Upload did not finish",
		final.Error,
		fmt.Sprintf("%d rows were written before the failure; fix the cause and upload the file again, unchanged rows are skipped", final.Summary.Created+final.Summary.Updated),
		nil,
	)
}

// sendUpload posts the file at path as multipart field "file" and feeds
// every streamed snapshot to fn. It returns the terminal snapshot. A
// rejection answered before streaming comes back as a *errors.UserError
// rebuilt from the server's JSON body.
func sendUpload(ctx context.Context, client *http.Client, baseURL, entity, path string, fn func(*ingestion.Snapshot) error) (*ingestion.Snapshot, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is a CLI argument
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputError("File not found", err.Error(), "Check the file path")
		}
		return nil, errors.NewPermissionError("Cannot open file", err.Error(), "Check the file permissions", err)
	}
	defer func() { _ = f.Close() }()

	body, contentType := multipartStream(f, filepath.Base(path))
	defer func() { _ = body.Close() }()

	url := strings.TrimRight(baseURL, "/") + "/api/v1/uploads/" + entity
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, errors.NewInputError("Invalid server URL", err.Error(), "Pass a URL like "+DefaultServerURL)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", output.NDJSONContentType)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError(
			"Cannot reach the bulkload server",
			err.Error(),
			fmt.Sprintf("Check that 'bulkload serve' is running at %s or pass --server", baseURL),
			err,
		)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var final *ingestion.Snapshot
	err = output.ReadStream(resp.Body, func(s *ingestion.Snapshot) error {
		final = s
		if fn != nil {
			return fn(s)
		}
		return nil
	})
	if err != nil {
		return final, errors.NewNetworkError("Upload stream interrupted", err.Error(),
			"The server may still be processing; check 'bulkload report list' later", err)
	}
	if final == nil || !final.Status.Terminal() {
		return final, errors.NewNetworkError("Upload stream ended early",
			"The stream ended before a completed or failed snapshot",
			"The server may still be processing; check 'bulkload report list' later", nil)
	}
	return final, nil
}

// multipartStream encodes r as a single-file multipart body without
// buffering it in memory.
func multipartStream(r io.Reader, fileName string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, contract.UploadField, fileName))
		h.Set("Content-Type", fileContentType(fileName))
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	return pr, mw.FormDataContentType()
}

func fileContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// responseError rebuilds the server's error body as a UserError.
func responseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var ej errors.ErrorJSON
	if err := json.Unmarshal(data, &ej); err != nil || ej.Error == "" {
		return errors.NewNetworkError(
			fmt.Sprintf("Server answered %s", resp.Status),
			strings.TrimSpace(string(data)),
			"Check the server URL and logs",
			nil,
		)
	}
	exit := ej.ExitCode
	if exit == 0 {
		exit = errors.ExitInternal
	}
	return &errors.UserError{
		Kind:     ej.Kind,
		Message:  ej.Error,
		Cause:    ej.Cause,
		Fix:      ej.Fix,
		Details:  ej.Details,
		ExitCode: exit,
		Status:   resp.StatusCode,
	}
}
