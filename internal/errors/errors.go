// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured errors for the bulkload server and CLI.
//
// UserError carries what went wrong, why, and how to fix it, plus a Kind
// that decides both the CLI exit code and the HTTP status used when the
// error ends an upload before any progress was streamed.
//
// # Usage Example
//
//	err := errors.NewSchemaMismatch(
//	    "material",
//	    "material file is missing required columns: materialCode",
//	    []string{"materialCode"},
//	    []string{"Description"},
//	    mismatchErr,
//	)
//	fmt.Fprint(os.Stderr, err.Format(false))
//	// Output (with colors):
//	// Error: Upload does not match the material schema
//	// Cause: material file is missing required columns: materialCode
//	// Fix:   Add a column for each required field; run 'bulkload entities material' to see accepted headers
//
// # Exit Codes
//
//   - ExitSuccess (0): Successful execution
//   - ExitConfig (1): Configuration errors (missing/invalid config)
//   - ExitStore (2): Store errors (unreachable, locked, write failures)
//   - ExitNetwork (3): Network errors talking to a bulkload server
//   - ExitInput (4): Rejected uploads, unreadable files, schema mismatches
//   - ExitPermission (5): Permission denied (file access, etc.)
//   - ExitNotFound (6): Unknown entity or upload
//   - ExitInternal (10): Internal errors (bugs, panics)
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	ExitSuccess = 0

	// ExitConfig indicates configuration errors (missing/invalid config files).
	ExitConfig = 1

	// ExitStore indicates store errors (unreachable, locked, corrupted).
	ExitStore = 2

	// ExitNetwork indicates errors reaching a bulkload server.
	ExitNetwork = 3

	// ExitInput indicates a rejected upload or invalid arguments.
	ExitInput = 4

	ExitPermission = 5
	ExitNotFound   = 6

	// ExitInternal signals "this is a bug that should be reported".
	ExitInternal = 10
)

// Kind classifies a UserError.
type Kind string

const (
	// KindUploadRejected is a missing, oversized or wrongly typed file,
	// detected before parsing.
	KindUploadRejected Kind = "upload_rejected"

	// KindParseFailure is a file that could not be decoded, or decoded to
	// nothing.
	KindParseFailure Kind = "parse_failure"

	// KindSchemaMismatch is a file with no column for a required field.
	KindSchemaMismatch Kind = "schema_mismatch"

	KindNotFound   Kind = "not_found"
	KindConfig     Kind = "config"
	KindStore      Kind = "store"
	KindNetwork    Kind = "network"
	KindInput      Kind = "input"
	KindPermission Kind = "permission"

	// KindSystemFailure is an unexpected error before streaming began.
	KindSystemFailure Kind = "system_failure"
)

// UserError represents an error with structured context for end users.
type UserError struct {
	// Kind classifies the error.
	Kind Kind

	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred.
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// Details carries structured context, such as the observed headers of
	// a schema mismatch.
	Details map[string]any

	// ExitCode is the exit code used when the CLI exits due to this error.
	ExitCode int

	// Status overrides the HTTP status derived from Kind when non-zero.
	Status int

	// Err is the underlying error, for errors.Is/As.
	Err error
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *UserError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the status code for the error when it ends a request
// before any snapshot was streamed.
func (e *UserError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindUploadRejected, KindParseFailure, KindInput:
		return http.StatusBadRequest
	case KindSchemaMismatch:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindPermission:
		return http.StatusForbidden
	case KindNetwork, KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, exit int, msg, cause, fix string, err error) *UserError {
	return &UserError{Kind: kind, Message: msg, Cause: cause, Fix: fix, ExitCode: exit, Err: err}
}

// NewUploadRejected creates an error for an upload refused before parsing.
// status is the HTTP status to answer with (400, 413 or 415).
func NewUploadRejected(msg, cause, fix string, status int) *UserError {
	e := newError(KindUploadRejected, ExitInput, msg, cause, fix, nil)
	e.Status = status
	return e
}

// NewParseFailure creates an error for a file that could not be decoded.
func NewParseFailure(fileName, cause string, err error) *UserError {
	return newError(KindParseFailure, ExitInput,
		fmt.Sprintf("Cannot read %s", fileName),
		cause,
		"Upload a .csv, .xlsx or .xls file with a header row and at least one data row",
		err)
}

// NewSchemaMismatch creates an error for a file missing required columns.
// headers are the headers observed in the file.
func NewSchemaMismatch(entity, cause string, missing, headers []string, err error) *UserError {
	e := newError(KindSchemaMismatch, ExitInput,
		fmt.Sprintf("Upload does not match the %s schema", entity),
		cause,
		fmt.Sprintf("Add a column for each required field; run 'bulkload entities %s' to see accepted headers", entity),
		err)
	e.Details = map[string]any{
		"entity":           entity,
		"missing_fields":   missing,
		"observed_headers": headers,
	}
	return e
}

// NewSystemFailure creates an error for an unexpected failure before any
// progress was streamed.
func NewSystemFailure(msg string, err error) *UserError {
	return newError(KindSystemFailure, ExitInternal, msg,
		"An unexpected error occurred",
		"Try again; if it keeps happening, report it with the server logs",
		err)
}

// NewConfigError creates a configuration error.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newError(KindConfig, ExitConfig, msg, cause, fix, err)
}

// NewStoreError creates an error for a store that cannot be opened or used.
func NewStoreError(msg, cause, fix string, err error) *UserError {
	return newError(KindStore, ExitStore, msg, cause, fix, err)
}

// NewNetworkError creates an error for a server that cannot be reached.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newError(KindNetwork, ExitNetwork, msg, cause, fix, err)
}

// NewInputError creates an error for invalid arguments.
func NewInputError(msg, cause, fix string) *UserError {
	return newError(KindInput, ExitInput, msg, cause, fix, nil)
}

// NewPermissionError creates a permission denied error.
func NewPermissionError(msg, cause, fix string, err error) *UserError {
	return newError(KindPermission, ExitPermission, msg, cause, fix, err)
}

// NewNotFoundError creates an error for an unknown entity or upload.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newError(KindNotFound, ExitNotFound, msg, cause, fix, nil)
}

// NewInternalError creates an error for a bug.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newError(KindSystemFailure, ExitInternal, msg, cause, fix, err)
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display. Color
// respects NO_COLOR and the noColor parameter; empty Cause or Fix lines are
// omitted.
//
// Note: This method temporarily modifies the global color.NoColor state
// and restores it after formatting.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON is the JSON form of a UserError, used for --json CLI output and
// for pre-stream HTTP error bodies.
type ErrorJSON struct {
	Error    string         `json:"error"`
	Kind     Kind           `json:"kind,omitempty"`
	Cause    string         `json:"cause,omitempty"`
	Fix      string         `json:"fix,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	ExitCode int            `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Kind:     e.Kind,
		Cause:    e.Cause,
		Fix:      e.Fix,
		Details:  e.Details,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code.
//
// This function never returns - it always calls os.Exit().
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitInternal)
}
