// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output provides utilities for consistent CLI and server output.
//
// JSON and JSONCompact write machine-readable command output. StreamWriter
// writes newline-delimited JSON (NDJSON) documents and flushes each one, which
// is how upload progress is streamed to HTTP clients; ReadStream is the
// client side of the same protocol.
//
// # Usage
//
// For JSON output in CLI commands:
//
//	if err := output.JSON(report); err != nil {
//	    errors.FatalError(err, true)
//	}
//
// For a streamed response:
//
//	w.Header().Set("Content-Type", output.NDJSONContentType)
//	sw := output.NewStreamWriter(w)
//	_ = sw.Write(snapshot)
//
// For error output (always goes to stderr):
//
//	if err := doSomething(); err != nil {
//	    output.JSONError(err)
//	}
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// JSON writes data as pretty-printed JSON to stdout.
//
// The output is formatted with 2-space indentation for readability.
// This is the standard format for --json output in bulkload commands.
//
// Returns an error if JSON encoding fails (e.g., for unencodable types
// like channels or functions).
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as pretty-printed JSON to the specified writer.
//
// This is useful for testing or when output needs to go somewhere
// other than stdout.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// JSONCompact writes data as compact JSON to stdout.
//
// The output contains no extra whitespace, making it suitable for
// streaming output or when size matters.
//
// Returns an error if JSON encoding fails.
func JSONCompact(data any) error {
	return JSONCompactTo(os.Stdout, data)
}

// JSONCompactTo writes data as compact JSON to the specified writer.
//
// This is useful for testing or when output needs to go somewhere
// other than stdout.
func JSONCompactTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}

// ErrorJSON represents an error in JSON format for machine consumption.
type ErrorJSON struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONError writes an error as JSON to stderr.
//
// The error is wrapped in a JSON object with an "error" field.
// This ensures consistent error output format when --json mode is active.
//
// Returns an error only if JSON encoding itself fails (rare).
func JSONError(err error) error {
	return JSONErrorTo(os.Stderr, err)
}

// JSONErrorTo writes an error as JSON to the specified writer.
//
// This is useful for testing.
func JSONErrorTo(w io.Writer, err error) error {
	errObj := ErrorJSON{Error: err.Error()}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(errObj); encErr != nil {
		return fmt.Errorf("JSON error encoding failed: %w", encErr)
	}
	return nil
}

// NDJSONContentType is the media type of a newline-delimited JSON stream.
const NDJSONContentType = "application/x-ndjson"

// StreamWriter writes one compact JSON document per line and flushes after
// each one when the underlying writer supports it. It is safe for
// concurrent use.
type StreamWriter struct {
	mu    sync.Mutex
	enc   *json.Encoder
	flush func()
	n     int
}

// NewStreamWriter creates a stream writer. w is flushed after every document
// when it has a Flush() method, as http.ResponseWriter does.
func NewStreamWriter(w io.Writer) *StreamWriter {
	sw := &StreamWriter{enc: json.NewEncoder(w)}
	if f, ok := w.(interface{ Flush() }); ok {
		sw.flush = f.Flush
	}
	return sw
}

// Write encodes v as one line and flushes it.
func (sw *StreamWriter) Write(v any) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if err := sw.enc.Encode(v); err != nil {
		return fmt.Errorf("stream write failed: %w", err)
	}
	if sw.flush != nil {
		sw.flush()
	}
	sw.n++
	return nil
}

// Count returns the number of documents written.
func (sw *StreamWriter) Count() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.n
}

// ReadStream decodes a stream of JSON documents from r and calls fn for each
// one in order. It stops at the first decode error or the first error from
// fn, and returns nil at end of stream.
func ReadStream[T any](r io.Reader, fn func(*T) error) error {
	dec := json.NewDecoder(r)
	for {
		var v T
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", err)
		}
		if err := fn(&v); err != nil {
			return err
		}
	}
}
