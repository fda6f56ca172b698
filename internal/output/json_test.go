// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package output

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

type progress struct {
	UploadID string `json:"upload_id"`
	Event    string `json:"event"`
	Created  int    `json:"created"`
	Internal string `json:"-"`
}

// flushRecorder counts flushes like an http.ResponseWriter would see them.
type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

// TestJSON verifies that JSON produces pretty-printed output with 2-space indentation.
func TestJSON(t *testing.T) {
	var buf bytes.Buffer

	if err := JSONTo(&buf, progress{UploadID: "u-1", Created: 42, Internal: "hidden"}); err != nil {
		t.Fatalf("JSONTo failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, `  "upload_id": "u-1"`) {
		t.Errorf("Expected indented upload_id, got: %s", output)
	}
	if !strings.Contains(output, `"created": 42`) {
		t.Errorf("Missing created field, got: %s", output)
	}
	if strings.Contains(output, "hidden") {
		t.Errorf("Expected json:\"-\" field to be excluded, got: %s", output)
	}
	if !strings.HasSuffix(output, "}\n") {
		t.Errorf("Expected trailing newline, got: %q", output)
	}
}

// TestJSONCompact verifies that JSONCompact produces single-line output.
func TestJSONCompact(t *testing.T) {
	var buf bytes.Buffer

	if err := JSONCompactTo(&buf, progress{UploadID: "u-1"}); err != nil {
		t.Fatalf("JSONCompactTo failed: %v", err)
	}

	output := buf.String()
	if strings.Count(output, "\n") != 1 || strings.Contains(output, "  ") {
		t.Errorf("Compact JSON should be one unindented line, got: %q", output)
	}
}

// TestJSONError verifies that JSONError produces properly formatted error JSON.
func TestJSONError(t *testing.T) {
	var buf bytes.Buffer

	if err := JSONErrorTo(&buf, errors.New("something went wrong")); err != nil {
		t.Fatalf("JSONErrorTo failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"error": "something went wrong"`) {
		t.Errorf("Missing error field, got: %s", buf.String())
	}
}

func TestStreamWriter_OneLinePerDocumentAndFlush(t *testing.T) {
	rec := &flushRecorder{}
	sw := NewStreamWriter(rec)

	for _, ev := range []string{"started", "batch_completed", "completed"} {
		if err := sw.Write(progress{UploadID: "u-1", Event: ev}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSuffix(rec.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %q", len(lines), rec.String())
	}
	if rec.flushes != 3 {
		t.Errorf("flushes = %d, want 3", rec.flushes)
	}
	if sw.Count() != 3 {
		t.Errorf("Count() = %d, want 3", sw.Count())
	}
}

func TestStreamWriter_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	sw := NewStreamWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = sw.Write(progress{Created: n})
		}(i)
	}
	wg.Wait()

	n := 0
	err := ReadStream(&buf, func(*progress) error { n++; return nil })
	if err != nil {
		t.Fatalf("ReadStream failed: %v", err)
	}
	if n != 20 {
		t.Errorf("read %d documents, want 20", n)
	}
}

func TestReadStream(t *testing.T) {
	input := `{"upload_id":"u-1","event":"started"}
{"upload_id":"u-1","event":"completed","created":3}
`
	var got []progress
	err := ReadStream(strings.NewReader(input), func(p *progress) error {
		got = append(got, *p)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadStream failed: %v", err)
	}
	if len(got) != 2 || got[1].Event != "completed" || got[1].Created != 3 {
		t.Errorf("unexpected documents: %+v", got)
	}
}

func TestReadStream_Errors(t *testing.T) {
	t.Run("truncated document", func(t *testing.T) {
		err := ReadStream(strings.NewReader(`{"event":"started"}
{"event":`), func(*progress) error { return nil })
		if err == nil {
			t.Error("expected an error for a truncated stream")
		}
	})

	t.Run("callback error stops reading", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := ReadStream(strings.NewReader(`{}
{}
`), func(*progress) error { calls++; return stop })
		if !errors.Is(err, stop) || calls != 1 {
			t.Errorf("err = %v, calls = %d; want stop after 1 call", err, calls)
		}
	})
}
