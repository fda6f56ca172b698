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

package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// candidate delimiters, in preference order on ties
var delimiters = []rune{',', ';', '\t'}

// decodeCSV reads delimited text. Cells are trimmed, blank lines and rows
// with only blank cells are skipped, and rows with a different column count
// than the header are padded or truncated with a warning.
func decodeCSV(name string, data []byte) (*Table, error) {
	decoded, enc, err := detectAndDecode(data)
	if err != nil {
		return nil, &ParseError{Name: name, Reason: "unsupported text encoding", Err: err}
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.Comma = sniffDelimiter(decoded)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	t := &Table{Format: FormatCSV, Encoding: enc}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if t.Headers == nil {
				return nil, &ParseError{Name: name, Reason: "malformed header row", Err: err}
			}
			var perr *csv.ParseError
			line := 0
			if errors.As(err, &perr) {
				line = perr.StartLine
			}
			t.Warnings = append(t.Warnings, Warning{Row: line, Message: fmt.Sprintf("parse error: %v", err)})
			continue
		}
		line, _ := reader.FieldPos(0)

		values := make([]any, len(record))
		blank := true
		for i, v := range record {
			v = strings.TrimSpace(v)
			values[i] = v
			if v != "" {
				blank = false
			}
		}
		if blank {
			continue
		}

		if t.Headers == nil {
			t.Headers = make([]string, len(values))
			for i, v := range values {
				t.Headers[i] = v.(string)
			}
			continue
		}

		if len(values) != len(t.Headers) {
			t.Warnings = append(t.Warnings, raggedWarning(line, len(values), len(t.Headers)))
		}
		if row, ok := newRow(line, t.Headers, values); ok {
			t.Rows = append(t.Rows, row)
		}
	}

	if err := checkTable(name, t); err != nil {
		return nil, err
	}
	return t, nil
}

// sniffDelimiter picks the candidate that occurs most often, outside quotes,
// on the first non-blank line.
func sniffDelimiter(data []byte) rune {
	var first string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			first = line
			break
		}
	}

	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, r := range first {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}

	best := delimiters[0]
	for _, d := range delimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func checkTable(name string, t *Table) error {
	if len(t.Headers) == 0 {
		return &ParseError{Name: name, Reason: "file has no header row"}
	}
	nonBlank := 0
	for _, h := range t.Headers {
		if h != "" {
			nonBlank++
		}
	}
	if nonBlank == 0 {
		return &ParseError{Name: name, Reason: "file has no columns"}
	}
	if len(t.Rows) == 0 {
		return &ParseError{Name: name, Reason: "file contains no data rows"}
	}
	return nil
}
