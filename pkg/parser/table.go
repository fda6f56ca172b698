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

import "fmt"

// Format identifies the decoder that produced a table.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLS  Format = "xls"
	FormatXLSX Format = "xlsx"
)

// Cell is one value of a row, tagged with its column header. Value is a
// string, or a float64 for numeric spreadsheet cells.
type Cell struct {
	Header string `json:"header"`
	Value  any    `json:"value"`
}

// RawRow is one data row as read from the file.
type RawRow struct {
	// Number is the 1-based line (CSV) or sheet row (XLSX) the row came from.
	Number int    `json:"row"`
	Cells  []Cell `json:"cells"`
}

// Value returns the value in column col, or nil when the row is shorter.
func (r RawRow) Value(col int) any {
	if col < 0 || col >= len(r.Cells) {
		return nil
	}
	return r.Cells[col].Value
}

// Warning is a non-fatal issue found while decoding.
type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Table is a decoded file: one header row and the data rows below it.
type Table struct {
	Headers  []string  `json:"headers"`
	Rows     []RawRow  `json:"-"`
	Format   Format    `json:"format"`
	Encoding string    `json:"encoding,omitempty"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// ParseError reports a file that could not be decoded into a table.
type ParseError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot read %s: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot read %s: %s", e.Name, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// newRow builds a RawRow padded or truncated to the header count. ok is false
// when every cell is blank.
func newRow(number int, headers []string, values []any) (row RawRow, ok bool) {
	cells := make([]Cell, len(headers))
	for i, h := range headers {
		cells[i] = Cell{Header: h, Value: ""}
		if i < len(values) && values[i] != nil {
			cells[i].Value = values[i]
		}
		if s, isStr := cells[i].Value.(string); !isStr || s != "" {
			ok = true
		}
	}
	return RawRow{Number: number, Cells: cells}, ok
}

func raggedWarning(row, got, want int) Warning {
	if got < want {
		return Warning{Row: row, Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", got, want)}
	}
	return Warning{Row: row, Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", got, want)}
}
