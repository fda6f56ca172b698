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
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// decodeXLSX reads the first worksheet. The first non-blank row is the header
// row; blank cells decode as "". Cells stored as numbers decode as float64
// unless their display form is not numeric (dates), in which case the
// displayed text is kept.
func decodeXLSX(name string, data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Name: name, Reason: "invalid spreadsheet", Err: err}
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Name: name, Reason: "workbook has no sheets"}
	}
	sheet := sheets[0]

	shown, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ParseError{Name: name, Reason: "cannot read sheet " + sheet, Err: err}
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Name: name, Reason: "cannot read sheet " + sheet, Err: err}
	}

	t := &Table{Format: FormatXLSX}
	for idx, cols := range shown {
		number := idx + 1

		values := make([]any, len(cols))
		blank := true
		for c, v := range cols {
			v = strings.TrimSpace(v)
			values[c] = v
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

		for c := range values {
			if n, ok := numericCell(f, sheet, number, c, values[c].(string), rawAt(raw, idx, c)); ok {
				values[c] = n
			}
		}

		// Trailing blank cells are trimmed by the reader, so only rows that
		// run past the header are reported.
		if len(values) > len(t.Headers) {
			t.Warnings = append(t.Warnings, raggedWarning(number, len(values), len(t.Headers)))
		}
		if row, ok := newRow(number, t.Headers, values); ok {
			t.Rows = append(t.Rows, row)
		}
	}

	if err := checkTable(name, t); err != nil {
		return nil, err
	}
	return t, nil
}

func rawAt(rows [][]string, r, c int) string {
	if r >= len(rows) || c >= len(rows[r]) {
		return ""
	}
	return strings.TrimSpace(rows[r][c])
}

// numericCell reports whether a cell holds a number. Text cells that look
// numeric (codes with leading zeros) stay strings.
func numericCell(f *excelize.File, sheet string, row, col int, shown, raw string) (float64, bool) {
	if shown == "" || raw == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if _, err := strconv.ParseFloat(strings.ReplaceAll(shown, ",", ""), 64); err != nil {
		return 0, false
	}

	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return 0, false
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return 0, false
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return n, true
	default:
		return 0, false
	}
}
