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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/richardlehane/mscfb"
)

// minWorkbookStream is the smallest Workbook stream Excel writes. Shorter
// streams live in the compound file's mini stream, which the BIFF reader
// cannot follow.
const minWorkbookStream = 4096

// decodeXLS reads the first worksheet of a BIFF8 workbook. The first
// non-blank row is the header row; blank cells decode as "". All values are
// the cell's text, numbers included.
func decodeXLS(name string, data []byte) (t *Table, err error) {
	if err := checkCompoundFile(data); err != nil {
		return nil, &ParseError{Name: name, Reason: "invalid spreadsheet", Err: err}
	}

	// The BIFF reader panics on records it cannot follow.
	defer func() {
		if r := recover(); r != nil {
			t = nil
			err = &ParseError{Name: name, Reason: "invalid spreadsheet", Err: fmt.Errorf("%v", r)}
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, &ParseError{Name: name, Reason: "invalid spreadsheet", Err: err}
	}
	if wb == nil {
		return nil, &ParseError{Name: name, Reason: "invalid spreadsheet", Err: errors.New("no workbook stream")}
	}
	if wb.NumSheets() == 0 {
		return nil, &ParseError{Name: name, Reason: "workbook has no sheets"}
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, &ParseError{Name: name, Reason: "workbook has no sheets"}
	}

	t = &Table{Format: FormatXLS}
	for idx := 0; idx <= int(sheet.MaxRow); idx++ {
		row := sheetRow(sheet, idx)
		if row == nil {
			continue
		}
		number := idx + 1

		// Cells written without a ROW record leave the column span at zero.
		width := row.LastCol()
		if len(t.Headers) > width {
			width = len(t.Headers)
		}
		values := make([]any, 0, width)
		blank := true
		for c := 0; c < width; c++ {
			v := strings.TrimSpace(row.Col(c))
			values = append(values, v)
			if v != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		for len(values) > 0 && values[len(values)-1] == "" {
			values = values[:len(values)-1]
		}

		if t.Headers == nil {
			t.Headers = make([]string, len(values))
			for i, v := range values {
				t.Headers[i] = v.(string)
			}
			continue
		}

		if len(values) > len(t.Headers) {
			t.Warnings = append(t.Warnings, raggedWarning(number, len(values), len(t.Headers)))
		}
		if r, ok := newRow(number, t.Headers, values); ok {
			t.Rows = append(t.Rows, r)
		}
	}

	if err := checkTable(name, t); err != nil {
		return nil, err
	}
	return t, nil
}

// sheetRow returns nil for rows the sheet has no record of.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// checkCompoundFile rejects containers the BIFF reader would abort the
// process on: sector sizes other than 512 bytes, broken sector chains and
// workbook streams kept in the mini stream.
func checkCompoundFile(data []byte) error {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if len(data) < 32 || data[30] != 9 {
		return errors.New("unsupported sector size")
	}
	for {
		entry, err := doc.Next()
		if err == io.EOF {
			return errors.New("no workbook stream")
		}
		if err != nil {
			return err
		}
		if entry.Name != "Workbook" && entry.Name != "Book" {
			continue
		}
		if entry.Size < minWorkbookStream {
			return fmt.Errorf("workbook stream of %d bytes is too short", entry.Size)
		}
		if _, err := io.Copy(io.Discard, entry); err != nil {
			return fmt.Errorf("read workbook stream: %w", err)
		}
		return nil
	}
}
