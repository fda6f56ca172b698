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
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	testutil "github.com/kraklabs/bulkload/internal/testing"
)

func TestDecode_CSV(t *testing.T) {
	data := []byte("Material Code, Description ,UOM\n" +
		"M-001,  Steel bolt ,EA\n" +
		"\n" +
		",,\n" +
		"M-002,Washer,\n")

	table, err := Decode("materials.csv", "text/csv", data)
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, table.Format)
	assert.Equal(t, EncodingUTF8, table.Encoding)
	assert.Equal(t, []string{"Material Code", "Description", "UOM"}, table.Headers)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, 2, table.Rows[0].Number)
	assert.Equal(t, "M-001", table.Rows[0].Value(0))
	assert.Equal(t, "Steel bolt", table.Rows[0].Value(1))
	assert.Equal(t, "Description", table.Rows[0].Cells[1].Header)

	assert.Equal(t, 5, table.Rows[1].Number)
	assert.Equal(t, "", table.Rows[1].Value(2))
	assert.Nil(t, table.Rows[1].Value(7))
	assert.Empty(t, table.Warnings)
}

func TestDecode_CSVRaggedRows(t *testing.T) {
	data := testutil.CSV(
		[]string{"code", "description", "uom"},
		[]string{"A"},
		[]string{"B", "two", "EA", "extra"},
	)

	table, err := Decode("ragged.csv", "", data)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)

	assert.Len(t, table.Rows[0].Cells, 3)
	assert.Equal(t, "", table.Rows[0].Value(2))
	assert.Len(t, table.Rows[1].Cells, 3)

	require.Len(t, table.Warnings, 2)
	assert.Equal(t, 2, table.Warnings[0].Row)
	assert.Contains(t, table.Warnings[0].Message, "padding")
	assert.Equal(t, 3, table.Warnings[1].Row)
	assert.Contains(t, table.Warnings[1].Message, "truncating")
}

func TestDecode_CSVDelimiters(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"semicolon", "code;description\nA;\"one; two\"\n"},
		{"tab", "code\tdescription\nA\tone; two\n"},
		{"comma", "code,description\nA,\"one; two\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Decode("file.csv", "", []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, []string{"code", "description"}, table.Headers)
			require.Len(t, table.Rows, 1)
			assert.Equal(t, "one; two", table.Rows[0].Value(1))
		})
	}
}

func TestDecode_CSVEncodings(t *testing.T) {
	text := "code,description\nA,Café crème\n"

	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(text)
	require.NoError(t, err)
	latin, err := charmap.Windows1252.NewEncoder().String(text)
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		enc  string
	}{
		{"utf8", []byte(text), EncodingUTF8},
		{"utf8 bom", append([]byte{0xEF, 0xBB, 0xBF}, text...), EncodingUTF8BOM},
		{"utf16le", []byte(utf16), EncodingUTF16LE},
		{"windows-1252", []byte(latin), EncodingWindows1252},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Decode("file.csv", "text/csv", tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.enc, table.Encoding)
			assert.Equal(t, "code", table.Headers[0])
			assert.Equal(t, "Café crème", table.Rows[0].Value(1))
		})
	}
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		data   []byte
		reason string
	}{
		{"empty", "empty.csv", []byte("  \n"), "empty"},
		{"header only", "header.csv", []byte("code,description\n"), "no data rows"},
		{"broken xls", "broken.xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0, 0}, "invalid spreadsheet"},
		{"broken xlsx", "broken.xlsx", []byte("PK\x03\x04garbage"), "invalid spreadsheet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Decode(tt.file, "", tt.data)
			require.Error(t, err)
			assert.Nil(t, table)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.file, perr.Name)
			assert.Contains(t, perr.Reason, tt.reason)
		})
	}
}

func TestDecode_XLS(t *testing.T) {
	data, err := os.ReadFile("testdata/materials.xls")
	require.NoError(t, err)

	table, err := Decode("upload.bin", "", data)
	require.NoError(t, err)

	assert.Equal(t, FormatXLS, table.Format)
	assert.Equal(t, []string{"Material Code", "Description", "UOM", "Unit Price", "Status"}, table.Headers)
	assert.Empty(t, table.Warnings)
	require.Len(t, table.Rows, 3)

	assert.Equal(t, 2, table.Rows[0].Number)
	assert.Equal(t, "M-00001", table.Rows[0].Value(0))
	assert.Equal(t, "12.5", table.Rows[0].Value(3))

	// Row 3 is blank; the missing price cell decodes as "".
	assert.Equal(t, 4, table.Rows[1].Number)
	assert.Equal(t, "Washer", table.Rows[1].Value(1))
	assert.Equal(t, "", table.Rows[1].Value(3))
	assert.Equal(t, "Inactive", table.Rows[1].Value(4))

	assert.Equal(t, 5, table.Rows[2].Number)
	assert.Equal(t, "10045", table.Rows[2].Value(0))
	assert.Equal(t, "3", table.Rows[2].Value(3))
}

func TestDecode_XLSShortStream(t *testing.T) {
	data, err := os.ReadFile("testdata/materials.xls")
	require.NoError(t, err)

	// Shrink the Workbook stream size in its directory entry (sector 1,
	// second entry) so it would be read from the mini stream.
	broken := append([]byte(nil), data...)
	sizeAt := 512*2 + 128 + 120
	broken[sizeAt] = 0x00
	broken[sizeAt+1] = 0x02

	_, err = Decode("short.xls", "", broken)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "invalid spreadsheet", perr.Reason)
}

func TestDecode_XLSX(t *testing.T) {
	data := testutil.XLSX(t,
		[]any{"Material Code", "Description", "Price"},
		[]any{"00123", "Bolt", 12.5},
		[]any{nil, nil, nil},
		[]any{"M-2", "", 3},
	)

	// Content sniffing wins over a misleading extension.
	table, err := Decode("upload.bin", "application/octet-stream", data)
	require.NoError(t, err)

	assert.Equal(t, FormatXLSX, table.Format)
	assert.Equal(t, []string{"Material Code", "Description", "Price"}, table.Headers)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, 2, first.Number)
	assert.Equal(t, "00123", first.Value(0))
	assert.Equal(t, "Bolt", first.Value(1))
	assert.Equal(t, 12.5, first.Value(2))

	second := table.Rows[1]
	assert.Equal(t, 4, second.Number)
	assert.Equal(t, "", second.Value(1))
	assert.Equal(t, 3.0, second.Value(2))
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b,c")))
	assert.Equal(t, ';', sniffDelimiter([]byte("\n\na;b;c\n1,2;3")))
	assert.Equal(t, '\t', sniffDelimiter([]byte("a\tb")))
	assert.Equal(t, ',', sniffDelimiter([]byte("\"a;b;c\",d")))
	assert.Equal(t, ',', sniffDelimiter([]byte("single")))
}
