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
	"mime"
	"path/filepath"
	"strings"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Decode turns an uploaded file into a Table. The format is chosen by
// sniffing the content first, then by file extension, then by the declared
// content type; anything else is read as delimited text. Failures are
// returned as *ParseError.
func Decode(name, contentType string, data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Name: name, Reason: "file is empty"}
	}

	switch {
	case bytes.HasPrefix(data, zipMagic):
		return decodeXLSX(name, data)
	case bytes.HasPrefix(data, oleMagic):
		return decodeXLS(name, data)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return decodeXLSX(name, data)
	case ".xls":
		return decodeXLS(name, data)
	case ".csv", ".txt", ".tsv":
		return decodeCSV(name, data)
	}

	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
			return decodeXLSX(name, data)
		case "application/vnd.ms-excel":
			return decodeXLS(name, data)
		}
	}
	return decodeCSV(name, data)
}
