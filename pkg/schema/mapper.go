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

package schema

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ColumnBinding binds one source column to a canonical field.
type ColumnBinding struct {
	Column int    `json:"column"`
	Header string `json:"header"`
	Field  string `json:"field"`
}

// FieldMapping is the header resolution for one upload. It is built once and
// reused for every row.
type FieldMapping struct {
	// Bindings in column order.
	Bindings []ColumnBinding `json:"bindings"`

	// Unmapped lists the headers that matched no field, or whose field was
	// already bound by an earlier column.
	Unmapped []string `json:"unmapped,omitempty"`
}

// Has reports whether the canonical field is bound to a column.
func (m *FieldMapping) Has(field string) bool {
	for _, b := range m.Bindings {
		if b.Field == field {
			return true
		}
	}
	return false
}

// Fields returns the bound canonical fields in column order.
func (m *FieldMapping) Fields() []string {
	out := make([]string, len(m.Bindings))
	for i, b := range m.Bindings {
		out[i] = b.Field
	}
	return out
}

// HeaderMap returns original header -> canonical field.
func (m *FieldMapping) HeaderMap() map[string]string {
	out := make(map[string]string, len(m.Bindings))
	for _, b := range m.Bindings {
		out[b.Header] = b.Field
	}
	return out
}

// MismatchError reports that the file's headers cannot satisfy the entity's
// required fields.
type MismatchError struct {
	Entity  string
	Missing []string
	Headers []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s file is missing required columns: %s (found: %s)",
		e.Entity, strings.Join(e.Missing, ", "), strings.Join(e.Headers, ", "))
}

// NormalizeHeader folds a header for alias matching: accents removed,
// lowercased, and everything but letters and digits dropped. "Material-Code",
// "material code" and "MATERIAL_CODE" all normalize to "materialcode".
func NormalizeHeader(h string) string {
	decomposed := norm.NFKD.String(h)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// aliasIndex is normalized alias -> index of the first field that accepts it.
func aliasIndex(e *Entity) map[string]int {
	idx := make(map[string]int)
	for i, f := range e.Fields {
		for _, a := range append([]string{f.Name}, f.Aliases...) {
			n := NormalizeHeader(a)
			if n == "" {
				continue
			}
			if _, taken := idx[n]; !taken {
				idx[n] = i
			}
		}
	}
	return idx
}

// MapHeaders resolves raw headers against the entity's alias table. Each
// header binds to the first field (in table order) that lists it; a header
// whose normalized form was already consumed, or whose field is already bound,
// is reported as unmapped. A *MismatchError is returned when a required field
// ends up unbound.
func MapHeaders(e *Entity, headers []string) (*FieldMapping, error) {
	index := aliasIndex(e)
	memo := make(map[string]string, len(headers))
	consumed := make(map[string]bool, len(headers))
	bound := make(map[string]bool, len(e.Fields))

	m := &FieldMapping{}
	for col, h := range headers {
		n, ok := memo[h]
		if !ok {
			n = NormalizeHeader(h)
			memo[h] = n
		}
		if n == "" {
			continue
		}
		if consumed[n] {
			m.Unmapped = append(m.Unmapped, h)
			continue
		}
		consumed[n] = true

		fi, ok := index[n]
		if !ok {
			m.Unmapped = append(m.Unmapped, h)
			continue
		}
		field := e.Fields[fi].Name
		if bound[field] {
			m.Unmapped = append(m.Unmapped, h)
			continue
		}
		bound[field] = true
		m.Bindings = append(m.Bindings, ColumnBinding{Column: col, Header: h, Field: field})
	}

	var missing []string
	for _, name := range e.RequiredFields() {
		if !bound[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return m, &MismatchError{Entity: e.Name, Missing: missing, Headers: headers}
	}
	return m, nil
}
