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

package ingestion

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kraklabs/bulkload/pkg/parser"
	"github.com/kraklabs/bulkload/pkg/schema"
)

// Record is a cleaned row: canonical field to normalized value.
type Record struct {
	Values map[string]any

	// Provided holds the fields the row actually supplied. Defaults and
	// carried-forward values are in Values but never in Provided.
	Provided map[string]bool
}

// ProvidedFields returns the supplied fields in entity order.
func (r *Record) ProvidedFields(e *schema.Entity) []string {
	var out []string
	for _, f := range e.Fields {
		if r.Provided[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

// CleanResult is the output of cleaning one row.
type CleanResult struct {
	Record   Record
	Errors   []string
	Warnings []string
}

// OK reports whether the row passed validation.
func (r *CleanResult) OK() bool {
	return len(r.Errors) == 0
}

// Cleaner projects raw rows onto an entity's canonical fields, normalizes
// values and validates them.
type Cleaner struct {
	entity  *schema.Entity
	mapping *schema.FieldMapping
}

// NewCleaner creates a cleaner for one upload's header mapping.
func NewCleaner(e *schema.Entity, m *schema.FieldMapping) *Cleaner {
	return &Cleaner{entity: e, mapping: m}
}

// Clean validates and normalizes one row. The required-field check runs
// first; when it fails no other checks are made.
func (c *Cleaner) Clean(row parser.RawRow) CleanResult {
	res := CleanResult{Record: Record{
		Values:   make(map[string]any, len(c.entity.Fields)),
		Provided: make(map[string]bool, len(c.mapping.Bindings)),
	}}

	raw := make(map[string]any, len(c.mapping.Bindings))
	for _, b := range c.mapping.Bindings {
		v := row.Value(b.Column)
		if isAbsent(v) {
			continue
		}
		f, _ := c.entity.Field(b.Field)
		if f.Kind == schema.KindNumber || f.Kind == schema.KindInteger {
			if s, ok := v.(string); ok && isNumericSentinel(s) {
				continue
			}
		}
		raw[b.Field] = v
	}

	var missing []string
	for _, name := range c.entity.RequiredFields() {
		if _, ok := raw[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")))
		return res
	}

	for i := range c.entity.Fields {
		f := &c.entity.Fields[i]
		v, ok := raw[f.Name]
		if !ok {
			continue
		}

		value, warning, err := normalize(f, v)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
		if err := checkLimits(f, value); err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}

		res.Record.Values[f.Name] = value
		res.Record.Provided[f.Name] = true
	}

	for _, f := range c.entity.Fields {
		if f.Kind == schema.KindEnum && f.Default != "" && !res.Record.Provided[f.Name] {
			res.Record.Values[f.Name] = f.Default
		}
	}

	return res
}

// normalize converts a raw cell to the field's kind.
func normalize(f *schema.Field, v any) (value any, warning string, err error) {
	switch f.Kind {
	case schema.KindNumber:
		n, err := toNumber(f, v)
		if err != nil {
			return nil, "", err
		}
		return n, "", nil

	case schema.KindInteger:
		n, err := toNumber(f, v)
		if err != nil {
			return nil, "", err
		}
		rounded := math.Round(n)
		// float64(math.MaxInt64) is 2^63, one past the largest int64.
		if rounded >= math.MaxInt64 || rounded < math.MinInt64 {
			return nil, "", fmt.Errorf("%s: %q is out of range", f.Name, canonicalString(v))
		}
		if rounded != n {
			warning = fmt.Sprintf("%s: %s rounded to %d", f.Name, canonicalString(n), int64(rounded))
		}
		return int64(rounded), warning, nil

	case schema.KindEnum:
		s := collapseSpace(canonicalString(v))
		matched, ok := f.MatchEnum(s)
		if !ok {
			return nil, "", fmt.Errorf("%s: %q is not one of %s", f.Name, s, strings.Join(f.Values, ", "))
		}
		return matched, "", nil

	default:
		return collapseSpace(canonicalString(v)), "", nil
	}
}

func toNumber(f *schema.Field, v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}

	s := strings.ReplaceAll(strings.TrimSpace(canonicalString(v)), ",", "")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%s: %q is not a number", f.Name, canonicalString(v))
	}
	return n, nil
}

// checkLimits applies max-length and numeric range checks.
func checkLimits(f *schema.Field, value any) error {
	switch x := value.(type) {
	case string:
		if f.MaxLength > 0 && utf8.RuneCountInString(x) > f.MaxLength {
			return fmt.Errorf("%s: exceeds %d characters", f.Name, f.MaxLength)
		}
	case float64:
		return checkRange(f, x)
	case int64:
		return checkRange(f, float64(x))
	}
	return nil
}

func checkRange(f *schema.Field, n float64) error {
	if f.Min != nil && n < *f.Min {
		return fmt.Errorf("%s: %s is below the minimum of %s", f.Name, canonicalString(n), canonicalString(*f.Min))
	}
	if f.Max != nil && n > *f.Max {
		return fmt.Errorf("%s: %s is above the maximum of %s", f.Name, canonicalString(n), canonicalString(*f.Max))
	}
	return nil
}
