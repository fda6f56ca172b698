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
)

// FieldKind is the value type of a canonical field.
type FieldKind string

const (
	// KindString fields are trimmed and whitespace-collapsed.
	KindString FieldKind = "string"

	// KindNumber fields are parsed as float64.
	KindNumber FieldKind = "number"

	// KindInteger fields are parsed as numbers and rounded to int64.
	KindInteger FieldKind = "integer"

	// KindEnum fields must match one of the declared values (case-insensitive).
	KindEnum FieldKind = "enum"
)

// Field describes one canonical field of an entity.
type Field struct {
	// Name is the canonical field name records are stored under.
	Name string `yaml:"name" json:"name"`

	// Kind selects normalization and type checks.
	Kind FieldKind `yaml:"kind" json:"kind"`

	// Required fields must be supplied by every row.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// MaxLength limits string values, in runes. Zero means unlimited.
	MaxLength int `yaml:"max_length,omitempty" json:"max_length,omitempty"`

	// Min and Max bound numeric values when set.
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// Values lists the accepted spellings of an enum field.
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`

	// Default is applied to an enum field the row did not supply.
	Default string `yaml:"default,omitempty" json:"default,omitempty"`

	// Tracked marks a status-like field: an omitted value never resets the
	// stored one, and supplied changes are tallied per value.
	Tracked bool `yaml:"tracked,omitempty" json:"tracked,omitempty"`

	// Aliases are the accepted header spellings. The canonical name is
	// always accepted as well.
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Entity is the declared schema of one uploadable record type: its canonical
// fields in alias-table order and the natural key that identifies a record.
type Entity struct {
	// Name identifies the entity in URLs and CLI flags (e.g. "material").
	Name string `yaml:"name" json:"name"`

	// Description is shown by listings.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Collection is the store collection records are written to.
	// Defaults to Name.
	Collection string `yaml:"collection,omitempty" json:"collection"`

	// Key is the canonical field holding the natural key.
	Key string `yaml:"key" json:"key"`

	// Fields in alias-table order. Header resolution binds the first match.
	Fields []Field `yaml:"fields" json:"fields"`
}

// Field returns the canonical field with the given name.
func (e *Entity) Field(name string) (*Field, bool) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// RequiredFields returns the names of required fields in table order.
func (e *Entity) RequiredFields() []string {
	var out []string
	for _, f := range e.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// TrackedField returns the first status-like field, if any.
func (e *Entity) TrackedField() (*Field, bool) {
	for i := range e.Fields {
		if e.Fields[i].Tracked {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// CollectionName returns the store collection for the entity.
func (e *Entity) CollectionName() string {
	if e.Collection != "" {
		return e.Collection
	}
	return e.Name
}

// Validate checks that the declaration is internally consistent.
func (e *Entity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("entity name is required")
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entity %q: no fields declared", e.Name)
	}

	seen := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		if f.Name == "" {
			return fmt.Errorf("entity %q: field without a name", e.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("entity %q: field %q declared twice", e.Name, f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case KindString, KindNumber, KindInteger:
		case KindEnum:
			if len(f.Values) == 0 {
				return fmt.Errorf("entity %q: enum field %q has no values", e.Name, f.Name)
			}
			if f.Default != "" && !containsFold(f.Values, f.Default) {
				return fmt.Errorf("entity %q: default %q of field %q is not one of %v", e.Name, f.Default, f.Name, f.Values)
			}
		default:
			return fmt.Errorf("entity %q: field %q has unknown kind %q", e.Name, f.Name, f.Kind)
		}

		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("entity %q: field %q has min greater than max", e.Name, f.Name)
		}
	}

	key, ok := e.Field(e.Key)
	if !ok {
		return fmt.Errorf("entity %q: key field %q is not declared", e.Name, e.Key)
	}
	if !key.Required {
		return fmt.Errorf("entity %q: key field %q must be required", e.Name, e.Key)
	}
	// Stores match keys as text.
	if key.Kind != KindString {
		return fmt.Errorf("entity %q: key field %q must be of kind %s, not %s", e.Name, e.Key, KindString, key.Kind)
	}
	return nil
}

// MatchEnum returns the declared spelling of v, matched case-insensitively.
func (f *Field) MatchEnum(v string) (string, bool) {
	for _, allowed := range f.Values {
		if strings.EqualFold(allowed, v) {
			return allowed, true
		}
	}
	return "", false
}

func containsFold(values []string, v string) bool {
	for _, s := range values {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Float returns a pointer to v, for declaring Min/Max bounds.
func Float(v float64) *float64 {
	return &v
}
