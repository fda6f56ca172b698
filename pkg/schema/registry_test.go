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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins_Valid(t *testing.T) {
	for _, e := range Builtins() {
		t.Run(e.Name, func(t *testing.T) {
			require.NoError(t, e.Validate())

			tracked, ok := e.TrackedField()
			require.True(t, ok)
			assert.Equal(t, "status", tracked.Name)
			assert.Equal(t, StatusActive, tracked.Default)
		})
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, []string{"material", "warranty"}, r.Names())

	e, ok := r.Get("Material")
	require.True(t, ok)
	assert.Equal(t, "materials", e.CollectionName())
	assert.Equal(t, []string{"materialCode"}, e.RequiredFields())

	_, ok = r.Get("supplier")
	assert.False(t, ok)
}

func TestEntity_Validate(t *testing.T) {
	tests := []struct {
		name    string
		entity  Entity
		wantErr string
	}{
		{
			name:    "missing name",
			entity:  Entity{Key: "id", Fields: []Field{{Name: "id", Kind: KindString, Required: true}}},
			wantErr: "name is required",
		},
		{
			name:    "key not declared",
			entity:  Entity{Name: "x", Key: "id", Fields: []Field{{Name: "code", Kind: KindString}}},
			wantErr: "key field",
		},
		{
			name:    "key not required",
			entity:  Entity{Name: "x", Key: "id", Fields: []Field{{Name: "id", Kind: KindString}}},
			wantErr: "must be required",
		},
		{
			name: "non-text key",
			entity: Entity{Name: "x", Key: "id", Fields: []Field{
				{Name: "id", Kind: KindInteger, Required: true},
			}},
			wantErr: "must be of kind string",
		},
		{
			name: "enum without values",
			entity: Entity{Name: "x", Key: "id", Fields: []Field{
				{Name: "id", Kind: KindString, Required: true},
				{Name: "state", Kind: KindEnum},
			}},
			wantErr: "has no values",
		},
		{
			name: "bad default",
			entity: Entity{Name: "x", Key: "id", Fields: []Field{
				{Name: "id", Kind: KindString, Required: true},
				{Name: "state", Kind: KindEnum, Values: []string{"On"}, Default: "Off"},
			}},
			wantErr: "default",
		},
		{
			name: "unknown kind",
			entity: Entity{Name: "x", Key: "id", Fields: []Field{
				{Name: "id", Kind: "date", Required: true},
			}},
			wantErr: "unknown kind",
		},
		{
			name: "duplicate field",
			entity: Entity{Name: "x", Key: "id", Fields: []Field{
				{Name: "id", Kind: KindString, Required: true},
				{Name: "id", Kind: KindString},
			}},
			wantErr: "declared twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEntities(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.yaml")
	content := `entities:
  - name: supplier
    description: Supplier master
    collection: suppliers
    key: supplierCode
    fields:
      - name: supplierCode
        kind: string
        required: true
        max_length: 20
        aliases: ["supplier code", "vendor", "vendor code"]
      - name: rating
        kind: integer
        min: 1
        max: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entities, err := LoadEntities(path)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, "supplier", e.Name)
	assert.Equal(t, "suppliers", e.CollectionName())
	rating, ok := e.Field("rating")
	require.True(t, ok)
	require.NotNil(t, rating.Max)
	assert.Equal(t, 5.0, *rating.Max)

	r := DefaultRegistry()
	require.NoError(t, r.LoadInto(path))
	assert.Equal(t, []string{"material", "supplier", "warranty"}, r.Names())

	m, err := MapHeaders(&e, []string{"Vendor Code", "Rating"})
	require.NoError(t, err)
	assert.Equal(t, []string{"supplierCode", "rating"}, m.Fields())
}

func TestLoadEntities_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entities:\n  - name: broken\n    key: id\n"), 0644))

	_, err := LoadEntities(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fields declared")

	_, err = LoadEntities(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
