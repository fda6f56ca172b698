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
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry holds the entities that can be uploaded, by lowercase name.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]Entity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]Entity)}
}

// DefaultRegistry creates a registry holding the built-in entities.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, e := range Builtins() {
		// Built-ins are validated by tests; a failure here is a programming error.
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

// Register validates and adds an entity, replacing any entity with the same name.
func (r *Registry) Register(e Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities[strings.ToLower(e.Name)] = e
	return nil
}

// Get returns the entity with the given name (case-insensitive).
func (r *Registry) Get(name string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// List returns all entities sorted by name.
func (r *Registry) List() []Entity {
	r.mu.RLock()
	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered entity names, sorted.
func (r *Registry) Names() []string {
	list := r.List()
	names := make([]string, len(list))
	for i, e := range list {
		names[i] = e.Name
	}
	return names
}

// entityFile is the on-disk layout of an alias table file.
type entityFile struct {
	Entities []Entity `yaml:"entities"`
}

// LoadEntities reads entity declarations from a YAML file:
//
//	entities:
//	  - name: supplier
//	    key: supplierCode
//	    fields:
//	      - name: supplierCode
//	        kind: string
//	        required: true
//	        aliases: ["supplier code", "vendor"]
func LoadEntities(path string) ([]Entity, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from local config
	if err != nil {
		return nil, fmt.Errorf("read entity file: %w", err)
	}

	var f entityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse entity file %s: %w", path, err)
	}
	for i := range f.Entities {
		if err := f.Entities[i].Validate(); err != nil {
			return nil, fmt.Errorf("entity file %s: %w", path, err)
		}
	}
	return f.Entities, nil
}

// LoadInto loads entity files and registers their entities in r. Later files
// override earlier declarations and built-ins with the same name.
func (r *Registry) LoadInto(paths ...string) error {
	for _, p := range paths {
		entities, err := LoadEntities(p)
		if err != nil {
			return err
		}
		for _, e := range entities {
			if err := r.Register(e); err != nil {
				return err
			}
		}
	}
	return nil
}
