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

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a Store held entirely in memory. It backs the "mem" engine
// and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	closed      bool
	collections map[string]map[string]Document
	keyFields   map[string]string

	// Reject, when set, is consulted for every op before it is applied. A
	// non-nil error fails that op with the error's message.
	Reject func(collection string, op WriteOp) error

	// FailBulk, when set, makes BulkWrite return it as an aggregate error
	// without applying anything.
	FailBulk error

	// FailFind, when set, makes FindByKeys return it.
	FailFind error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		keyFields:   make(map[string]string),
	}
}

// EnsureCollection registers the collection.
func (s *MemoryStore) EnsureCollection(ctx context.Context, c Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, ok := s.collections[c.Name]; !ok {
		s.collections[c.Name] = make(map[string]Document)
	}
	s.keyFields[c.Name] = c.KeyField
	return nil
}

// FindByKeys returns copies of the stored documents for keys.
func (s *MemoryStore) FindByKeys(ctx context.Context, collection string, keys []string) (map[string]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.FailFind != nil {
		return nil, s.FailFind
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	docs := s.collections[collection]
	out := make(map[string]Document, len(keys))
	for _, k := range keys {
		if d, ok := docs[k]; ok {
			out[k] = d.Clone()
		}
	}
	return out, nil
}

// BulkWrite applies ops in order, continuing past failures.
func (s *MemoryStore) BulkWrite(ctx context.Context, collection string, ops []WriteOp) (*BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.FailBulk != nil {
		return nil, s.FailBulk
	}

	docs, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", collection)
	}

	res := &BulkResult{}
	for _, op := range ops {
		if s.Reject != nil {
			if err := s.Reject(collection, op); err != nil {
				res.fail(op, "%v", err)
				continue
			}
		}

		existing, exists := docs[op.Key]
		switch op.Kind {
		case OpInsert:
			if exists {
				res.fail(op, "duplicate key %q", op.Key)
				continue
			}
			doc := op.Fields.Clone()
			if kf := s.keyFields[collection]; kf != "" {
				doc[kf] = op.Key
			}
			docs[op.Key] = doc
		case OpUpdate:
			if !exists {
				res.fail(op, "no document with key %q", op.Key)
				continue
			}
			for k, v := range op.Fields {
				existing[k] = v
			}
		default:
			res.fail(op, "unknown op kind %q", op.Kind)
			continue
		}
		res.ok(op)
	}
	return res, nil
}

// Put stores doc under key, replacing any existing document.
func (s *MemoryStore) Put(collection, key string, doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		s.collections[collection] = docs
	}
	docs[key] = doc.Clone()
}

// Get returns a copy of the document stored under key.
func (s *MemoryStore) Get(collection, key string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.collections[collection][key]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Keys returns the keys stored in a collection, sorted.
func (s *MemoryStore) Keys(collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.collections[collection]))
	for k := range s.collections[collection] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
