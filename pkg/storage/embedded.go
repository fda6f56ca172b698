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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Embedded engine names.
const (
	EngineBolt = "bolt"
	EngineMem  = "mem"
)

// EmbeddedConfig configures the embedded store.
type EmbeddedConfig struct {
	// DataDir is the directory holding the bolt database file.
	// Defaults to ~/.bulkload/data.
	DataDir string

	// Engine is "bolt" (default) or "mem".
	Engine string

	// Name is the database file name without extension. Defaults to "bulkload".
	Name string
}

// NewEmbeddedStore opens the local store selected by config.Engine.
func NewEmbeddedStore(config EmbeddedConfig) (Store, error) {
	switch config.Engine {
	case EngineMem:
		return NewMemoryStore(), nil
	case "", EngineBolt:
		return NewBoltStore(config)
	default:
		return nil, fmt.Errorf("unknown embedded engine %q (want %q or %q)", config.Engine, EngineBolt, EngineMem)
	}
}

// BoltStore implements Store on a local bbolt file. Each collection is a
// bucket; documents are JSON values under their natural key.
type BoltStore struct {
	db     *bolt.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewBoltStore opens (or creates) the bolt database described by config.
func NewBoltStore(config EmbeddedConfig) (*BoltStore, error) {
	if config.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.DataDir = filepath.Join(homeDir, ".bulkload", "data")
	}
	if config.Name == "" {
		config.Name = "bulkload"
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(config.DataDir, config.Name+".db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}

	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string {
	return s.path
}

// EnsureCollection creates the collection bucket.
func (s *BoltStore) EnsureCollection(ctx context.Context, c Collection) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(c.Name)); err != nil {
			return fmt.Errorf("create bucket %s: %w", c.Name, err)
		}
		return nil
	})
}

// FindByKeys reads the documents for keys in a single read transaction.
func (s *BoltStore) FindByKeys(ctx context.Context, collection string, keys []string) (map[string]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	out := make(map[string]Document, len(keys))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		for _, k := range keys {
			v := b.Get([]byte(k))
			if v == nil {
				continue
			}
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("decode %s/%s: %w", collection, k, err)
			}
			out[k] = doc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BulkWrite applies ops in one read-write transaction. Ops are checked one
// by one and rejected individually; a commit failure fails the whole call.
func (s *BoltStore) BulkWrite(ctx context.Context, collection string, ops []WriteOp) (*BulkResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var res *BulkResult
	err := s.db.Update(func(tx *bolt.Tx) error {
		res = &BulkResult{}
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return fmt.Errorf("collection %q does not exist", collection)
		}

		for _, op := range ops {
			key := []byte(op.Key)
			current := b.Get(key)

			var doc Document
			switch op.Kind {
			case OpInsert:
				if current != nil {
					res.fail(op, "duplicate key %q", op.Key)
					continue
				}
				doc = op.Fields
			case OpUpdate:
				if current == nil {
					res.fail(op, "no document with key %q", op.Key)
					continue
				}
				if err := json.Unmarshal(current, &doc); err != nil {
					res.fail(op, "decode stored document: %v", err)
					continue
				}
				for k, v := range op.Fields {
					doc[k] = v
				}
			default:
				res.fail(op, "unknown op kind %q", op.Kind)
				continue
			}

			data, err := json.Marshal(doc)
			if err != nil {
				res.fail(op, "encode document: %v", err)
				continue
			}
			if err := b.Put(key, data); err != nil {
				res.fail(op, "%v", err)
				continue
			}
			res.ok(op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk write %s: %w", collection, err)
	}
	return res, nil
}

// Count returns the number of documents in a collection.
func (s *BoltStore) Count(collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(collection)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
