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
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is the interface that all keyed document stores must implement.
// Documents live in named collections and are identified by a natural key
// held in the collection's key field.
type Store interface {
	// EnsureCollection creates the collection and its unique key index if
	// they don't exist. It is idempotent.
	EnsureCollection(ctx context.Context, c Collection) error

	// FindByKeys returns the stored documents whose natural key is in keys,
	// indexed by key. Missing keys are simply absent from the result.
	FindByKeys(ctx context.Context, collection string, keys []string) (map[string]Document, error)

	// BulkWrite applies ops unordered and continues past individual
	// failures. Every op is echoed back by ID in either Succeeded or Failed.
	// A non-nil error means the store could not say which ops were applied.
	BulkWrite(ctx context.Context, collection string, ops []WriteOp) (*BulkResult, error)

	// Close releases any resources held by the store.
	Close() error
}

// Collection describes one keyed collection.
type Collection struct {
	Name     string
	KeyField string
}

// Document is a stored record: canonical field name to value.
type Document map[string]any

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// OpKind is the kind of a write operation.
type OpKind string

const (
	// OpInsert creates a document and fails if the key already exists.
	OpInsert OpKind = "insert"

	// OpUpdate sets the given fields on an existing document.
	OpUpdate OpKind = "update"
)

// WriteOp is one operation of a bulk write.
type WriteOp struct {
	// ID correlates the op with its result. Callers choose it.
	ID string

	Kind OpKind

	// Key is the natural key of the target document.
	Key string

	// Fields is the full document for inserts and the fields to set for
	// updates.
	Fields Document
}

// OpFailure is a rejected op.
type OpFailure struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// BulkResult lists the outcome of every op in a bulk write.
type BulkResult struct {
	Succeeded []string
	Failed    []OpFailure
}

func (r *BulkResult) ok(op WriteOp) {
	r.Succeeded = append(r.Succeeded, op.ID)
}

func (r *BulkResult) fail(op WriteOp, format string, args ...any) {
	r.Failed = append(r.Failed, OpFailure{ID: op.ID, Key: op.Key, Reason: fmt.Sprintf(format, args...)})
}
