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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/kraklabs/bulkload/internal/testing"
	"github.com/kraklabs/bulkload/pkg/schema"
	"github.com/kraklabs/bulkload/pkg/storage"
)

// countingStore counts BulkWrite calls and their sizes.
type countingStore struct {
	storage.Store
	chunks []int
}

func (s *countingStore) BulkWrite(ctx context.Context, coll string, ops []storage.WriteOp) (*storage.BulkResult, error) {
	s.chunks = append(s.chunks, len(ops))
	return s.Store.BulkWrite(ctx, coll, ops)
}

// silentStore acknowledges nothing.
type silentStore struct {
	storage.Store
}

func (silentStore) BulkWrite(context.Context, string, []storage.WriteOp) (*storage.BulkResult, error) {
	return &storage.BulkResult{}, nil
}

func inserts(n int) []storage.WriteOp {
	ops := make([]storage.WriteOp, n)
	for i := range ops {
		key := fmt.Sprintf("M-%05d", i+1)
		ops[i] = storage.WriteOp{ID: correlationID(i + 2), Kind: storage.OpInsert, Key: key, Fields: storage.Document{"description": key}}
	}
	return ops
}

func TestWriter_Chunks(t *testing.T) {
	mem := testutil.SetupTestStore(t, schema.Material())
	store := &countingStore{Store: mem}

	w := NewWriter(store, "materials", 500, quietLogger())
	failures := w.Write(context.Background(), inserts(1201))

	assert.Empty(t, failures)
	assert.Equal(t, []int{500, 500, 201}, store.chunks)
	assert.Len(t, mem.Keys("materials"), 1201)
}

func TestWriter_EmptyIsNoop(t *testing.T) {
	mem := testutil.SetupTestStore(t, schema.Material())
	store := &countingStore{Store: mem}

	assert.Empty(t, NewWriter(store, "materials", 0, nil).Write(context.Background(), nil))
	assert.Empty(t, store.chunks)
}

func TestWriter_OneRejectedOp(t *testing.T) {
	mem := testutil.SetupTestStore(t, schema.Material())
	mem.Reject = func(_ string, op storage.WriteOp) error {
		if op.Key == "M-00100" {
			return errors.New("rejected")
		}
		return nil
	}

	failures := NewWriter(mem, "materials", 500, quietLogger()).Write(context.Background(), inserts(500))

	require.Len(t, failures, 1)
	assert.Equal(t, storage.OpFailure{ID: "row-101", Key: "M-00100", Reason: "rejected"}, failures[0])
	assert.Len(t, mem.Keys("materials"), 499)
}

func TestWriter_AggregateFailureFailsChunk(t *testing.T) {
	mem := testutil.SetupTestStore(t, schema.Material())
	mem.FailBulk = errors.New("connection reset")

	failures := NewWriter(mem, "materials", 2, quietLogger()).Write(context.Background(), inserts(3))

	require.Len(t, failures, 3)
	for _, f := range failures {
		assert.Equal(t, "connection reset", f.Reason)
	}
}

func TestWriter_UnacknowledgedOpsFail(t *testing.T) {
	mem := testutil.SetupTestStore(t, schema.Material())

	failures := NewWriter(silentStore{Store: mem}, "materials", 10, quietLogger()).Write(context.Background(), inserts(2))

	require.Len(t, failures, 2)
	assert.Equal(t, reasonNotAcknowledged, failures[0].Reason)
}
