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
	"log/slog"
	"time"

	"github.com/kraklabs/bulkload/pkg/storage"
)

// reasonNotAcknowledged is reported for ops the store neither confirmed nor
// rejected.
const reasonNotAcknowledged = "store did not acknowledge the write"

// Writer sends write ops to a store in bounded chunks.
type Writer struct {
	store      storage.Store
	collection string
	chunkSize  int
	logger     *slog.Logger
}

// NewWriter creates a writer for one collection.
func NewWriter(store storage.Store, collection string, chunkSize int, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if chunkSize < 1 {
		chunkSize = DefaultWriteChunkSize
	}
	return &Writer{store: store, collection: collection, chunkSize: chunkSize, logger: logger}
}

// Write sends ops in chunks and returns every op that did not commit. A
// chunk whose bulk write fails as a whole fails all of its ops with that
// error; one chunk failing never stops the next.
func (w *Writer) Write(ctx context.Context, ops []storage.WriteOp) []storage.OpFailure {
	var failures []storage.OpFailure

	for start := 0; start < len(ops); start += w.chunkSize {
		end := start + w.chunkSize
		if end > len(ops) {
			end = len(ops)
		}
		chunk := ops[start:end]

		t0 := time.Now()
		res, err := w.store.BulkWrite(ctx, w.collection, chunk)
		recordWriteChunk(time.Since(t0), err)

		if err != nil {
			w.logger.Warn("upload.write.chunk.error",
				"collection", w.collection,
				"ops", len(chunk),
				"err", err,
			)
			for _, op := range chunk {
				failures = append(failures, storage.OpFailure{ID: op.ID, Key: op.Key, Reason: err.Error()})
			}
			recordOpFailures(len(chunk))
			continue
		}

		resolved := make(map[string]bool, len(chunk))
		for _, id := range res.Succeeded {
			resolved[id] = true
		}
		for _, f := range res.Failed {
			resolved[f.ID] = true
			failures = append(failures, f)
		}
		for _, op := range chunk {
			if !resolved[op.ID] {
				failures = append(failures, storage.OpFailure{ID: op.ID, Key: op.Key, Reason: reasonNotAcknowledged})
			}
		}
		if n := len(chunk) - len(res.Succeeded); n > 0 {
			recordOpFailures(n)
		}
	}

	return failures
}
