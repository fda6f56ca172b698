// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package ingestion

import "github.com/kraklabs/bulkload/pkg/parser"

// Batch is a contiguous slice of an upload's rows. Index is for progress
// display only.
type Batch struct {
	Index int
	Rows  []parser.RawRow
}

// Batcher splits an upload's rows into fixed-size batches.
type Batcher struct {
	size int
}

// NewBatcher creates a new batcher. Sizes below 1 use DefaultBatchSize.
func NewBatcher(size int) *Batcher {
	if size < 1 {
		size = DefaultBatchSize
	}
	return &Batcher{size: size}
}

// Batch slices rows in original order. The last batch may be short.
func (b *Batcher) Batch(rows []parser.RawRow) []Batch {
	if len(rows) == 0 {
		return nil
	}

	batches := make([]Batch, 0, (len(rows)+b.size-1)/b.size)
	for start := 0; start < len(rows); start += b.size {
		end := start + b.size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, Batch{Index: len(batches), Rows: rows[start:end]})
	}
	return batches
}
