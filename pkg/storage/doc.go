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

// Package storage provides keyed document store abstractions for bulkload.
//
// The ingestion pipeline needs exactly two things from a store: a bulk
// existence lookup by natural key, and an unordered bulk write that reports
// the fate of every operation by the correlation ID the caller assigned.
// The [Store] interface captures that contract.
//
// # Available Stores
//
//   - [BoltStore]: local bbolt file, one bucket per collection. The default.
//   - [MemoryStore]: in-process maps, for tests and dry runs ("mem" engine).
//   - [MongoStore]: a MongoDB database with a unique index on each
//     collection's key field.
//
// # Quick Start
//
//	store, err := storage.NewEmbeddedStore(storage.EmbeddedConfig{
//	    DataDir: "/path/to/data",
//	    Engine:  "bolt",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	coll := storage.Collection{Name: "materials", KeyField: "materialCode"}
//	if err := store.EnsureCollection(ctx, coll); err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := store.BulkWrite(ctx, coll.Name, []storage.WriteOp{
//	    {ID: "row-2", Kind: storage.OpInsert, Key: "M-1", Fields: doc},
//	})
//
// # Failure Semantics
//
// BulkWrite never stops at the first rejected op. Rejected ops are listed in
// [BulkResult].Failed with a reason; everything else is in Succeeded. When
// BulkWrite returns an error the store could not attribute the failure to
// individual ops, and the caller decides what that means for the chunk.
//
// # Thread Safety
//
// All stores are safe for concurrent use.
package storage
