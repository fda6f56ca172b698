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

// Package bootstrap opens the store an upload pipeline writes to.
//
// A StoreConfig selects one of three engines:
//
//   - bolt: a local bbolt file under DataDir (default)
//   - mem: an in-memory store, lost on exit
//   - mongo: a MongoDB database reached through MongoURI
//
// # Initialization Workflow
//
//	// Create the data directory and one collection per registered entity
//	info, err := bootstrap.InitStore(ctx, bootstrap.StoreConfig{
//	    Engine: "bolt",
//	}, schema.DefaultRegistry(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Store ready at: %s\n", info.Location)
//
//	// Later, open it for uploads
//	store, err := bootstrap.OpenStore(ctx, bootstrap.StoreConfig{}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// # Idempotency
//
// InitStore is idempotent: calling it again on the same store creates
// nothing new and touches no documents.
package bootstrap
