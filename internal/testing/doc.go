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

// Package testing provides test helpers for bulkload package tests.
//
// Import it under an alias to avoid clashing with the standard library:
//
//	import testutil "github.com/kraklabs/bulkload/internal/testing"
//
// # Stores
//
// SetupTestStore returns an in-memory store with collections ensured for the
// given entities; SetupBoltStore does the same on a temporary bolt file.
// SeedDocuments pre-populates a memory store so uploads see existing records.
//
// # Fixtures
//
//   - CSV: render rows as comma-separated text
//   - MaterialRows: n sequential material rows with a header
//   - XLSX: render rows into a single-sheet workbook
package testing
