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

import "sync"

// KeySet is the upload-scoped set of natural keys already accepted.
type KeySet struct {
	mu   sync.Mutex
	rows map[string]int
}

// NewKeySet creates an empty key set.
func NewKeySet() *KeySet {
	return &KeySet{rows: make(map[string]int)}
}

// Claim records key for row. It returns false, with the row that first
// claimed the key, when the key was already taken.
func (s *KeySet) Claim(key string, row int) (first int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, taken := s.rows[key]; taken {
		return prev, false
	}
	s.rows[key] = row
	return row, true
}

// Len returns the number of distinct keys claimed.
func (s *KeySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
