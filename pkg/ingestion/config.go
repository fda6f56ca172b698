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

// Default pipeline tuning.
const (
	DefaultBatchSize      = 2000
	DefaultConcurrency    = 3
	DefaultWriteChunkSize = 500
	DefaultPreviewSize    = 10
)

// Config tunes the upload pipeline.
type Config struct {
	// BatchSize is the number of rows per scheduling batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Concurrency is the maximum number of batches whose lookups and writes
	// are in flight at once.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// WriteChunkSize is the maximum number of ops per bulk write call.
	WriteChunkSize int `yaml:"write_chunk_size" json:"write_chunk_size"`

	// PreviewSize is the number of recent outcomes carried by each
	// batch-completed snapshot.
	PreviewSize int `yaml:"preview_size" json:"preview_size"`
}

// DefaultConfig returns the default pipeline tuning.
func DefaultConfig() Config {
	return Config{
		BatchSize:      DefaultBatchSize,
		Concurrency:    DefaultConcurrency,
		WriteChunkSize: DefaultWriteChunkSize,
		PreviewSize:    DefaultPreviewSize,
	}
}

// withDefaults fills zero or negative values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.WriteChunkSize <= 0 {
		c.WriteChunkSize = d.WriteChunkSize
	}
	if c.PreviewSize <= 0 {
		c.PreviewSize = d.PreviewSize
	}
	return c
}
