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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ReportInfo is the listing entry for a saved report.
type ReportInfo struct {
	UploadID  string    `json:"upload_id"`
	Entity    string    `json:"entity"`
	FileName  string    `json:"file_name,omitempty"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ReportStore keeps terminal snapshots on disk, one JSON file per upload.
type ReportStore struct {
	dir string
}

// NewReportStore creates a report store rooted at dir. An empty dir means
// the current directory.
func NewReportStore(dir string) *ReportStore {
	return &ReportStore{dir: dir}
}

// Dir returns the directory reports are written to.
func (rs *ReportStore) Dir() string {
	return rs.dir
}

// Save writes a terminal snapshot.
func (rs *ReportStore) Save(snap *Snapshot) error {
	path, err := rs.path(snap.UploadID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	// Write atomically (temp file + rename)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write report temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// Load reads the report of an upload. It returns nil, nil when no report
// exists.
func (rs *ReportStore) Load(uploadID string) (*Snapshot, error) {
	path, err := rs.path(uploadID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read report: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &snap, nil
}

// List returns every saved report, newest first. Unreadable files are
// skipped.
func (rs *ReportStore) List() ([]ReportInfo, error) {
	matches, err := filepath.Glob(filepath.Join(rs.dir, "report-*.json"))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	infos := make([]ReportInfo, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "report-"), ".json")
		snap, err := rs.Load(id)
		if err != nil || snap == nil {
			continue
		}
		infos = append(infos, ReportInfo{
			UploadID:  snap.UploadID,
			Entity:    snap.Entity,
			FileName:  snap.FileName,
			Status:    snap.Status,
			Message:   snap.Message,
			Timestamp: snap.Timestamp,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})
	return infos, nil
}

// Delete removes a report. Deleting a missing report is not an error.
func (rs *ReportStore) Delete(uploadID string) error {
	path, err := rs.path(uploadID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove report: %w", err)
	}
	return nil
}

// path returns the report file for an upload id. Ids must be UUIDs so a
// caller-supplied id can never escape the directory.
func (rs *ReportStore) path(uploadID string) (string, error) {
	id, err := uuid.Parse(uploadID)
	if err != nil {
		return "", fmt.Errorf("invalid upload id %q: %w", uploadID, err)
	}
	return filepath.Join(rs.dir, fmt.Sprintf("report-%s.json", id.String())), nil
}
