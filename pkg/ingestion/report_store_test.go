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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportStore_SaveLoad(t *testing.T) {
	rs := NewReportStore(filepath.Join(t.TempDir(), "reports"))
	id := uuid.NewString()

	snap := &Snapshot{
		UploadID: id,
		Entity:   "material",
		Status:   StatusCompleted,
		Summary:  Summary{TotalRecords: 1, Processed: 1, Created: 1},
		Outcomes: []RecordOutcome{{Row: 2, Key: "M-1", Status: OutcomeCreated, Action: ActionCreated}},
	}
	require.NoError(t, rs.Save(snap))

	loaded, err := rs.Load(id)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snap.Summary, loaded.Summary)
	assert.Equal(t, snap.Outcomes, loaded.Outcomes)

	_, err = os.Stat(filepath.Join(rs.Dir(), "report-"+id+".json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestReportStore_Missing(t *testing.T) {
	rs := NewReportStore(t.TempDir())

	snap, err := rs.Load(uuid.NewString())
	assert.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, rs.Delete(uuid.NewString()))
}

func TestReportStore_RejectsNonUUID(t *testing.T) {
	rs := NewReportStore(t.TempDir())

	_, err := rs.Load("../../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, rs.Save(&Snapshot{UploadID: "not-a-uuid"}))
}

func TestReportStore_ListNewestFirst(t *testing.T) {
	rs := NewReportStore(t.TempDir())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	older := &Snapshot{UploadID: uuid.NewString(), Entity: "material", Status: StatusCompleted, Timestamp: base}
	newer := &Snapshot{UploadID: uuid.NewString(), Entity: "warranty", Status: StatusFailed, Timestamp: base.Add(time.Hour)}
	require.NoError(t, rs.Save(older))
	require.NoError(t, rs.Save(newer))
	require.NoError(t, os.WriteFile(filepath.Join(rs.Dir(), "report-garbage.json"), []byte("{"), 0644))

	infos, err := rs.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, newer.UploadID, infos[0].UploadID)
	assert.Equal(t, StatusFailed, infos[0].Status)
	assert.Equal(t, older.UploadID, infos[1].UploadID)

	require.NoError(t, rs.Delete(older.UploadID))
	infos, err = rs.List()
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}
