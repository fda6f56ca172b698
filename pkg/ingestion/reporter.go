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

import "context"

// Reporter receives the snapshots of one upload in order. Report is only
// ever called from the goroutine running the upload.
//
// A Reporter that returns an error is not called again; the upload keeps
// going and its terminal report is still saved.
type Reporter interface {
	Report(ctx context.Context, snap *Snapshot) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, snap *Snapshot) error

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context, snap *Snapshot) error {
	return f(ctx, snap)
}

// Discard is a Reporter that drops every snapshot.
var Discard Reporter = ReporterFunc(func(context.Context, *Snapshot) error { return nil })
