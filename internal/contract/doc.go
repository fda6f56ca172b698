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

// Package contract holds the limits and acceptance rules for uploaded files.
//
// Both the HTTP server and the CLI check files against the same contract
// before anything is parsed:
//
//	if err := contract.ValidateUpload(name, contentType, size); err != nil {
//	    // err is an *errors.UserError of kind upload_rejected
//	}
//
// # Configuration via Environment
//
// The size limit can be adjusted with BULKLOAD_MAX_UPLOAD_BYTES:
//
//	export BULKLOAD_MAX_UPLOAD_BYTES=104857600  # 100 MiB
//
// If the variable is not set or invalid, DefaultMaxUploadBytes (50 MiB) is
// used.
package contract
