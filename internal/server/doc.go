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

// Package server exposes the upload pipeline over HTTP.
//
// Routes:
//
//	POST /api/v1/uploads/{entity}   multipart field "file"; NDJSON progress
//	GET  /api/v1/uploads            saved upload reports, newest first
//	GET  /api/v1/uploads/{id}       one saved terminal report
//	GET  /api/v1/entities           registered entities and their aliases
//	GET  /api/v1/entities/{entity}  one entity
//	GET  /healthz
//	GET  /metrics                   Prometheus
//
// An upload answers with a JSON error body and a 4xx status while the file
// is still being checked (missing, too large, wrong type, unreadable, or
// missing required columns). Once the pipeline starts the response is
// always 200 and each line of the body is a complete progress snapshot;
// the last line carries status "completed" or "failed".
package server
