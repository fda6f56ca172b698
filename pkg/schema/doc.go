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

// Package schema declares the entities that can be bulk loaded and resolves
// uploaded column headers onto their canonical fields.
//
// Each [Entity] is an alias table: an ordered list of canonical fields, each
// with a value kind, validation limits and the header spellings users put in
// their spreadsheets. Matching ignores case, accents and punctuation, so
// "Material Code", "MATERIAL_CODE" and "material-code" all bind the same field.
//
// Entities come from [Builtins] and from YAML files loaded with
// [LoadEntities]. [MapHeaders] builds a [FieldMapping] once per upload and
// reports a [MismatchError] when required columns are missing.
package schema
