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

package schema

// Status values shared by the built-in entities.
const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
)

// Material is the built-in material code master.
func Material() Entity {
	return Entity{
		Name:        "material",
		Description: "Material code master",
		Collection:  "materials",
		Key:         "materialCode",
		Fields: []Field{
			{
				Name: "materialCode", Kind: KindString, Required: true, MaxLength: 50,
				Aliases: []string{"material code", "material", "material no", "material number", "item code", "part number", "part no", "sku", "code"},
			},
			{
				Name: "description", Kind: KindString, MaxLength: 500,
				Aliases: []string{"description", "material description", "item description", "desc", "name"},
			},
			{
				Name: "unitOfMeasure", Kind: KindString, MaxLength: 20,
				Aliases: []string{"uom", "unit", "unit of measure", "base unit"},
			},
			{
				Name: "category", Kind: KindString, MaxLength: 100,
				Aliases: []string{"category", "material group", "group", "material type"},
			},
			{
				Name: "unitPrice", Kind: KindNumber, Min: Float(0),
				Aliases: []string{"price", "unit price", "cost", "rate"},
			},
			{
				Name: "status", Kind: KindEnum, Values: []string{StatusActive, StatusInactive}, Default: StatusActive, Tracked: true,
				Aliases: []string{"status", "material status", "state"},
			},
		},
	}
}

// Warranty is the built-in warranty code master.
func Warranty() Entity {
	return Entity{
		Name:        "warranty",
		Description: "Warranty code master",
		Collection:  "warranties",
		Key:         "warrantyCode",
		Fields: []Field{
			{
				Name: "warrantyCode", Kind: KindString, Required: true, MaxLength: 50,
				Aliases: []string{"warranty code", "warranty", "warranty id", "code"},
			},
			{
				Name: "description", Kind: KindString, MaxLength: 500,
				Aliases: []string{"description", "warranty description", "desc", "name"},
			},
			{
				Name: "durationMonths", Kind: KindInteger, Required: true, Min: Float(0), Max: Float(600),
				Aliases: []string{"duration", "duration months", "duration (months)", "months", "warranty period", "period"},
			},
			{
				Name: "coverageType", Kind: KindString, MaxLength: 100,
				Aliases: []string{"coverage", "coverage type", "type"},
			},
			{
				Name: "status", Kind: KindEnum, Values: []string{StatusActive, StatusInactive}, Default: StatusActive, Tracked: true,
				Aliases: []string{"status", "warranty status", "state"},
			},
		},
	}
}

// Builtins returns the entities every registry starts with.
func Builtins() []Entity {
	return []Entity{Material(), Warranty()}
}
