// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache implements the key-value storage layer for the analytics
// pipeline. It defines the key layout used for raw per-platform row sets and
// for the derived top-N projections, a minimal client abstraction over Redis,
// and a windowed pager for reading large row lists without materializing them.
package cache

import "fmt"

// Key layout. The namespace and segment order are a compatibility contract
// with downstream consumers; changing them breaks every dashboard reading
// these keys.
//
//	imusic:dashes:<Platform>:<date>:meta   metadata hash for a raw row set
//	imusic:dashes:<Platform>:<date>:rows   JSON-encoded rows, one per element
//	imusic:<proj>:<platform>:<date>:rows   per-platform projection
//	imusic:<proj>:<date>:rows              cross-platform projection
//	imusic:<proj>:<date>:meta              cross-platform projection metadata
const (
	Namespace = "imusic"
	RawScope  = "dashes"
)

// PlatformMetaKey returns the metadata key for a raw (platform, date) row set.
func PlatformMetaKey(platform, date string) string {
	return fmt.Sprintf("%s:%s:%s:%s:meta", Namespace, RawScope, platform, date)
}

// PlatformRowsKey returns the rows key for a raw (platform, date) row set.
func PlatformRowsKey(platform, date string) string {
	return fmt.Sprintf("%s:%s:%s:%s:rows", Namespace, RawScope, platform, date)
}

// ProjectionRowsKey returns the rows key for a per-platform projection.
func ProjectionRowsKey(projection, platform, date string) string {
	return fmt.Sprintf("%s:%s:%s:%s:rows", Namespace, projection, platform, date)
}

// CrossProjectionRowsKey returns the rows key for a cross-platform projection
// (albums, monetized plays, regions aggregated over all platforms).
func CrossProjectionRowsKey(projection, date string) string {
	return fmt.Sprintf("%s:%s:%s:rows", Namespace, projection, date)
}

// CrossProjectionMetaKey returns the metadata key for a cross-platform
// projection. The hash carries a total_items field with the group count.
func CrossProjectionMetaKey(projection, date string) string {
	return fmt.Sprintf("%s:%s:%s:meta", Namespace, projection, date)
}

// RawRowsPattern matches every raw rows key for a date, across platforms.
func RawRowsPattern(date string) string {
	return fmt.Sprintf("%s:%s:*:%s:rows", Namespace, RawScope, date)
}

// DatePattern matches every key touched for a date, raw and projected.
func DatePattern(date string) string {
	return fmt.Sprintf("%s:*:%s:*", Namespace, date)
}
