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

package cache

import "context"

// Client abstracts the minimal cache surface the pipeline needs.
// Implementations may wrap github.com/redis/go-redis/v9 or any equivalent.
//
// The two Replace* methods are the only write paths for list-typed keys.
// They must replace the previous content as a unit: a concurrent reader may
// observe the old content or the new content, never a mix, and never a
// metadata hash whose row_count disagrees with the list it describes.
type Client interface {
	// HGetAll returns every field of a hash key; empty map if the key is absent.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// LRange returns list elements in [start, stop] (inclusive, zero-based).
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// LLen returns the list length; 0 if the key is absent.
	LLen(ctx context.Context, key string) (int64, error)
	// Keys returns the keys matching a glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// ReplaceList atomically replaces the content of a list key.
	ReplaceList(ctx context.Context, key string, values []string) error
	// ReplaceListWithMeta atomically replaces a rows list and its metadata
	// hash. The rows write precedes the metadata write inside the unit.
	ReplaceListWithMeta(ctx context.Context, rowsKey string, rows []string, metaKey string, meta map[string]string) error
	// Del removes keys; missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
}
