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

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// rpushChunk bounds the number of elements per RPUSH inside a pipeline so a
// single command never carries an unbounded argument list.
const rpushChunk = 1000

// GoRedisClient is a production Client backed by github.com/redis/go-redis/v9.
// Use NewGoRedisClient to construct it with an address like "127.0.0.1:6379".
type GoRedisClient struct{ c *redis.Client }

func NewGoRedisClient(addr string) *GoRedisClient {
	opt := &redis.Options{Addr: addr}
	return &GoRedisClient{c: redis.NewClient(opt)}
}

// Ping verifies connectivity; main calls it once at startup.
func (g *GoRedisClient) Ping(ctx context.Context) error {
	return g.c.Ping(ctx).Err()
}

func (g *GoRedisClient) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return g.c.HGetAll(ctx, key).Result()
}

func (g *GoRedisClient) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return g.c.LRange(ctx, key, start, stop).Result()
}

func (g *GoRedisClient) LLen(ctx context.Context, key string) (int64, error) {
	return g.c.LLen(ctx, key).Result()
}

func (g *GoRedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	return g.c.Keys(ctx, pattern).Result()
}

func (g *GoRedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return g.c.Del(ctx, keys...).Err()
}

// ReplaceList replaces the list content inside a MULTI/EXEC transaction so
// readers never observe a partially written list.
func (g *GoRedisClient) ReplaceList(ctx context.Context, key string, values []string) error {
	pipe := g.c.TxPipeline()
	pipe.Del(ctx, key)
	for _, chunk := range chunkStrings(values, rpushChunk) {
		pipe.RPush(ctx, key, toAny(chunk)...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace list %s: %w", key, err)
	}
	return nil
}

// ReplaceListWithMeta replaces a rows list and its metadata hash in one
// MULTI/EXEC transaction, queuing the rows writes before the metadata write.
func (g *GoRedisClient) ReplaceListWithMeta(ctx context.Context, rowsKey string, rows []string, metaKey string, meta map[string]string) error {
	pipe := g.c.TxPipeline()
	pipe.Del(ctx, rowsKey)
	for _, chunk := range chunkStrings(rows, rpushChunk) {
		pipe.RPush(ctx, rowsKey, toAny(chunk)...)
	}
	pipe.Del(ctx, metaKey)
	if len(meta) > 0 {
		flat := make([]interface{}, 0, len(meta)*2)
		for k, v := range meta {
			flat = append(flat, k, v)
		}
		pipe.HSet(ctx, metaKey, flat...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace %s + %s: %w", rowsKey, metaKey, err)
	}
	return nil
}

func chunkStrings(values []string, size int) [][]string {
	if len(values) == 0 {
		return nil
	}
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
