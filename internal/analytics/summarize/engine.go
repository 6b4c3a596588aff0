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

package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"symphonia/internal/analytics/cache"
	"symphonia/internal/analytics/ingest"
	"symphonia/internal/analytics/job"
)

// MetricField is the published name of the summed play-count metric; it
// deliberately matches the raw column so reconciliation reads both sides
// the same way.
const MetricField = "number_of_streams"

// group is one accumulated composite key.
type group struct {
	// values holds the normalized group field values by wire name.
	values  map[string]string
	streams int64
}

// Engine recomputes projections from the raw row sets. Raw rows are read in
// fixed-size windows, never materialized whole; each projection's output key
// is replaced atomically so consumers switch from the old aggregate to the
// new one without observing a partial state.
type Engine struct {
	cache    cache.Client
	pageSize int64
	now      func() time.Time
}

// NewEngine returns an engine reading rows pageSize at a time.
func NewEngine(c cache.Client, pageSize int64) *Engine {
	return &Engine{cache: c, pageSize: pageSize, now: time.Now}
}

// Run recomputes one projection for a date over the given platforms and
// publishes it. status is carried into every published record ("processed"
// or "reprocess"). Returns the number of groups published.
func (e *Engine) Run(ctx context.Context, p Projection, platforms []string, date, status string) (int, error) {
	cfg := p.Config()
	if cfg.PerPlatform {
		total := 0
		for _, platform := range platforms {
			groups, err := e.aggregate(ctx, p, platform, date, nil)
			if err != nil {
				return 0, err
			}
			records, err := encodeGroups(groups, status)
			if err != nil {
				return 0, err
			}
			key := cache.ProjectionRowsKey(cfg.KeySegment, platform, date)
			if err := e.cache.ReplaceList(ctx, key, records); err != nil {
				return 0, fmt.Errorf("publish projection %s: %w", key, err)
			}
			total += len(records)
		}
		return total, nil
	}

	// Cross-platform: one accumulator across every platform's rows.
	acc := make(map[string]*group)
	for _, platform := range platforms {
		if _, err := e.aggregate(ctx, p, platform, date, acc); err != nil {
			return 0, err
		}
	}
	records, err := encodeGroups(acc, status)
	if err != nil {
		return 0, err
	}
	rowsKey := cache.CrossProjectionRowsKey(cfg.KeySegment, date)
	metaKey := cache.CrossProjectionMetaKey(cfg.KeySegment, date)
	meta := map[string]string{
		"date":         date,
		"total_items":  strconv.Itoa(len(records)),
		"generated_at": e.now().Format(job.TimeLayout),
	}
	if err := e.cache.ReplaceListWithMeta(ctx, rowsKey, records, metaKey, meta); err != nil {
		return 0, fmt.Errorf("publish projection %s: %w", rowsKey, err)
	}
	return len(records), nil
}

// aggregate pages through one platform's raw rows accumulating grouped
// sums. When acc is nil a fresh accumulator is used and returned; a non-nil
// acc lets cross-platform projections fold several platforms together.
func (e *Engine) aggregate(ctx context.Context, p Projection, platform, date string, acc map[string]*group) (map[string]*group, error) {
	if acc == nil {
		acc = make(map[string]*group)
	}
	cfg := p.Config()
	rowsKey := cache.PlatformRowsKey(platform, date)
	err := cache.ForEachRow(ctx, e.cache, rowsKey, e.pageSize, func(raw string) error {
		var row ingest.RawRow
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			return fmt.Errorf("decode raw row from %s: %w", rowsKey, err)
		}
		if !p.Participates(&row, platform, date) {
			return nil
		}
		key := p.GroupKey(&row, platform, date)
		g, ok := acc[key]
		if !ok {
			g = &group{values: make(map[string]string, len(cfg.GroupFields))}
			for _, f := range cfg.GroupFields {
				g.values[f.Name()] = normalize(f.valueOf(&row, platform, date))
			}
			acc[key] = g
		}
		g.streams += row.Streams()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// encodeGroups renders an accumulator as JSON records ordered by summed
// streams descending, group key ascending on ties. The order is
// deterministic so identical reruns publish byte-identical lists.
func encodeGroups(acc map[string]*group, status string) ([]string, error) {
	keys := make([]string, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := acc[keys[i]], acc[keys[j]]
		if a.streams != b.streams {
			return a.streams > b.streams
		}
		return keys[i] < keys[j]
	})

	records := make([]string, 0, len(keys))
	for _, k := range keys {
		g := acc[k]
		record := make(map[string]interface{}, len(g.values)+2)
		for name, v := range g.values {
			record[name] = v
		}
		record["status"] = status
		record[MetricField] = g.streams
		encoded, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode projection group %s: %w", k, err)
		}
		records = append(records, string(encoded))
	}
	return records, nil
}
