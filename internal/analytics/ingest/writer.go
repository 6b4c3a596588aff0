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

package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"symphonia/internal/analytics/cache"
	"symphonia/internal/analytics/job"
)

// Metadata hash field names and status values. timestamp is volatile: it
// changes on every republication while everything else must be byte-stable
// across identical reruns.
const (
	MetaFieldDate      = "date"
	MetaFieldFileName  = "file_name"
	MetaFieldPlatform  = "platform"
	MetaFieldStatus    = "status"
	MetaFieldTimestamp = "timestamp"
	MetaFieldRowCount  = "row_count"

	StatusProcessed = "processed"
	StatusReprocess = "reprocess"
)

// maxLineBytes bounds a single report line; provider rows are wide but
// nowhere near this.
const maxLineBytes = 4 * 1024 * 1024

// CacheWriter publishes parsed report files to the cache. One call per
// (platform, date); republication replaces the previous content, it never
// appends, so re-ingesting the same window is idempotent modulo the
// timestamp field.
type CacheWriter struct {
	cache cache.Client
	now   func() time.Time
}

func NewCacheWriter(c cache.Client) *CacheWriter {
	return &CacheWriter{cache: c, now: time.Now}
}

// ProcessFile parses one staged report and publishes its rows and metadata
// under the raw (platform, date) keys. The rows list and the metadata hash
// are replaced as a unit with the rows queued first, so a reader never
// observes a row_count that disagrees with the list. Returns the published
// row count.
func (w *CacheWriter) ProcessFile(ctx context.Context, f StagedFile, reprocess bool) (int, error) {
	rows, err := w.parseFile(ctx, f.TSVPath)
	if err != nil {
		return 0, err
	}

	status := StatusProcessed
	if reprocess {
		status = StatusReprocess
	}
	meta := map[string]string{
		MetaFieldDate:      f.Date,
		MetaFieldFileName:  filepath.Base(f.TSVPath),
		MetaFieldPlatform:  f.Platform,
		MetaFieldStatus:    status,
		MetaFieldTimestamp: w.now().Format(job.TimeLayout),
		MetaFieldRowCount:  strconv.Itoa(len(rows)),
	}

	rowsKey := cache.PlatformRowsKey(f.Platform, f.Date)
	metaKey := cache.PlatformMetaKey(f.Platform, f.Date)
	if err := w.cache.ReplaceListWithMeta(ctx, rowsKey, rows, metaKey, meta); err != nil {
		return 0, fmt.Errorf("publish %s: %w", rowsKey, err)
	}
	return len(rows), nil
}

// parseFile reads a tab-separated report into JSON-encoded rows in file
// order. A header line is recognized by its first column and skipped; blank
// lines are ignored.
func (w *CacheWriter) parseFile(ctx context.Context, path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var rows []string
	first := true
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if first {
			first = false
			if cols[0] == headerFirstColumn {
				continue
			}
		}
		row := RowFromColumns(cols)
		encoded, err := json.Marshal(&row)
		if err != nil {
			return nil, fmt.Errorf("encode row from %s: %w", path, err)
		}
		rows = append(rows, string(encoded))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	return rows, nil
}
