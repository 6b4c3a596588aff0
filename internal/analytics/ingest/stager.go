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
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"symphonia/internal/analytics/source"
)

// StagedFile is a decompressed report together with the compressed artifact
// retained for archival.
type StagedFile struct {
	Platform string
	Date     string
	TSVPath  string
	GzPath   string
}

// Stager owns the staging directory: retention cleanup before a run,
// decompression of fetched archives and the 1:1 pair guarantee between each
// compressed artifact and its decompressed counterpart.
type Stager struct {
	dir       string
	retention time.Duration
	now       func() time.Time
}

// NewStager returns a stager for dir. A retention of zero or less falls
// back to 48h.
func NewStager(dir string, retention time.Duration) *Stager {
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	return &Stager{dir: dir, retention: retention, now: time.Now}
}

// Dir returns the staging directory path.
func (s *Stager) Dir() string { return s.dir }

// CleanOldFiles removes per-platform report files older than the retention
// window. A missing staging directory is a fatal, reported error, never a
// silent skip: every later stage depends on it.
func (s *Stager) CleanOldFiles(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("The directory %s was not found.", s.dir)
		}
		return 0, fmt.Errorf("read staging dir %s: %w", s.dir, err)
	}
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !isReportFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Decompress expands every fetched archive next to itself (.tsv.gz -> .tsv),
// keeping the compressed original for archival upload.
func (s *Stager) Decompress(ctx context.Context, files []source.File) ([]StagedFile, error) {
	staged := make([]StagedFile, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tsvPath := strings.TrimSuffix(f.Path, ".gz")
		if tsvPath == f.Path {
			return nil, fmt.Errorf("staged file %s is not gzip-compressed", f.Path)
		}
		if err := gunzip(f.Path, tsvPath); err != nil {
			return nil, err
		}
		staged = append(staged, StagedFile{
			Platform: f.Platform,
			Date:     f.Date,
			TSVPath:  tsvPath,
			GzPath:   f.Path,
		})
	}
	return staged, nil
}

// VerifyPairs checks that every compressed report in the staging directory
// has its decompressed counterpart and vice versa. A missing half is a
// defect to report, not to tolerate.
func (s *Stager) VerifyPairs(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read staging dir %s: %w", s.dir, err)
	}
	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && isReportFile(entry.Name()) {
			present[entry.Name()] = true
		}
	}
	for name := range present {
		if strings.HasSuffix(name, ".tsv.gz") {
			if !present[strings.TrimSuffix(name, ".gz")] {
				return fmt.Errorf("staged archive %s has no decompressed counterpart", name)
			}
		} else if strings.HasSuffix(name, ".tsv") {
			if !present[name+".gz"] {
				return fmt.Errorf("staged file %s has no compressed counterpart", name)
			}
		}
	}
	return nil
}

func gunzip(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("gunzip %s: %w", src, err)
	}
	defer zr.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("gunzip %s: %w", src, err)
	}
	return out.Close()
}

// isReportFile reports whether a staging entry belongs to a known platform
// report family. Unrelated files in the shared directory are left alone.
func isReportFile(name string) bool {
	if !strings.HasSuffix(name, ".tsv") && !strings.HasSuffix(name, ".tsv.gz") {
		return false
	}
	for _, platform := range source.Platforms {
		if strings.HasPrefix(name, platform+"_") {
			return true
		}
	}
	return false
}
