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

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// HTTPConnector downloads trend reports over the provider's HTTP API.
// One GET per (platform, date); 404 and 204 mean "no report for this pair"
// and are skipped silently.
type HTTPConnector struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPConnector builds a connector for the given provider base URL and
// bearer token. Downloads can take minutes for large reports, so the
// client's timeout is generous; callers bound the overall run via ctx.
func NewHTTPConnector(baseURL, token string) *HTTPConnector {
	return &HTTPConnector{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

// FetchTrends downloads every available (platform, date) report in the
// window into dir. Reports are streamed straight to disk; a partial download
// is removed before the error is returned.
func (c *HTTPConnector) FetchTrends(ctx context.Context, start, end time.Time, dir string) ([]File, error) {
	var files []File
	for _, date := range DatesIn(start, end) {
		for _, platform := range Platforms {
			f, ok, err := c.fetchOne(ctx, platform, date, dir)
			if err != nil {
				return nil, err
			}
			if ok {
				files = append(files, f)
			}
		}
	}
	return files, nil
}

func (c *HTTPConnector) fetchOne(ctx context.Context, platform, date, dir string) (File, bool, error) {
	endpoint := fmt.Sprintf("%s/trends?platform=%s&date=%s",
		c.baseURL, url.QueryEscape(platform), url.QueryEscape(date))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return File{}, false, fmt.Errorf("build trends request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := c.client.Do(req)
	if err != nil {
		return File{}, false, fmt.Errorf("fetch trends %s %s: %w", platform, date, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		// No report for this (platform, date).
		return File{}, false, nil
	default:
		return File{}, false, fmt.Errorf("fetch trends %s %s: unexpected status %d", platform, date, resp.StatusCode)
	}

	path := filepath.Join(dir, FileName(platform, date))
	out, err := os.Create(path)
	if err != nil {
		return File{}, false, fmt.Errorf("stage %s: %w", path, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return File{}, false, fmt.Errorf("stage %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return File{}, false, fmt.Errorf("stage %s: %w", path, err)
	}
	return File{Platform: platform, Date: date, Path: path}, true, nil
}
