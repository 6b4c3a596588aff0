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

// Package source fetches raw per-platform usage report files from the
// upstream provider (FUGA) into the local staging directory. The provider is
// an external collaborator; everything behind the Connector interface is
// replaceable and the rest of the pipeline never talks to it directly.
package source

import (
	"context"
	"fmt"
	"time"
)

// Platforms are the per-platform report families delivered by the provider.
// The names appear verbatim in staged file names and in cache keys.
var Platforms = []string{
	"iMusics_Amazon",
	"iMusics_Deezer",
	"iMusics_iTunes",
	"iMusics_TikTok",
	"iMusics_Pandora",
	"iMusics_Spotify",
	"iMusics_Youtube",
	"iMusics_SoundCloud",
}

// DateLayout is the provider's date format, also used in file names and keys.
const DateLayout = "2006-01-02"

// File is one fetched compressed report, staged locally.
type File struct {
	Platform string
	Date     string
	// Path is the local .tsv.gz the connector wrote.
	Path string
}

// Connector abstracts the upstream provider. FetchTrends downloads every
// available (platform, date) report for the inclusive window into dir and
// returns what it staged. A window with no data returns an empty slice and
// no error; that is a legitimate outcome, not a failure.
type Connector interface {
	FetchTrends(ctx context.Context, start, end time.Time, dir string) ([]File, error)
}

// FileName returns the canonical staged name for a (platform, date) report.
func FileName(platform, date string) string {
	return fmt.Sprintf("%s_trends_%s.tsv.gz", platform, date)
}

// DatesIn expands an inclusive date window into its individual days.
func DatesIn(start, end time.Time) []string {
	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}
