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

// Package summarize derives the top-N aggregate projections from the raw
// per-platform row sets. Each projection is described by a static
// configuration (group fields, participation filter, key segment) resolved
// through an explicit enum, so adding a projection means adding a table
// entry, not another substring match.
package summarize

import (
	"strings"

	"symphonia/internal/analytics/ingest"
)

// Field identifies a grouping dimension. Most fields read straight from the
// raw row; FieldPlataform is injected from the cache key the row came from
// (the raw schema has no platform column) and FieldDate falls back to the
// key-embedded date when the row's own date is blank.
type Field int

const (
	FieldAssetID Field = iota
	FieldDate
	FieldTerritory
	FieldUPC
	FieldStreamSource
	FieldStreamSourceURI
	FieldPlataform
)

// Name returns the wire name of the field as it appears in published
// projection records. Note "plataform": the spelling is a compatibility
// contract with existing consumers.
func (f Field) Name() string {
	switch f {
	case FieldAssetID:
		return "asset_id"
	case FieldDate:
		return "date"
	case FieldTerritory:
		return "territory"
	case FieldUPC:
		return "upc"
	case FieldStreamSource:
		return "stream_source"
	case FieldStreamSourceURI:
		return "stream_source_uri"
	case FieldPlataform:
		return "plataform"
	default:
		return "unknown"
	}
}

// valueOf extracts the field value for grouping. platform and keyDate come
// from the cache key of the row set being summarized.
func (f Field) valueOf(row *ingest.RawRow, platform, keyDate string) string {
	switch f {
	case FieldAssetID:
		return row.AssetID
	case FieldDate:
		if strings.TrimSpace(row.Date) == "" {
			return keyDate
		}
		return row.Date
	case FieldTerritory:
		return row.Territory
	case FieldUPC:
		return row.UPC
	case FieldStreamSource:
		return row.StreamSource
	case FieldStreamSourceURI:
		return row.StreamSourceURI
	case FieldPlataform:
		return platform
	default:
		return ""
	}
}

// Projection enumerates the derived aggregate views.
type Projection int

const (
	TopPlays Projection = iota
	TopPlataform
	TopPlaylist
	TopAlbuns
	TopAlbum
	TopRegiao
	TopRegioes
	TopPlaysRemunerado
)

// All lists every projection in pipeline execution order.
var All = []Projection{
	TopPlays,
	TopPlataform,
	TopPlaylist,
	TopAlbuns,
	TopAlbum,
	TopRegiao,
	TopRegioes,
	TopPlaysRemunerado,
}

// Config is the static description of one projection.
type Config struct {
	// KeySegment is the projection segment of the cache key.
	KeySegment string
	// StepName is the pipeline step reported while this projection runs.
	StepName string
	// GroupFields is the ordered composite group key.
	GroupFields []Field
	// Required lists the fields that must be non-blank for a row to
	// participate. Blank means the row is skipped, not grouped under null.
	Required []Field
	// PerPlatform selects between one output key per platform and a single
	// cross-platform output key.
	PerPlatform bool
}

var configs = map[Projection]Config{
	TopPlays: {
		KeySegment:  "topplays",
		StepName:    "sumarize_top_plays",
		GroupFields: []Field{FieldAssetID, FieldDate},
		Required:    []Field{FieldAssetID},
		PerPlatform: true,
	},
	TopPlataform: {
		KeySegment:  "topplataform",
		StepName:    "sumarize_top_plataform",
		GroupFields: []Field{FieldAssetID, FieldPlataform, FieldDate},
		Required:    []Field{FieldAssetID},
		PerPlatform: true,
	},
	TopPlaylist: {
		KeySegment:  "topplaylist",
		StepName:    "sumarize_top_playlist",
		GroupFields: []Field{FieldAssetID, FieldPlataform, FieldStreamSource, FieldStreamSourceURI, FieldDate},
		Required:    []Field{FieldAssetID, FieldStreamSource},
		PerPlatform: true,
	},
	TopAlbuns: {
		KeySegment:  "topalbuns",
		StepName:    "sumarize_top_albuns",
		GroupFields: []Field{FieldUPC, FieldDate},
		Required:    []Field{FieldUPC},
		PerPlatform: false,
	},
	TopAlbum: {
		KeySegment:  "topalbum",
		StepName:    "sumarize_top_album",
		GroupFields: []Field{FieldUPC, FieldPlataform, FieldDate},
		Required:    []Field{FieldUPC},
		PerPlatform: true,
	},
	TopRegiao: {
		KeySegment:  "topregiao",
		StepName:    "sumarize_top_regiao",
		GroupFields: []Field{FieldAssetID, FieldTerritory, FieldDate},
		Required:    []Field{FieldAssetID, FieldTerritory},
		PerPlatform: false,
	},
	TopRegioes: {
		KeySegment:  "topregioes",
		StepName:    "sumarize_top_regioes",
		GroupFields: []Field{FieldAssetID, FieldTerritory, FieldPlataform, FieldDate},
		Required:    []Field{FieldAssetID, FieldTerritory},
		PerPlatform: true,
	},
	TopPlaysRemunerado: {
		KeySegment:  "topplaysremunerado",
		StepName:    "sumarize_top_plays_remunerado",
		GroupFields: []Field{FieldAssetID, FieldTerritory, FieldDate},
		Required:    []Field{FieldAssetID, FieldTerritory},
		PerPlatform: false,
	},
}

// Config returns the projection's static configuration.
func (p Projection) Config() Config { return configs[p] }

// String returns the cache key segment.
func (p Projection) String() string { return configs[p].KeySegment }

// GroupKeyDelimiter joins the composite group key parts.
const GroupKeyDelimiter = "|"

// normalize canonicalizes a field value for group-key construction:
// trimmed, lower-cased, blank replaced by the literal "null".
func normalize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "null"
	}
	return strings.ToLower(v)
}

// GroupKey builds the composite group key for a row within a (platform,
// date) row set.
func (p Projection) GroupKey(row *ingest.RawRow, platform, keyDate string) string {
	cfg := configs[p]
	parts := make([]string, len(cfg.GroupFields))
	for i, f := range cfg.GroupFields {
		parts[i] = normalize(f.valueOf(row, platform, keyDate))
	}
	return strings.Join(parts, GroupKeyDelimiter)
}

// Participates reports whether a row passes the projection's required-field
// filter.
func (p Projection) Participates(row *ingest.RawRow, platform, keyDate string) bool {
	for _, f := range configs[p].Required {
		if strings.TrimSpace(f.valueOf(row, platform, keyDate)) == "" {
			return false
		}
	}
	return true
}
