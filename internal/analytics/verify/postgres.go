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

// Package verify cross-checks the published aggregates against the
// relational store that downstream consumers sync the projections into.
// The relational store is a consumer, not a source of truth: a divergence
// is logged and counted, it never fails the run.
package verify

import (
	"context"
	"database/sql"
	"time"
)

// Postgres schema (reference, owned by the downstream sync):
//
// CREATE TABLE IF NOT EXISTS top_plays (
//   faixa_musical_id TEXT NOT NULL,
//   qtd_total_plays BIGINT NOT NULL,
//   data_referencia DATE NOT NULL
// );
//
// top_play_remunerado, top_plataformas, top_regiao_plataformas and
// top_playlists follow the same shape with their own dimension columns.

// Checker runs aggregate queries against an injected *sql.DB. The caller
// owns the pool; register a driver (e.g. pgx stdlib) and open it in main.
type Checker struct {
	db *sql.DB
	// Per-call timeout fallback if ctx has no deadline.
	defaultTimeout time.Duration
}

func NewChecker(db *sql.DB) *Checker {
	return &Checker{db: db, defaultTimeout: 10 * time.Second}
}

// TotalPlays returns the summed play count recorded for a reference date.
func (c *Checker) TotalPlays(ctx context.Context, refDate string) (int64, error) {
	return c.sumForDate(ctx, `SELECT COALESCE(SUM(qtd_total_plays), 0) FROM top_plays WHERE data_referencia = $1`, refDate)
}

// TotalMonetizedPlays returns the summed monetized play count for a
// reference date.
func (c *Checker) TotalMonetizedPlays(ctx context.Context, refDate string) (int64, error) {
	return c.sumForDate(ctx, `SELECT COALESCE(SUM(qtd_total_plays), 0) FROM top_play_remunerado WHERE data_referencia = $1`, refDate)
}

func (c *Checker) sumForDate(ctx context.Context, query, refDate string) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && c.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
		defer cancel()
	}
	var total int64
	if err := c.db.QueryRowContext(ctx, query, refDate).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
