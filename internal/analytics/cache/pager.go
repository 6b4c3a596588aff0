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

// RowPager reads a list key forward in fixed-size windows. It is the only
// read path consumers should use for row lists, which can grow far beyond
// what fits comfortably in one batch. Each element is returned exactly once;
// pages never overlap and never skip (the cursor advances by the number of
// elements actually returned).
//
// A pager is single-use and not safe for concurrent use; create a new one
// per traversal.
type RowPager struct {
	client   Client
	key      string
	pageSize int64
	cursor   int64
	done     bool
}

// NewRowPager returns a pager over the given list key. A pageSize of zero
// or less falls back to 1000.
func NewRowPager(client Client, key string, pageSize int64) *RowPager {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &RowPager{client: client, key: key, pageSize: pageSize}
}

// Next returns the next window of elements. It returns (nil, nil) once the
// list is exhausted; subsequent calls keep returning (nil, nil).
func (p *RowPager) Next(ctx context.Context) ([]string, error) {
	if p.done {
		return nil, nil
	}
	page, err := p.client.LRange(ctx, p.key, p.cursor, p.cursor+p.pageSize-1)
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		p.done = true
		return nil, nil
	}
	p.cursor += int64(len(page))
	if int64(len(page)) < p.pageSize {
		p.done = true
	}
	return page, nil
}

// ForEachRow pages through a list key and invokes fn for every element.
func ForEachRow(ctx context.Context, client Client, key string, pageSize int64, fn func(string) error) error {
	pager := NewRowPager(client, key, pageSize)
	for {
		page, err := pager.Next(ctx)
		if err != nil {
			return err
		}
		if page == nil {
			return nil
		}
		for _, el := range page {
			if err := fn(el); err != nil {
				return err
			}
		}
	}
}
