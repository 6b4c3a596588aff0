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

// Package poll provides a reusable wait-until combinator for callers that
// track asynchronous progress by repeated inspection: check a predicate at a
// fixed interval, stop as soon as it holds, fail after a deadline.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout reports that the predicate never held within the deadline.
var ErrTimeout = errors.New("poll: condition not met before timeout")

// Until evaluates cond every interval until it returns true, the timeout
// elapses, or ctx is canceled. cond runs once immediately before the first
// tick. A non-nil error from cond stops polling and is returned as-is.
func Until(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done, err := cond(ctx)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
			done, err := cond(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}
