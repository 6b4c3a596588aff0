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

package job

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker holds the current run and serializes every transition behind one
// mutex. Begin is the admission check-and-set: callers that lose the race
// get false and must not start pipeline work.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
	// startedAt mirrors snap.StartedAt as a time.Time so terminal
	// transitions can enforce completed_at > started_at without re-parsing.
	startedAt time.Time
	now       func() time.Time
}

// NewTracker returns a tracker in the idle state using the wall clock.
func NewTracker() *Tracker {
	return NewTrackerWithClock(time.Now)
}

// NewTrackerWithClock injects the clock; tests use a fake to pin timestamps.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		snap: Snapshot{Status: StatusIdle, CurrentStep: "", Message: ""},
		now:  now,
	}
}

// BeginParams carries the admission-time attributes of a new run.
type BeginParams struct {
	StartDate      string
	EndDate        string
	IsReprocessing bool
	PeriodDays     int
	Warning        string
	Message        string
}

// Begin transitions idle/completed/failed -> running. It returns false,
// leaving the current run untouched, when a run is already active. On
// success it assigns a fresh run id, stamps started_at and clears every
// field left over from the previous run.
func (t *Tracker) Begin(p BeginParams) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Status == StatusRunning {
		return t.snap, false
	}
	started := t.now()
	t.startedAt = started
	t.snap = Snapshot{
		RunID:           uuid.NewString(),
		Status:          StatusRunning,
		CurrentStep:     "",
		Message:         p.Message,
		ProgressPercent: 0,
		StartedAt:       started.Format(TimeLayout),
		IsRunning:       true,
		IsReprocessing:  p.IsReprocessing,
		PeriodDays:      p.PeriodDays,
		Warning:         p.Warning,
		Result: Result{
			StartDate: p.StartDate,
			EndDate:   p.EndDate,
		},
	}
	return t.snap, true
}

// Advance moves the run to a new step. Progress is monotonic within a run:
// a lower value than the current one is ignored. The runID must match the
// id handed out by Begin; a stale caller, orphaned by a reset while a new
// run is admitted, is a no-op and must not touch the new run's state.
func (t *Tracker) Advance(runID, step string, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Status != StatusRunning || t.snap.RunID != runID {
		return
	}
	t.snap.CurrentStep = step
	if progress > t.snap.ProgressPercent {
		t.snap.ProgressPercent = progress
	}
	if message != "" {
		t.snap.Message = message
	}
}

// Complete transitions running -> completed exactly once. Stale run ids are
// ignored.
func (t *Tracker) Complete(runID, step, message string, result Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Status != StatusRunning || t.snap.RunID != runID {
		return
	}
	t.snap.Status = StatusCompleted
	t.snap.IsRunning = false
	t.snap.CurrentStep = step
	t.snap.ProgressPercent = 100
	t.snap.Message = message
	result.StartDate = t.snap.Result.StartDate
	result.EndDate = t.snap.Result.EndDate
	t.snap.Result = result
	t.snap.CompletedAt = t.terminalStamp()
}

// Fail transitions running -> failed, recording the failing step and the
// root cause. Stale run ids are ignored.
func (t *Tracker) Fail(runID, step, errMsg, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Status != StatusRunning || t.snap.RunID != runID {
		return
	}
	t.snap.Status = StatusFailed
	t.snap.IsRunning = false
	t.snap.CurrentStep = step
	t.snap.Error = errMsg
	t.snap.Message = message
	t.snap.Result.Status = StatusFailed.String()
	t.snap.Result.Message = message
	t.snap.CompletedAt = t.terminalStamp()
}

// Reset forces the tracker back to idle. Operator escape hatch for stuck
// runs; it does not touch cache state already written by the aborted run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap = Snapshot{Status: StatusIdle}
	t.startedAt = time.Time{}
}

// Snapshot returns a copy of the current run state. Safe to call at any
// time, including concurrently with a running pipeline.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// terminalStamp produces a completed_at strictly after started_at even when
// the clock has not visibly advanced at microsecond resolution.
func (t *Tracker) terminalStamp() string {
	ts := t.now()
	if !ts.After(t.startedAt) {
		ts = t.startedAt.Add(time.Microsecond)
	}
	// Guard against the layout truncating a sub-microsecond advance to an
	// equal string.
	if ts.Format(TimeLayout) == t.snap.StartedAt {
		ts = ts.Add(time.Microsecond)
	}
	return ts.Format(TimeLayout)
}
