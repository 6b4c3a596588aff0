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

// Package job defines the ingestion run model and its state machine.
// At most one run is active per process; admission of a second run while one
// is active is rejected at the state machine, which makes the check-and-set
// the single source of truth for the single-flight guard.
package job

import (
	"encoding/json"
	"fmt"
)

// TimeLayout is the wire format for started_at/completed_at: microsecond
// precision, no zone designator.
const TimeLayout = "2006-01-02T15:04:05.000000"

// Status is the run lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalJSON encodes the status by name; consumers poll it as a string.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "idle":
		*s = StatusIdle
	case "running":
		*s = StatusRunning
	case "completed":
		*s = StatusCompleted
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown job status %q", name)
	}
	return nil
}

// Result is the nested summary block on a terminal run.
type Result struct {
	Message   string `json:"message"`
	Status    string `json:"status"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Snapshot is a point-in-time copy of the run state, safe to hand out to
// concurrent readers. All timestamps use TimeLayout.
type Snapshot struct {
	RunID           string `json:"run_id,omitempty"`
	Status          Status `json:"status"`
	CurrentStep     string `json:"current_step"`
	Message         string `json:"message"`
	Error           string `json:"error,omitempty"`
	ProgressPercent int    `json:"progress_percent"`
	StartedAt       string `json:"started_at,omitempty"`
	CompletedAt     string `json:"completed_at,omitempty"`
	IsRunning       bool   `json:"is_running"`
	IsReprocessing  bool   `json:"is_reprocessing"`
	PeriodDays      int    `json:"period_days"`
	Warning         string `json:"warning,omitempty"`
	Result          Result `json:"result"`
}
