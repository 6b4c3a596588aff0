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

// Package orchestrator is the control plane of the ingestion pipeline: it
// validates and classifies incoming date windows, enforces the single-flight
// guard and drives the stages from staging cleanup through summarization to
// the terminal status.
package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"symphonia/internal/analytics/source"
)

// Classification thresholds, in days. A window reaching more than
// ReprocessThresholdDays back is a reprocessing run; more than
// MaxPeriodDays is rejected outright.
const (
	ReprocessThresholdDays = 5
	MaxPeriodDays          = 365
)

// ReprocessingWarning is surfaced verbatim to the caller on reprocessing
// admissions.
const ReprocessingWarning = `REPROCESSAMENTO: período de %d dias. Dados serão marcados com flag "reprocess" no Redis. Considere usar instância dedicada para períodos maiores que 5 dias.`

// ValidationError is a client-caused admission failure; the API layer maps
// it to a 400 response. The messages are part of the API contract.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Window is an admitted, classified ingestion request.
type Window struct {
	Start time.Time
	End   time.Time
	// StartDate/EndDate are the canonical YYYY-MM-DD forms kept for status
	// reporting.
	StartDate string
	EndDate   string
	// PeriodDays counts whole days from the start date to the server's
	// current date. It drives classification, not the download range.
	PeriodDays     int
	IsReprocessing bool
	Warning        string
}

// ParseWindow validates a raw date pair against "now" and classifies the
// resulting window. When both bounds are empty they default to now minus
// defaultLookbackDays; a missing end alone defaults to today, a missing
// start alone to the end date. Checks run in a fixed order: format, future start,
// start after end, period ceiling; the first violation wins.
func ParseWindow(startStr, endStr string, now time.Time, defaultLookbackDays int) (Window, error) {
	today := truncateToDate(now)
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)
	switch {
	case startStr == "" && endStr == "":
		def := today.AddDate(0, 0, -defaultLookbackDays)
		startStr = def.Format(source.DateLayout)
		endStr = startStr
	case endStr == "":
		endStr = today.Format(source.DateLayout)
	case startStr == "":
		startStr = endStr
	}

	start, err := parseDate(startStr)
	if err != nil {
		return Window{}, validationf("Formato de data inválido para data-inicio: %s", startStr)
	}
	end, err := parseDate(endStr)
	if err != nil {
		return Window{}, validationf("Formato de data inválido para data-fim: %s", endStr)
	}

	if start.After(today) {
		return Window{}, validationf("Data inicial (%s) não pode ser futura. Data atual: %s",
			start.Format(source.DateLayout), today.Format(source.DateLayout))
	}
	if start.After(end) {
		return Window{}, validationf("Data inicial (%s) não pode ser maior que data final (%s)",
			start.Format(source.DateLayout), end.Format(source.DateLayout))
	}

	periodDays := int(today.Sub(start).Hours() / 24)
	if periodDays > MaxPeriodDays {
		return Window{}, validationf("Período solicitado (%d dias) excede o máximo permitido de %d dias",
			periodDays, MaxPeriodDays)
	}

	w := Window{
		Start:      start,
		End:        end,
		StartDate:  start.Format(source.DateLayout),
		EndDate:    end.Format(source.DateLayout),
		PeriodDays: periodDays,
	}
	if periodDays > ReprocessThresholdDays {
		w.IsReprocessing = true
		w.Warning = fmt.Sprintf(ReprocessingWarning, periodDays)
	}
	return w, nil
}

// parseDate accepts the canonical YYYY-MM-DD form or a full ISO-8601
// timestamp, with or without a zone offset, truncated to its date.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(source.DateLayout, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateToDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
