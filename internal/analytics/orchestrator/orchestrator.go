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

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"symphonia/internal/analytics/archive"
	"symphonia/internal/analytics/cache"
	"symphonia/internal/analytics/events"
	"symphonia/internal/analytics/ingest"
	"symphonia/internal/analytics/job"
	"symphonia/internal/analytics/source"
	"symphonia/internal/analytics/summarize"
	"symphonia/internal/analytics/telemetry"
	"symphonia/internal/analytics/verify"
)

// ErrAlreadyRunning is the single-flight conflict; the API layer maps it to
// a 409 response. The message is part of the API contract.
var ErrAlreadyRunning = errors.New("Process already running")

// User-facing run messages, part of the API contract.
const (
	StartedMessage     = "Process started (background)"
	FailedMessage      = "Processo falhou com erro"
	CompletedMessage   = "Processamento concluído com sucesso"
	EmptyPeriodMessage = "FUGA não tem dados de analytics para o período solicitado"
)

// FinalStep is the terminal step name reported by completed runs.
const FinalStep = "Finalizado"

// Admission is the synchronous acknowledgement returned by StartProcess.
type Admission struct {
	Message        string
	IsReprocessing bool
	PeriodDays     int
	Warning        string
}

// Config holds the orchestration knobs.
type Config struct {
	// DefaultLookbackDays sets both window bounds when the caller supplies
	// no dates.
	DefaultLookbackDays int
	// PageSize bounds the summarization read windows.
	PageSize int64
}

// Orchestrator validates admissions and drives the pipeline stages in a
// background goroutine. Archiver, checker and publisher are optional; nil
// disables the corresponding side channel.
type Orchestrator struct {
	tracker   *job.Tracker
	connector source.Connector
	stager    *ingest.Stager
	writer    *ingest.CacheWriter
	engine    *summarize.Engine
	cache     cache.Client
	archiver  *archive.Publisher
	checker   *verify.Checker
	publisher *events.Publisher
	cfg       Config
	now       func() time.Time

	wg sync.WaitGroup
}

// New wires an orchestrator. tracker, connector, stager, writer, engine and
// cacheClient are required.
func New(tracker *job.Tracker, connector source.Connector, stager *ingest.Stager,
	writer *ingest.CacheWriter, engine *summarize.Engine, cacheClient cache.Client,
	archiver *archive.Publisher, checker *verify.Checker, publisher *events.Publisher,
	cfg Config) *Orchestrator {
	if cfg.DefaultLookbackDays <= 0 {
		cfg.DefaultLookbackDays = 3
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	return &Orchestrator{
		tracker:   tracker,
		connector: connector,
		stager:    stager,
		writer:    writer,
		engine:    engine,
		cache:     cacheClient,
		archiver:  archiver,
		checker:   checker,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
	}
}

// StartProcess validates and classifies the requested window, admits it
// through the single-flight guard and launches the pipeline in the
// background. It returns promptly in every case; a full run can take tens
// of minutes.
func (o *Orchestrator) StartProcess(startStr, endStr string) (Admission, error) {
	wnd, err := ParseWindow(startStr, endStr, o.now(), o.cfg.DefaultLookbackDays)
	if err != nil {
		telemetry.AdmissionRejected("validation")
		return Admission{}, err
	}

	snap, admitted := o.tracker.Begin(job.BeginParams{
		StartDate:      wnd.StartDate,
		EndDate:        wnd.EndDate,
		IsReprocessing: wnd.IsReprocessing,
		PeriodDays:     wnd.PeriodDays,
		Warning:        wnd.Warning,
		Message:        StartedMessage,
	})
	if !admitted {
		telemetry.AdmissionRejected("conflict")
		return Admission{}, ErrAlreadyRunning
	}

	telemetry.RunStarted()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(snap.RunID, wnd)
	}()

	return Admission{
		Message:        StartedMessage,
		IsReprocessing: wnd.IsReprocessing,
		PeriodDays:     wnd.PeriodDays,
		Warning:        wnd.Warning,
	}, nil
}

// Status returns the current run snapshot. Safe to call at any time.
func (o *Orchestrator) Status() job.Snapshot {
	return o.tracker.Snapshot()
}

// Reset forces the state machine back to idle so a stuck run no longer
// blocks admission. Cache state already written by the aborted run is left
// in place; the next successful run overwrites it.
func (o *Orchestrator) Reset() {
	o.tracker.Reset()
}

// Wait blocks until any in-flight pipeline goroutine has returned. Used by
// shutdown and by tests.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// stage is one named pipeline step with its progress checkpoint.
type stage struct {
	name     string
	progress int
	fn       func(ctx context.Context) error
}

// run executes the pipeline stages in order. Any stage error terminates the
// run as failed with the stage's name and the root cause recorded; there is
// no per-stage retry.
func (o *Orchestrator) run(runID string, wnd Window) {
	ctx := context.Background()

	var (
		fetched []source.File
		staged  []ingest.StagedFile
		empty   bool
	)

	stages := []stage{
		{"clean_old_files", 5, func(ctx context.Context) error {
			removed, err := o.stager.CleanOldFiles(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				fmt.Printf("Staging cleanup removed %d stale report files\n", removed)
			}
			return nil
		}},
		{"download_fuga_trends", 15, func(ctx context.Context) error {
			var err error
			fetched, err = o.connector.FetchTrends(ctx, wnd.Start, wnd.End, o.stager.Dir())
			if err != nil {
				return err
			}
			empty = len(fetched) == 0
			return nil
		}},
		{"decompress_files", 25, func(ctx context.Context) error {
			var err error
			staged, err = o.stager.Decompress(ctx, fetched)
			if err != nil {
				return err
			}
			return o.stager.VerifyPairs(ctx)
		}},
		{"upload_s3", 35, func(ctx context.Context) error {
			if o.archiver == nil {
				return nil
			}
			paths := make([]string, len(staged))
			for i, f := range staged {
				paths[i] = f.GzPath
			}
			return o.archiver.Upload(ctx, paths)
		}},
		{"process_file_to_redis", 55, func(ctx context.Context) error {
			for _, f := range staged {
				count, err := o.writer.ProcessFile(ctx, f, wnd.IsReprocessing)
				if err != nil {
					return err
				}
				telemetry.ObserveRowsIngested(count)
			}
			return nil
		}},
		{"process_all_files_complete", 60, func(ctx context.Context) error { return nil }},
	}

	status := ingest.StatusProcessed
	if wnd.IsReprocessing {
		status = ingest.StatusReprocess
	}
	progress := 62
	for _, p := range summarize.All {
		p := p
		checkpoint := progress
		stages = append(stages, stage{p.Config().StepName, checkpoint, func(ctx context.Context) error {
			for date, platforms := range platformsByDate(staged) {
				groups, err := o.engine.Run(ctx, p, platforms, date, status)
				if err != nil {
					return err
				}
				telemetry.ObserveGroupsPublished(groups)
			}
			return nil
		}})
		progress += 4
	}

	for _, s := range stages {
		o.tracker.Advance(runID, s.name, s.progress, "")
		o.emit(ctx, runID, s.name, "running", "")

		began := o.now()
		err := s.fn(ctx)
		telemetry.ObserveStage(s.name, o.now().Sub(began))
		if err != nil {
			o.tracker.Fail(runID, s.name, err.Error(), FailedMessage)
			o.emit(ctx, runID, s.name, "failed", err.Error())
			telemetry.RunFinished("failed")
			return
		}

		// No data for the whole window is a successful empty run, not a
		// failure.
		if s.name == "download_fuga_trends" && empty {
			o.tracker.Complete(runID, FinalStep, EmptyPeriodMessage, job.Result{
				Message: EmptyPeriodMessage,
				Status:  job.StatusCompleted.String(),
			})
			o.emit(ctx, runID, FinalStep, "completed", EmptyPeriodMessage)
			telemetry.RunFinished("empty")
			return
		}
	}

	o.crossValidate(ctx, staged)

	o.tracker.Complete(runID, FinalStep, CompletedMessage, job.Result{
		Message: CompletedMessage,
		Status:  job.StatusCompleted.String(),
	})
	o.emit(ctx, runID, FinalStep, "completed", CompletedMessage)
	telemetry.RunFinished("completed")
}

// emit publishes a stage event, best-effort.
func (o *Orchestrator) emit(ctx context.Context, runID, stageName, status, message string) {
	if o.publisher == nil {
		return
	}
	err := o.publisher.StageChanged(ctx, events.StageEvent{
		RunID:   runID,
		Stage:   stageName,
		Status:  status,
		Message: message,
	})
	if err != nil {
		fmt.Printf("WARN: stage event %s/%s not published: %v\n", stageName, status, err)
	}
}

// crossValidate compares the published top-plays totals against the
// relational store that syncs the projections. Divergence is counted and
// logged, never fatal: the relational store trails the cache.
func (o *Orchestrator) crossValidate(ctx context.Context, staged []ingest.StagedFile) {
	if o.checker == nil {
		return
	}
	for date, platforms := range platformsByDate(staged) {
		dbTotal, err := o.checker.TotalPlays(ctx, date)
		if err != nil {
			fmt.Printf("WARN: cross-validation query failed for %s: %v\n", date, err)
			continue
		}
		cacheTotal, err := o.topPlaysTotal(ctx, platforms, date)
		if err != nil {
			fmt.Printf("WARN: cross-validation read failed for %s: %v\n", date, err)
			continue
		}
		if dbTotal != 0 && dbTotal != cacheTotal {
			telemetry.IntegrityFailure()
			fmt.Printf("WARN: top plays divergence for %s: cache=%d postgres=%d\n", date, cacheTotal, dbTotal)
		}
	}
}

// topPlaysTotal sums the published top-plays metric for a date across
// platforms, reading in windows.
func (o *Orchestrator) topPlaysTotal(ctx context.Context, platforms []string, date string) (int64, error) {
	var total int64
	for _, platform := range platforms {
		key := cache.ProjectionRowsKey(summarize.TopPlays.String(), platform, date)
		err := cache.ForEachRow(ctx, o.cache, key, o.cfg.PageSize, func(raw string) error {
			var record struct {
				Streams int64 `json:"number_of_streams"`
			}
			if err := json.Unmarshal([]byte(raw), &record); err != nil {
				return err
			}
			total += record.Streams
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// platformsByDate indexes the staged files: date -> sorted platform names.
func platformsByDate(staged []ingest.StagedFile) map[string][]string {
	byDate := make(map[string]map[string]bool)
	for _, f := range staged {
		if byDate[f.Date] == nil {
			byDate[f.Date] = make(map[string]bool)
		}
		byDate[f.Date][f.Platform] = true
	}
	out := make(map[string][]string, len(byDate))
	for date, set := range byDate {
		platforms := make([]string, 0, len(set))
		for p := range set {
			platforms = append(platforms, p)
		}
		sort.Strings(platforms)
		out[date] = platforms
	}
	return out
}
