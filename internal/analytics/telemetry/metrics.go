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

// Package telemetry exposes Prometheus metrics for the ingestion pipeline.
// Label cardinality is bounded: outcomes and stage names are small fixed
// sets, never request-derived values.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_runs_total",
		Help: "Completed ingestion runs by outcome (completed, failed, empty)",
	}, []string{"outcome"})
	runActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "analytics_run_active",
		Help: "1 while an ingestion run is executing, 0 otherwise",
	})
	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "analytics_stage_duration_seconds",
		Help:    "Wall time per pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"stage"})
	rowsIngestedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_rows_ingested_total",
		Help: "Raw rows published to the cache across all runs",
	})
	groupsPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_projection_groups_total",
		Help: "Aggregate projection groups published across all runs",
	})
	admissionsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_admissions_rejected_total",
		Help: "Rejected start-process requests by reason (validation, conflict)",
	}, []string{"reason"})
	integrityFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analytics_integrity_failures_total",
		Help: "Detected data-integrity defects (size parity, cross-store divergence)",
	})
)

func init() {
	// Register eagerly. If no Prometheus endpoint is exposed, the
	// registration is harmless.
	prometheus.MustRegister(runsTotal, runActive, stageDuration,
		rowsIngestedTotal, groupsPublishedTotal, admissionsRejectedTotal,
		integrityFailuresTotal)
}

// RunStarted flips the active gauge on.
func RunStarted() { runActive.Set(1) }

// RunFinished records the run outcome and flips the active gauge off.
// outcome is one of "completed", "failed", "empty".
func RunFinished(outcome string) {
	runActive.Set(0)
	runsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records one stage's wall time.
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRowsIngested adds published raw rows.
func ObserveRowsIngested(n int) {
	if n > 0 {
		rowsIngestedTotal.Add(float64(n))
	}
}

// ObserveGroupsPublished adds published projection groups.
func ObserveGroupsPublished(n int) {
	if n > 0 {
		groupsPublishedTotal.Add(float64(n))
	}
}

// AdmissionRejected counts a rejected start-process request.
func AdmissionRejected(reason string) {
	admissionsRejectedTotal.WithLabelValues(reason).Inc()
}

// IntegrityFailure counts a detected data-integrity defect.
func IntegrityFailure() { integrityFailuresTotal.Inc() }

// StartMetricsEndpoint exposes /metrics on addr in a background goroutine.
func StartMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
