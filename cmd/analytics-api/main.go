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

// Package main provides the entry point for the analytics ingestion service.
//
// This service pulls daily streaming trend reports from the FUGA provider,
// stages and archives the raw files, loads the rows into Redis, and
// recomputes the dashboard projections. A single run is active at a time;
// the HTTP API admits runs, reflects their progress and resets a stuck
// state machine.
//
// This file is responsible for orchestrating the whole service:
// 1. Parsing configuration flags.
// 2. Wiring the cache client, archive store, provider connector and
//    cross-validation checker.
// 3. Starting the API server to handle admission and status traffic.
// 4. Managing graceful shutdown so an in-flight run can finish its stage.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"symphonia/internal/analytics/api"
	"symphonia/internal/analytics/archive"
	"symphonia/internal/analytics/cache"
	"symphonia/internal/analytics/events"
	"symphonia/internal/analytics/ingest"
	"symphonia/internal/analytics/job"
	"symphonia/internal/analytics/orchestrator"
	"symphonia/internal/analytics/session"
	"symphonia/internal/analytics/source"
	"symphonia/internal/analytics/summarize"
	"symphonia/internal/analytics/telemetry"
	"symphonia/internal/analytics/verify"
)

func main() {
	// 1. Parse configuration flags.
	// - http_addr / metrics_addr: listen addresses for the API and Prometheus
	// - redis_addr: the cache holding raw rows and projections
	// - postgres_dsn: optional; enables cross-validation against the
	//   relational consumer when set
	// - s3_*: optional; enables archival of the raw .tsv.gz files when the
	//   endpoint is set
	// - fuga_*: the provider endpoint the download stage pulls from
	// - staging_dir / retention_days: local staging area and its cleanup age
	// - default_lookback_days: window applied when an admission carries no dates
	// - page_size: read window for the summarization paging
	httpAddr := flag.String("http_addr", ":8080", "HTTP listen address (e.g., :8080)")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g., :9090)")
	redisAddr := flag.String("redis_addr", "localhost:6379", "Redis address holding rows and projections")
	postgresDSN := flag.String("postgres_dsn", "", "Optional Postgres DSN for cross-validation of published totals")
	s3Endpoint := flag.String("s3_endpoint", "", "Optional S3-compatible endpoint for raw file archival (e.g., localhost:9000)")
	s3AccessKey := flag.String("s3_access_key", "", "Access key for the archival store")
	s3SecretKey := flag.String("s3_secret_key", "", "Secret key for the archival store")
	s3Bucket := flag.String("s3_bucket", "imusic-analytics", "Bucket receiving the raw .tsv.gz archives")
	s3Prefix := flag.String("s3_prefix", "trends", "Object key prefix inside the bucket")
	s3UseSSL := flag.Bool("s3_use_ssl", false, "Use TLS when talking to the archival store")
	fugaBaseURL := flag.String("fuga_base_url", "", "Base URL of the FUGA trends endpoint")
	fugaToken := flag.String("fuga_token", "", "Bearer token for the FUGA endpoint")
	stagingDir := flag.String("staging_dir", "/tmp", "Local directory where reports are staged")
	retentionDays := flag.Int("retention_days", 2, "Age in days after which staged report files are purged")
	defaultLookbackDays := flag.Int("default_lookback_days", 3, "Window applied when an admission carries no dates")
	pageSize := flag.Int64("page_size", 1000, "Read window for paged summarization")
	authEmail := flag.String("auth_email", "", "Login email accepted by /auth/login")
	authPassword := flag.String("auth_password", "", "Login password accepted by /auth/login")
	flag.Parse()

	if *authEmail == "" || *authPassword == "" {
		log.Fatalf("auth_email and auth_password are required")
	}

	ctx := context.Background()

	// 2. Wire the cache. Everything downstream reads and writes through the
	// narrow client interface, so swapping the backing store never touches
	// the pipeline.
	redisClient := cache.NewGoRedisClient(*redisAddr)
	if err := redisClient.Ping(ctx); err != nil {
		log.Fatalf("Could not reach Redis at %s: %v", *redisAddr, err)
	}

	// 3. Optional side channels: archival and cross-validation are enabled
	// by configuration; the pipeline runs without them.
	var archiver *archive.Publisher
	if *s3Endpoint != "" {
		store, err := archive.NewMinioStore(ctx, archive.MinioConfig{
			Endpoint:  *s3Endpoint,
			AccessKey: *s3AccessKey,
			SecretKey: *s3SecretKey,
			Bucket:    *s3Bucket,
			UseSSL:    *s3UseSSL,
		})
		if err != nil {
			log.Fatalf("Could not connect archival store: %v", err)
		}
		archiver = archive.NewPublisher(store, *s3Prefix)
	}

	var checker *verify.Checker
	if *postgresDSN != "" {
		db, err := sql.Open("pgx", *postgresDSN)
		if err != nil {
			log.Fatalf("Could not open Postgres connection: %v", err)
		}
		defer db.Close()
		checker = verify.NewChecker(db)
	}

	if *metricsAddr != "" {
		telemetry.StartMetricsEndpoint(*metricsAddr)
	}

	// 4. Assemble the pipeline.
	stager := ingest.NewStager(*stagingDir, time.Duration(*retentionDays)*24*time.Hour)
	connector := source.NewHTTPConnector(*fugaBaseURL, *fugaToken)
	writer := ingest.NewCacheWriter(redisClient)
	engine := summarize.NewEngine(redisClient, *pageSize)
	publisher := events.NewPublisher(events.LoggingProducer{}, "analytics.stages")
	orch := orchestrator.New(job.NewTracker(), connector, stager, writer, engine,
		redisClient, archiver, checker, publisher, orchestrator.Config{
			DefaultLookbackDays: *defaultLookbackDays,
			PageSize:            *pageSize,
		})

	// 5. Set up the HTTP server and routes. The http.Server is configured
	// here in main so shutdown stays graceful.
	apiServer := api.NewServer(orch, session.NewStore(*authEmail, *authPassword))
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: mux,
	}

	go func() {
		fmt.Printf("Analytics API server listening on %s\n", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", *httpAddr, err)
		}
	}()

	// 6. Graceful shutdown: stop accepting traffic, then wait for any
	// in-flight run to come to rest so its cache writes are not cut short.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\nShutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	orch.Wait()

	fmt.Println("Server gracefully stopped.")
}
