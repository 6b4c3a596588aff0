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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"symphonia/internal/analytics/cache"
	"symphonia/internal/analytics/ingest"
	"symphonia/internal/analytics/job"
	"symphonia/internal/analytics/orchestrator"
	"symphonia/internal/analytics/session"
	"symphonia/internal/analytics/source"
	"symphonia/internal/analytics/summarize"
)

// emptyConnector reports no data for any window, so admitted runs finish as
// successful empty runs without touching the filesystem.
type emptyConnector struct {
	err  error
	gate chan struct{}
}

func (c *emptyConnector) FetchTrends(ctx context.Context, start, end time.Time, dir string) ([]source.File, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, c.err
}

func newTestServer(t *testing.T, conn source.Connector) (*httptest.Server, *orchestrator.Orchestrator) {
	t.Helper()
	mem := cache.NewMemoryClient()
	orch := orchestrator.New(job.NewTracker(), conn, ingest.NewStager(t.TempDir(), 48*time.Hour),
		ingest.NewCacheWriter(mem), summarize.NewEngine(mem, 100), mem, nil, nil, nil,
		orchestrator.Config{DefaultLookbackDays: 3, PageSize: 100})
	srv := NewServer(orch, session.NewStore("ops@example.com", "s3cret"))
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, orch
}

func login(t *testing.T, ts *httptest.Server, email, password string) (string, int) {
	t.Helper()
	body := `{"grant_type":"password","email":"` + email + `","senha":"` + password + `"}`
	resp, err := http.Post(ts.URL+"/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Token string `json:"token"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
	}
	return out.Token, resp.StatusCode
}

func doJSON(t *testing.T, method, url, token, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	decoded := map[string]interface{}{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("%s %s: undecodable body: %v", method, url, err)
	}
	return resp, decoded
}

func waitForStatus(t *testing.T, orch *orchestrator.Orchestrator, want job.Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if orch.Status().Status == want {
			orch.Wait()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status never reached %s: %+v", want, orch.Status())
}

func TestLoginIssuesToken(t *testing.T) {
	ts, _ := newTestServer(t, &emptyConnector{})

	token, code := login(t, ts, "ops@example.com", "s3cret")
	if code != http.StatusOK || token == "" {
		t.Fatalf("expected a token, got code %d token %q", code, token)
	}

	if _, code := login(t, ts, "ops@example.com", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("bad password must be rejected with 401, got %d", code)
	}
}

func TestProtectedRoutesRejectStaleToken(t *testing.T) {
	ts, _ := newTestServer(t, &emptyConnector{})

	first, _ := login(t, ts, "ops@example.com", "s3cret")
	second, _ := login(t, ts, "ops@example.com", "s3cret")
	if first == second {
		t.Fatalf("logins must issue distinct tokens")
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/process-status", first, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stale token accepted: %d %v", resp.StatusCode, body)
	}
	if body["error"] != session.ErrSessionMismatch.Error() {
		t.Fatalf("mismatch message: %v", body["error"])
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/process-status", second, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current token rejected: %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/process-status", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token accepted: %d", resp.StatusCode)
	}
}

func TestStartProcessAdmission(t *testing.T) {
	ts, orch := newTestServer(t, &emptyConnector{})
	token, _ := login(t, ts, "ops@example.com", "s3cret")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/start-process", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("default-window admission failed: %d %v", resp.StatusCode, body)
	}
	if body["success"] != true || body["message"] != orchestrator.StartedMessage {
		t.Fatalf("admission body: %v", body)
	}
	if body["is_reprocessing"] != false {
		t.Fatalf("default window must not be a reprocess: %v", body)
	}
	waitForStatus(t, orch, job.StatusCompleted)
}

func TestStartProcessValidationErrors(t *testing.T) {
	ts, _ := newTestServer(t, &emptyConnector{})
	token, _ := login(t, ts, "ops@example.com", "s3cret")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/start-process", token,
		`{"start-date":"01/02/2025"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed date admitted: %d %v", resp.StatusCode, body)
	}
	if body["success"] != false {
		t.Fatalf("error body must carry success:false: %v", body)
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "Formato de data inválido para data-inicio") {
		t.Fatalf("validation message: %q", msg)
	}

	future := time.Now().AddDate(0, 0, 2).Format(source.DateLayout)
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/start-process", token,
		`{"start-date":"`+future+`"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("future date admitted: %d %v", resp.StatusCode, body)
	}
}

func TestStartProcessConflict(t *testing.T) {
	conn := &emptyConnector{gate: make(chan struct{})}
	ts, orch := newTestServer(t, conn)
	token, _ := login(t, ts, "ops@example.com", "s3cret")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/start-process", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first admission failed: %d", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/start-process", token, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second admission must conflict: %d %v", resp.StatusCode, body)
	}
	if body["error"] != orchestrator.ErrAlreadyRunning.Error() {
		t.Fatalf("conflict message: %v", body["error"])
	}

	close(conn.gate)
	waitForStatus(t, orch, job.StatusCompleted)
}

func TestProcessStatusReflectsFailure(t *testing.T) {
	ts, orch := newTestServer(t, &emptyConnector{err: errors.New("upstream unavailable")})
	token, _ := login(t, ts, "ops@example.com", "s3cret")

	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/start-process", token, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("admission failed: %d", resp.StatusCode)
	}
	waitForStatus(t, orch, job.StatusFailed)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/process-status", token, "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("failed run must surface as 500, got %d", resp.StatusCode)
	}
	if body["status"] != "failed" || body["current_step"] != "download_fuga_trends" {
		t.Fatalf("failure snapshot: %v", body)
	}
	errMsg, _ := body["error"].(string)
	if !strings.Contains(errMsg, "upstream unavailable") {
		t.Fatalf("root cause missing from snapshot: %v", body)
	}
}

func TestResetStatusUnblocksAdmission(t *testing.T) {
	conn := &emptyConnector{gate: make(chan struct{})}
	ts, orch := newTestServer(t, conn)
	token, _ := login(t, ts, "ops@example.com", "s3cret")

	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/start-process", token, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("admission failed")
	}
	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/start-process", token, ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict before reset")
	}

	if resp, _ := doJSON(t, http.MethodPost, ts.URL+"/reset-status", token, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("reset failed")
	}

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/start-process", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset did not unblock admission: %d %v", resp.StatusCode, body)
	}
	close(conn.gate)
	waitForStatus(t, orch, job.StatusCompleted)
}

func TestStatusSnapshotShape(t *testing.T) {
	ts, _ := newTestServer(t, &emptyConnector{})
	token, _ := login(t, ts, "ops@example.com", "s3cret")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/process-status", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if body["status"] != "idle" || body["is_running"] != false {
		t.Fatalf("idle snapshot: %v", body)
	}
	if _, ok := body["result"].(map[string]interface{}); !ok {
		t.Fatalf("result object missing: %v", body)
	}
}
