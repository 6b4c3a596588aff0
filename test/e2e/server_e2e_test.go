//go:build e2e

// Package e2e contains end-to-end tests that launch the real server binary
// against a live Redis and a stubbed provider endpoint, and exercise the
// full admit -> download -> ingest -> summarize flow over HTTP.
package e2e

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"symphonia/internal/analytics/ingest"
)

type runningServer struct {
	cmd       *exec.Cmd
	baseURL   string
	logLinesC chan string
}

// fugaStub serves canned gzip trend reports the way the provider does: one
// GET per (platform, date), 404 for pairs it has no report for.
type fugaStub struct {
	srv *httptest.Server
	// reports maps "<platform>|<date>" to TSV lines.
	reports map[string][]string
}

func newFugaStub(t *testing.T, reports map[string][]string) *fugaStub {
	t.Helper()
	stub := &fugaStub{reports: reports}
	stub.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		platform := r.URL.Query().Get("platform")
		date := r.URL.Query().Get("date")
		lines, ok := stub.reports[platform+"|"+date]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write([]byte(strings.Join(lines, "\n"))); err != nil {
			t.Errorf("stub gzip: %v", err)
		}
		if err := zw.Close(); err != nil {
			t.Errorf("stub gzip close: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(stub.srv.Close)
	return stub
}

// reportRow builds a full-width TSV line with only the fields the
// projections read populated.
func reportRow(asset, territory, upc, streams string) string {
	cols := make([]string, ingest.ColumnCount)
	cols[2] = asset
	cols[4] = territory
	cols[6] = streams
	cols[28] = upc
	return strings.Join(cols, "\t")
}

// buildAndStartServer builds the cmd/analytics-api binary into a temp dir and
// starts it on a random free port with the provided flags. It returns when
// the server is ready to accept requests. The test cleanup terminates the
// child process.
func buildAndStartServer(t *testing.T, extraArgs ...string) *runningServer {
	t.Helper()

	// Determine an available TCP port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	_, port, _ := net.SplitHostPort(addr)

	// Build the server binary to a temp location.
	tmpDir := t.TempDir()
	exe := filepath.Join(tmpDir, exeName("analytics-api"))
	build := exec.Command("go", "build", "-o", exe, "symphonia/cmd/analytics-api")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	args := []string{
		"--http_addr=:" + port,
		"--redis_addr=127.0.0.1:6379",
		"--staging_dir=" + t.TempDir(),
		"--auth_email=e2e@example.com",
		"--auth_password=e2e-secret",
	}
	args = append(args, extraArgs...)

	cmd := exec.Command(exe, args...)
	cmd.Env = os.Environ()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("StdoutPipe: %v", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.Fatalf("StderrPipe: %v", err)
	}

	logC := make(chan string, 1024)
	go scanLines(stdout, logC)
	go scanLines(stderr, logC)

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	// Wait for the readiness line, then verify the listener actually accepts.
	_ = waitForReady(t, logC, "listening on ")
	base := fmt.Sprintf("http://127.0.0.1:%s", port)
	client := &http.Client{Timeout: 500 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok := false
	for ctx.Err() == nil {
		resp, err := client.Get(base + "/process-status")
		if err == nil {
			resp.Body.Close()
			ok = true
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !ok {
		_ = cmd.Process.Kill()
		t.Fatalf("server did not become ready (HTTP check failed)")
	}

	rs := &runningServer{cmd: cmd, baseURL: base, logLinesC: logC}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})
	return rs
}

// loginE2E obtains a bearer token from the running server.
func loginE2E(t *testing.T, rs *runningServer) string {
	t.Helper()
	body := `{"grant_type":"password","email":"e2e@example.com","senha":"e2e-secret"}`
	resp, err := http.Post(rs.baseURL+"/auth/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("login decode: %v", err)
	}
	return out.Token
}

// doAuthed performs an authenticated JSON request and decodes the response.
func doAuthed(t *testing.T, method, url, token, body string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	decoded := map[string]interface{}{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("%s %s: decode: %v", method, url, err)
	}
	return resp.StatusCode, decoded
}

// scanLines copies lines from the child process's stdout/stderr into a
// channel so tests can observe server logs in near real-time.
func scanLines(r io.ReadCloser, out chan<- string) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		out <- s.Text()
	}
}

// waitForReady blocks until a log line containing the given needle appears or
// a short timeout elapses.
func waitForReady(t *testing.T, logC <-chan string, needle string) bool {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case line := <-logC:
			if strings.Contains(line, needle) {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

// exeName returns the executable name for the current OS (adds .exe on Windows).
func exeName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
