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

// Package api implements the public-facing HTTP server for the analytics
// pipeline. It handles login, run admission, run status reflection and the
// administrative reset, delegating the pipeline semantics to the
// orchestrator.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"symphonia/internal/analytics/job"
	"symphonia/internal/analytics/orchestrator"
	"symphonia/internal/analytics/session"
)

// Server handles the HTTP requests for the analytics service.
type Server struct {
	orch     *orchestrator.Orchestrator
	sessions *session.Store
}

// NewServer creates and configures a new API server.
func NewServer(orch *orchestrator.Orchestrator, sessions *session.Store) *Server {
	return &Server{orch: orch, sessions: sessions}
}

// RegisterRoutes sets up the HTTP routes for the server on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/start-process", s.withAuth(s.handleStartProcess))
	mux.HandleFunc("/process-status", s.withAuth(s.handleProcessStatus))
	mux.HandleFunc("/reset-status", s.withAuth(s.handleResetStatus))
}

type loginRequest struct {
	GrantType string `json:"grant_type"`
	Email     string `json:"email"`
	Password  string `json:"senha"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type startRequest struct {
	StartDate string `json:"start-date"`
	EndDate   string `json:"end-date"`
}

type startResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	IsReprocessing bool   `json:"is_reprocessing"`
	PeriodDays     int    `json:"period_days"`
	Warning        string `json:"warning,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// handleLogin validates credentials and issues the session token protecting
// the other routes.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed login request"})
		return
	}
	token, err := s.sessions.Login(req.Email, req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

// withAuth rejects requests whose bearer token does not belong to the
// current session. A login from anywhere supersedes older tokens, so a
// stale token fails here with 401.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if err := s.sessions.Validate(token); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
		next(w, r)
	}
}

// handleStartProcess admits a run. The window bounds are optional; an empty
// body or absent fields fall back to the configured default window.
func (s *Server) handleStartProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	// An empty body means "use the default window"; only malformed JSON is
	// rejected.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	adm, err := s.orch.StartProcess(req.StartDate, req.EndDate)
	if err != nil {
		var verr *orchestrator.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
		case errors.Is(err, orchestrator.ErrAlreadyRunning):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		Success:        true,
		Message:        adm.Message,
		IsReprocessing: adm.IsReprocessing,
		PeriodDays:     adm.PeriodDays,
		Warning:        adm.Warning,
	})
}

// handleProcessStatus reflects the current run snapshot. A failed run is
// reported with HTTP 500 so that unattended pollers surface the failure
// without parsing the body.
func (s *Server) handleProcessStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.orch.Status()
	code := http.StatusOK
	if snap.Status == job.StatusFailed {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, snap)
}

// handleResetStatus forces the state machine back to idle so a stuck run no
// longer blocks admission.
func (s *Server) handleResetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.orch.Reset()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Status reset",
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Printf("Failed to encode response body: %v\n", err)
	}
}

// ListenAndServe starts the HTTP server on the specified address.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	fmt.Printf("Analytics API server listening on %s\n", addr)
	return httpServer.ListenAndServe()
}
