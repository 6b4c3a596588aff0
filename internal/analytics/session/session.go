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

// Package session issues and validates the bearer token protecting the
// pipeline's administrative routes. A single session is active at a time: a
// new login supersedes the previous token, so a stale token from an earlier
// session fails validation.
package session

import (
	"crypto/subtle"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrInvalidCredentials rejects a login with wrong email or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionMismatch rejects a token that does not belong to the current
// session. The message is part of the API contract.
var ErrSessionMismatch = errors.New("token does not match current session")

// Store holds the configured credentials and the current session token.
type Store struct {
	mu       sync.Mutex
	email    string
	password string
	token    string
}

// NewStore configures the accepted login credentials.
func NewStore(email, password string) *Store {
	return &Store{email: email, password: password}
}

// Login validates the credentials and issues a fresh session token,
// invalidating any previous one.
func (s *Store) Login(email, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subtle.ConstantTimeCompare([]byte(email), []byte(s.email)) != 1 ||
		subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		return "", ErrInvalidCredentials
	}
	s.token = uuid.NewString()
	return s.token, nil
}

// Validate checks a bearer token against the current session.
func (s *Store) Validate(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || token == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		return ErrSessionMismatch
	}
	return nil
}
