// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package idempotency deduplicates write requests keyed by an optional
// Idempotency-Key header scoped per tenant and operation.
package idempotency

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrEmptyKey rejects keys that are empty after trimming.
var ErrEmptyKey = errors.New("idempotency key must not be empty")

// Outcome of Begin.
type Outcome string

const (
	// OutcomeStarted means the caller owns the slot and must Complete or
	// Discard it.
	OutcomeStarted Outcome = "started"
	// OutcomeReplay means a completed response is cached; replay it.
	OutcomeReplay Outcome = "replay"
	// OutcomeInProgress means another request holds the slot.
	OutcomeInProgress Outcome = "in_progress"
)

// Scope builds the per-tenant operation scope.
func Scope(tenantID, operation string) string {
	return tenantID + ":" + operation
}

type record struct {
	status    Outcome
	response  json.RawMessage
	createdAt time.Time
	updatedAt time.Time
}

// Store is an in-memory idempotency table guarded by a mutex.
type Store struct {
	mu      sync.Mutex
	records map[string]*record
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{records: make(map[string]*record), now: time.Now}
}

func recordKey(scope, key string) string {
	return scope + "::" + key
}

// Begin reserves the (scope, key) slot. It returns OutcomeStarted when the
// slot is fresh, OutcomeReplay with the cached response when a prior request
// completed, and OutcomeInProgress when a request is still in flight.
func (s *Store) Begin(scope, key string) (Outcome, json.RawMessage, error) {
	if strings.TrimSpace(key) == "" {
		return "", nil, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordKey(scope, key)
	existing, ok := s.records[id]
	if !ok {
		now := s.now()
		s.records[id] = &record{status: OutcomeInProgress, createdAt: now, updatedAt: now}
		return OutcomeStarted, nil, nil
	}
	if existing.status == OutcomeReplay && existing.response != nil {
		cached := make(json.RawMessage, len(existing.response))
		copy(cached, existing.response)
		return OutcomeReplay, cached, nil
	}
	return OutcomeInProgress, nil, nil
}

// Complete caches the successful response for replay.
func (s *Store) Complete(scope, key string, response json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordKey(scope, key)
	stored := make(json.RawMessage, len(response))
	copy(stored, response)
	now := s.now()
	existing, ok := s.records[id]
	if !ok {
		s.records[id] = &record{status: OutcomeReplay, response: stored, createdAt: now, updatedAt: now}
		return
	}
	existing.status = OutcomeReplay
	existing.response = stored
	existing.updatedAt = now
}

// Discard releases an in-flight slot after a failed request so the caller
// can retry. Completed records are kept.
func (s *Store) Discard(scope, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordKey(scope, key)
	existing, ok := s.records[id]
	if !ok {
		return
	}
	if existing.status == OutcomeInProgress {
		delete(s.records, id)
	}
}
