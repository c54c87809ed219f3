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
package idempotency

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginCompleteReplay(t *testing.T) {
	store := NewStore()
	scope := Scope("default", "optimize")

	outcome, cached, err := store.Begin(scope, "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, outcome)
	assert.Nil(t, cached)

	// Second request while the first is in flight.
	outcome, cached, err = store.Begin(scope, "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInProgress, outcome)
	assert.Nil(t, cached)

	store.Complete(scope, "key-1", json.RawMessage(`{"run_id":"run-1"}`))

	outcome, cached, err = store.Begin(scope, "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplay, outcome)
	assert.JSONEq(t, `{"run_id":"run-1"}`, string(cached))
}

func TestDiscardReleasesInFlightSlot(t *testing.T) {
	store := NewStore()
	scope := Scope("default", "optimize")

	outcome, _, err := store.Begin(scope, "key-1")
	require.NoError(t, err)
	require.Equal(t, OutcomeStarted, outcome)

	store.Discard(scope, "key-1")

	outcome, _, err = store.Begin(scope, "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, outcome)
}

func TestDiscardKeepsCompletedRecord(t *testing.T) {
	store := NewStore()
	scope := Scope("default", "optimize")

	_, _, err := store.Begin(scope, "key-1")
	require.NoError(t, err)
	store.Complete(scope, "key-1", json.RawMessage(`{"ok":true}`))
	store.Discard(scope, "key-1")

	outcome, cached, err := store.Begin(scope, "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReplay, outcome)
	assert.JSONEq(t, `{"ok":true}`, string(cached))
}

func TestScopesAreIsolated(t *testing.T) {
	store := NewStore()

	outcome, _, err := store.Begin(Scope("tenant-a", "optimize"), "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, outcome)

	outcome, _, err = store.Begin(Scope("tenant-b", "optimize"), "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, outcome)

	outcome, _, err = store.Begin(Scope("tenant-a", "parity"), "key-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeStarted, outcome)
}

func TestEmptyKeyRejected(t *testing.T) {
	store := NewStore()
	_, _, err := store.Begin(Scope("default", "optimize"), "   ")
	assert.ErrorIs(t, err, ErrEmptyKey)
}
