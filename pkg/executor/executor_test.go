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
package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/jacquard/pkg/types"
)

func testBlueprint(topology types.TopologyPattern, toolCount int) *types.WorkflowBlueprint {
	bp := &types.WorkflowBlueprint{
		BlueprintID: "bp-exec",
		AppName:     "demo",
		TaskDesc:    "graph QA",
		Topology:    topology,
	}
	for i := 0; i < toolCount; i++ {
		bp.Tools = append(bp.Tools, types.ToolSpec{Name: string(rune('A' + i))})
	}
	bp.Actions = []types.ActionSpec{{Name: "act", Description: "step"}}
	return bp
}

func testCase(hardNegative bool) types.SyntheticCase {
	return types.SyntheticCase{
		CaseID:   "case-1",
		Question: "List accounts owned by Alice",
		Verifier: "MATCH (p:Person)-[:OWNS]->(a:Account) RETURN a",
		Lineage:  types.CaseLineage{IsHardNegative: hardNegative},
	}
}

func TestMockExecutorIsDeterministic(t *testing.T) {
	mock := NewMockExecutor()
	bp := testBlueprint(types.TopologyPlannerWorkerReviewer, 3)

	first := mock.Execute(context.Background(), bp, testCase(false))
	second := mock.Execute(context.Background(), bp, testCase(false))
	assert.Equal(t, first, second)
	assert.Equal(t, "Mock answer for List accounts owned by Alice", first.Output)
	assert.Greater(t, first.Score, 0.0)
	assert.LessOrEqual(t, first.Score, 0.95)
}

func TestMockExecutorHardNegativeScoresLower(t *testing.T) {
	mock := NewMockExecutor()
	bp := testBlueprint(types.TopologyLinear, 2)

	plain := mock.Execute(context.Background(), bp, testCase(false))
	hard := mock.Execute(context.Background(), bp, testCase(true))
	assert.Less(t, hard.Score, plain.Score)
	assert.Less(t, hard.Confidence, plain.Confidence)
}

func TestMockExecutorRewardsBranchingAndTools(t *testing.T) {
	mock := NewMockExecutor()

	linear := mock.Execute(context.Background(), testBlueprint(types.TopologyLinear, 1), testCase(false))
	branched := mock.Execute(context.Background(), testBlueprint(types.TopologyRouterParallel, 1), testCase(false))
	assert.Greater(t, branched.Score, linear.Score)

	fewTools := mock.Execute(context.Background(), testBlueprint(types.TopologyLinear, 1), testCase(false))
	manyTools := mock.Execute(context.Background(), testBlueprint(types.TopologyLinear, 4), testCase(false))
	assert.Greater(t, manyTools.Score, fewTools.Score)
}

func TestMockExecutorCatalog(t *testing.T) {
	mock := NewMockExecutor()
	schema := mock.FetchSchemaSnapshot()
	assert.Contains(t, schema.Labels, "Person")
	assert.Contains(t, schema.Relations, "OWNS")

	catalog := mock.FetchToolCatalog()
	require.Len(t, catalog, 4)
	names := make([]string, 0, len(catalog))
	for _, tool := range catalog {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"SchemaGetter", "CypherExecutor", "PageRankExecutor", "KnowledgeBaseRetriever"}, names)
}

// scriptedClient replays a fixed sequence of outcomes and records calls.
type scriptedClient struct {
	outcomes []error
	answer   string
	calls    int
}

func (c *scriptedClient) Run(_ context.Context, _ []byte, _ string) (string, error) {
	idx := c.calls
	c.calls++
	if idx < len(c.outcomes) && c.outcomes[idx] != nil {
		return "", c.outcomes[idx]
	}
	return c.answer, nil
}

func newTestExternal(client RuntimeClient, cfg ExternalConfig) *ExternalExecutor {
	e := NewExternalExecutor(client, cfg, nil)
	e.sleep = func(time.Duration) {}
	return e
}

func TestExternalExecutorSuccessHandsOffToJudge(t *testing.T) {
	client := &scriptedClient{answer: "Alice owns two accounts"}
	e := newTestExternal(client, ExternalConfig{Timeout: time.Second})

	result := e.Execute(context.Background(), testBlueprint(types.TopologyLinear, 1), testCase(false))
	assert.Equal(t, "Alice owns two accounts", result.Output)
	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, JudgeHandoffRationale, result.Rationale)
	assert.Equal(t, 1, client.calls)
}

func TestExternalExecutorRetriesThenSucceeds(t *testing.T) {
	client := &scriptedClient{
		outcomes: []error{errors.New("boom"), errors.New("boom again"), nil},
		answer:   "recovered",
	}
	e := newTestExternal(client, ExternalConfig{
		Timeout:      time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})

	result := e.Execute(context.Background(), testBlueprint(types.TopologyLinear, 1), testCase(false))
	assert.Equal(t, "recovered", result.Output)
	assert.Equal(t, 3, client.calls)
}

func TestExternalExecutorTimeoutCategory(t *testing.T) {
	client := &scriptedClient{outcomes: []error{context.DeadlineExceeded}}
	e := newTestExternal(client, ExternalConfig{Timeout: time.Second})

	result := e.Execute(context.Background(), testBlueprint(types.TopologyLinear, 1), testCase(false))
	assert.Contains(t, result.Output, "RUNTIME_ERROR[TIMEOUT]")
	assert.Equal(t, 0.0, result.Score)
}

func TestExternalExecutorCircuitOpensAfterThreshold(t *testing.T) {
	client := &scriptedClient{outcomes: []error{errors.New("down"), errors.New("down")}}
	e := newTestExternal(client, ExternalConfig{
		Timeout:          time.Second,
		CircuitThreshold: 2,
		CircuitReset:     time.Minute,
	})
	bp := testBlueprint(types.TopologyLinear, 1)

	first := e.Execute(context.Background(), bp, testCase(false))
	assert.Contains(t, first.Output, "RUNTIME_ERROR[EXECUTION_ERROR]")
	second := e.Execute(context.Background(), bp, testCase(false))
	assert.Contains(t, second.Output, "RUNTIME_ERROR[EXECUTION_ERROR]")
	require.Equal(t, 2, client.calls)

	// Third call short-circuits without reaching the runtime.
	third := e.Execute(context.Background(), bp, testCase(false))
	assert.Contains(t, third.Output, "RUNTIME_ERROR[CIRCUIT_OPEN]")
	assert.Equal(t, 2, client.calls)
}

func TestCircuitBreakerResetsAfterTimeoutAndSuccess(t *testing.T) {
	current := time.Unix(1000, 0)
	cb := newCircuitBreaker(2, 30*time.Second)
	cb.now = func() time.Time { return current }

	cb.recordFailure()
	cb.recordFailure()
	detail, open := cb.checkOpen()
	require.True(t, open)
	assert.Contains(t, detail, "runtime circuit open")

	// Past the reset window the breaker half-opens and admits a probe.
	current = current.Add(31 * time.Second)
	_, open = cb.checkOpen()
	assert.False(t, open)

	cb.recordSuccess()
	cb.recordFailure()
	_, open = cb.checkOpen()
	assert.False(t, open)
}
