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
package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/jacquard/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "jacquard.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func storedBlueprint(id string) *types.WorkflowBlueprint {
	return &types.WorkflowBlueprint{
		BlueprintID: id,
		AppName:     "graph-agent",
		TaskDesc:    "graph QA",
		Topology:    types.TopologyPlannerWorkerReviewer,
		Tools:       []types.ToolSpec{{Name: "CypherExecutor"}},
		Actions:     []types.ActionSpec{{Name: "use_cypherexecutor", Description: "run cypher", Tools: []string{"CypherExecutor"}}},
	}
}

func sampleRun(runID, agentName string) OptimizationRunRecord {
	val := 0.81
	test := 0.78
	return OptimizationRunRecord{
		RunID:             runID,
		AgentName:         agentName,
		TaskDesc:          "graph QA",
		DatasetReportJSON: `{"final_size":8}`,
		BestBlueprintID:   "bp-best",
		BestTrainScore:    0.84,
		BestValScore:      &val,
		BestTestScore:     &test,
		ArtifactDir:       "agents/graph-agent/" + runID,
	}
}

func sampleVersion(agentName, runID string) VersionInput {
	return VersionInput{
		AgentName: agentName,
		Blueprint: storedBlueprint("bp-best"),
		Evaluation: types.EvaluationSummary{
			BlueprintID: "bp-best",
			MeanScore:   0.84,
			TotalCases:  2,
			CaseResults: []types.CaseExecution{
				{CaseID: "case-1", Question: "q1", Expected: "a1", Output: "a1", Score: 0.9, Rationale: "match", LatencyMS: 120, TokenCost: 300},
				{CaseID: "case-2", Question: "q2", Expected: "a2", Output: "a2", Score: 0.78, Rationale: "partial", LatencyMS: 90, TokenCost: 250},
			},
		},
		ArtifactPath:     "agents/graph-agent/" + runID + "/workflow.yml",
		WorkflowSnapshot: "app:\n  name: graph-agent\n",
		Notes:            "initial run",
		RunID:            runID,
	}
}

func TestSaveOptimizationResultPersistsEverything(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	traces := []types.SearchRoundTrace{
		{RoundNum: 0, SelectedNodeID: "node-a", SelectedBlueprintID: "bp-root", Mutation: "tool:add(PageRankExecutor)", TrainObjective: 0.6, ValObjective: 0.55, BestTrainObjective: 0.6, BestValObjective: 0.55, Improvement: 0.6},
		{RoundNum: 1, SelectedNodeID: "node-b", SelectedBlueprintID: "bp-best", Mutation: "prompt:optimize(pv-abc)", TrainObjective: 0.84, ValObjective: 0.81, BestTrainObjective: 0.84, BestValObjective: 0.81, Improvement: 0.24},
	}
	artifacts := []ArtifactIndexEntry{
		{ArtifactType: "workflow", URI: "agents/graph-agent/run-1/workflow.yml", Checksum: "abc", SizeBytes: 512},
		{ArtifactType: "round_traces", URI: "agents/graph-agent/run-1/round_traces.json", Checksum: "def", SizeBytes: 1024},
	}

	record, err := store.SaveOptimizationResult(ctx, sampleRun("run-1", "graph-agent"), traces, artifacts, sampleVersion("graph-agent", "run-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, record.Version)
	assert.Equal(t, types.LifecycleValidated, record.Lifecycle)
	assert.Equal(t, "run-1", record.RunID)
	assert.Equal(t, 0.84, record.Score)
	assert.False(t, record.CreatedAt.IsZero())

	versions, err := store.ListVersions(ctx, "graph-agent")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "bp-best", versions[0].BlueprintID)

	indexed, err := store.RunArtifacts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, indexed, 2)
	assert.Equal(t, "round_traces", indexed[0].ArtifactType)
	assert.Equal(t, "workflow", indexed[1].ArtifactType)
}

func TestVersionsAreMonotonicPerAgent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.SaveOptimizationResult(ctx, sampleRun("run-1", "graph-agent"), nil, nil, sampleVersion("graph-agent", "run-1"))
	require.NoError(t, err)
	second, err := store.SaveOptimizationResult(ctx, sampleRun("run-2", "graph-agent"), nil, nil, sampleVersion("graph-agent", "run-2"))
	require.NoError(t, err)
	other, err := store.SaveOptimizationResult(ctx, sampleRun("run-3", "other-agent"), nil, nil, sampleVersion("other-agent", "run-3"))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 1, other.Version)

	versions, err := store.ListVersions(ctx, "graph-agent")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	// Newest first.
	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, 1, versions[1].Version)
}

func TestGetVersionAndBlueprintRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SaveOptimizationResult(ctx, sampleRun("run-1", "graph-agent"), nil, nil, sampleVersion("graph-agent", "run-1"))
	require.NoError(t, err)

	record, err := store.GetVersion(ctx, "graph-agent", 1)
	require.NoError(t, err)
	assert.Equal(t, "graph-agent", record.AgentName)
	assert.Equal(t, "initial run", record.Notes)

	blueprint, err := store.GetVersionBlueprint(ctx, "graph-agent", 1)
	require.NoError(t, err)
	assert.Equal(t, "bp-best", blueprint.BlueprintID)
	assert.Equal(t, types.TopologyPlannerWorkerReviewer, blueprint.Topology)

	_, err = store.GetVersion(ctx, "graph-agent", 99)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetVersionBlueprint(ctx, "nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeployDemotesPreviousDeployedVersion(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SaveOptimizationResult(ctx, sampleRun("run-1", "graph-agent"), nil, nil, sampleVersion("graph-agent", "run-1"))
	require.NoError(t, err)
	_, err = store.SaveOptimizationResult(ctx, sampleRun("run-2", "graph-agent"), nil, nil, sampleVersion("graph-agent", "run-2"))
	require.NoError(t, err)

	deployed, err := store.UpdateLifecycle(ctx, "graph-agent", 1, types.LifecycleDeployed)
	require.NoError(t, err)
	assert.Equal(t, types.LifecycleDeployed, deployed.Lifecycle)

	active, err := store.ActiveVersion(ctx, "graph-agent")
	require.NoError(t, err)
	assert.Equal(t, 1, active.Version)

	// Deploying v2 demotes v1 in the same transaction.
	_, err = store.UpdateLifecycle(ctx, "graph-agent", 2, types.LifecycleDeployed)
	require.NoError(t, err)

	demoted, err := store.GetVersion(ctx, "graph-agent", 1)
	require.NoError(t, err)
	assert.Equal(t, types.LifecycleValidated, demoted.Lifecycle)

	active, err = store.ActiveVersion(ctx, "graph-agent")
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)
}

func TestUpdateLifecycleUnknownTargets(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.UpdateLifecycle(ctx, "ghost", 1, types.LifecycleDeployed)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.SaveOptimizationResult(ctx, sampleRun("run-1", "graph-agent"), nil, nil, sampleVersion("graph-agent", "run-1"))
	require.NoError(t, err)
	_, err = store.UpdateLifecycle(ctx, "graph-agent", 7, types.LifecycleDeployed)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.ActiveVersion(ctx, "graph-agent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendArtifactsRejectsDuplicateType(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SaveOptimizationResult(ctx, sampleRun("run-1", "graph-agent"), nil,
		[]ArtifactIndexEntry{{ArtifactType: "workflow", URI: "u1", Checksum: "c1", SizeBytes: 1}},
		sampleVersion("graph-agent", "run-1"))
	require.NoError(t, err)

	err = store.AppendArtifacts(ctx, "run-1", []ArtifactIndexEntry{
		{ArtifactType: "manual_parity_report", URI: "u2", Checksum: "c2", SizeBytes: 2},
	})
	require.NoError(t, err)

	err = store.AppendArtifacts(ctx, "run-1", []ArtifactIndexEntry{
		{ArtifactType: "workflow", URI: "u3", Checksum: "c3", SizeBytes: 3},
	})
	assert.Error(t, err)
}

func TestDuplicateRunIDRollsBackWholeTransaction(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SaveOptimizationResult(ctx, sampleRun("run-1", "graph-agent"), nil, nil, sampleVersion("graph-agent", "run-1"))
	require.NoError(t, err)

	_, err = store.SaveOptimizationResult(ctx, sampleRun("run-1", "graph-agent"), nil, nil, sampleVersion("graph-agent", "run-1"))
	require.Error(t, err)

	// The failed attempt must not leave a second version behind.
	versions, err := store.ListVersions(ctx, "graph-agent")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}
