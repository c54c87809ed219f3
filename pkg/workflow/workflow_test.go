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
package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/jacquard/pkg/types"
)

func sampleBlueprint() *types.WorkflowBlueprint {
	return &types.WorkflowBlueprint{
		BlueprintID: "bp-test",
		AppName:     "fraud-graph",
		TaskDesc:    "Answer fraud questions over the transaction graph",
		Topology:    types.TopologyPlannerWorkerReviewer,
		Tools: []types.ToolSpec{
			{Name: "CypherExecutor", ModulePath: "app.plugin.neo4j.resource.graph_query", Tags: []string{"query"}},
			{Name: "SchemaGetter", ToolType: "LOCAL_TOOL"},
		},
		Actions: []types.ActionSpec{
			{Name: "run_query", Description: "Execute a Cypher query", Tools: []string{"CypherExecutor"}},
			{Name: "read_schema", Description: "Inspect graph schema", Tools: []string{"SchemaGetter"}},
		},
		Experts: []types.ExpertBlueprint{
			{
				Name:        "planner",
				Description: "Decompose the task",
				Operators: []types.OperatorBlueprint{
					{Name: "op_1", Instruction: "Plan the query", OutputSchema: "plan", Actions: []string{"read_schema"}},
					{Name: "op_2", Instruction: "Execute and verify", OutputSchema: "answer", Actions: []string{"run_query"}},
				},
			},
		},
		LeaderActions: []string{"run_query"},
		Metadata:      map[string]string{"blueprint_id": "bp-test"},
	}
}

func TestRenderManifestShape(t *testing.T) {
	payload, err := NewRenderer().Render(sampleBlueprint())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(payload, &doc))

	app, ok := doc["app"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fraud-graph", app["name"])
	assert.Equal(t, "0.1.0", app["version"])

	plugin := doc["plugin"].(map[string]any)
	assert.Equal(t, "BUILTIN", plugin["workflow_platform"])
	reasoner := doc["reasoner"].(map[string]any)
	assert.Equal(t, "DUAL", reasoner["type"])

	tools := doc["tools"].([]any)
	require.Len(t, tools, 2)
	first := tools[0].(map[string]any)
	assert.Equal(t, "CypherExecutor", first["name"])
	assert.Equal(t, "LOCAL_TOOL", first["type"])
	assert.Equal(t, "app.plugin.neo4j.resource.graph_query", first["module_path"])

	// One toolkit chain per action, each holding just that action.
	toolkit := doc["toolkit"].([]any)
	require.Len(t, toolkit, 2)
	chain := toolkit[0].([]any)
	require.Len(t, chain, 1)
	assert.Equal(t, "run_query", chain[0].(map[string]any)["name"])

	experts := doc["experts"].([]any)
	require.Len(t, experts, 1)
	expert := experts[0].(map[string]any)
	profile := expert["profile"].(map[string]any)
	assert.Equal(t, "planner", profile["name"])
	stages := expert["workflow"].([]any)
	require.Len(t, stages, 1)
	operators := stages[0].([]any)
	require.Len(t, operators, 2)

	env := doc["env"].(map[string]any)
	assert.Equal(t, "planner_worker_reviewer", env["topology"])
}

func TestRenderLoadRoundTrip(t *testing.T) {
	original := sampleBlueprint()
	payload, err := NewRenderer().Render(original)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yml")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	loaded, err := NewLoader().Load(path, "other-app", "other task")
	require.NoError(t, err)

	assert.Equal(t, original.BlueprintID, loaded.BlueprintID)
	assert.Equal(t, original.AppName, loaded.AppName)
	assert.Equal(t, original.TaskDesc, loaded.TaskDesc)
	assert.Equal(t, original.Topology, loaded.Topology)
	assert.Equal(t, original.LeaderActions, loaded.LeaderActions)
	require.Len(t, loaded.Tools, len(original.Tools))
	assert.Equal(t, "CypherExecutor", loaded.Tools[0].Name)
	require.Len(t, loaded.Actions, len(original.Actions))
	assert.Equal(t, []string{"CypherExecutor"}, loaded.Actions[0].Tools)
	require.Len(t, loaded.Experts, 1)
	require.Len(t, loaded.Experts[0].Operators, 2)
	assert.Equal(t, "Plan the query", loaded.Experts[0].Operators[0].Instruction)
	assert.Equal(t, []string{"read_schema"}, loaded.Experts[0].Operators[0].Actions)
	require.NoError(t, loaded.Validate())
}

func TestLoadInternalForm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blueprint.json")
	doc := `{
		"blueprint_id": "bp-manual",
		"topology": "router_parallel",
		"tools": [{"name": "CypherExecutor", "desc": "Run Cypher"}],
		"actions": [
			{"name": "run_query", "desc": "Execute", "tools": ["CypherExecutor"]},
			{"name": "summarize", "desc": "Summarize"}
		],
		"experts": [
			{"operators": [{"instruction": "Route the task", "output_schema": "route"}]}
		]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	bp, err := NewLoader().Load(path, "fraud-graph", "task")
	require.NoError(t, err)
	assert.Equal(t, "bp-manual", bp.BlueprintID)
	assert.Equal(t, "fraud-graph", bp.AppName)
	assert.Equal(t, types.TopologyRouterParallel, bp.Topology)
	assert.Equal(t, "Run Cypher", bp.Tools[0].Description)
	// Missing names fall back to positional defaults.
	require.Len(t, bp.Experts, 1)
	assert.Equal(t, "expert_1", bp.Experts[0].Name)
	assert.Equal(t, "op_1", bp.Experts[0].Operators[0].Name)
	// Leader falls back to the first two actions.
	assert.Equal(t, []string{"run_query", "summarize"}, bp.LeaderActions)
}

func TestLoadManifestWithoutIDAssignsManualID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	doc := `
app:
  name: demo
actions:
  - name: act_one
    desc: first
experts: []
env:
  topology: linear
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	bp, err := NewLoader().Load(path, "fallback-app", "fallback task")
	require.NoError(t, err)
	assert.Regexp(t, `^manual-[0-9a-f]{12}$`, bp.BlueprintID)
	assert.Equal(t, "demo", bp.AppName)
	assert.Equal(t, "fallback task", bp.TaskDesc)
	assert.Equal(t, types.TopologyLinear, bp.Topology)
}

func TestLoadRejectsBadInputs(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader()

	_, err := loader.Load(filepath.Join(dir, "missing.yml"), "a", "t")
	assert.ErrorContains(t, err, "not found")

	txt := filepath.Join(dir, "blueprint.txt")
	require.NoError(t, os.WriteFile(txt, []byte("name: x"), 0o644))
	_, err = loader.Load(txt, "a", "t")
	assert.ErrorContains(t, err, ".yml/.yaml/.json")

	list := filepath.Join(dir, "list.yaml")
	require.NoError(t, os.WriteFile(list, []byte("- one\n- two\n"), 0o644))
	_, err = loader.Load(list, "a", "t")
	assert.ErrorContains(t, err, "must be a JSON/YAML object")
}

func TestParseTopologyDefaultsUnknown(t *testing.T) {
	assert.Equal(t, types.TopologyPlannerWorkerReviewer, types.ParseTopology("mystery"))
}
