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
package optimize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// BuildInitialBlueprint assembles the search root: one action per selected
// tool, the first two actions promoted to leader actions, and a single expert
// whose operators follow the requested topology.
func BuildInitialBlueprint(appName, taskDesc string, selectedTools []types.ToolSpec, topology types.TopologyPattern) *types.WorkflowBlueprint {
	actions := make([]types.ActionSpec, 0, len(selectedTools))
	leaderActions := make([]string, 0, 2)
	for idx, tool := range selectedTools {
		actionName := "use_" + strings.ToLower(tool.Name)
		actions = append(actions, types.ActionSpec{
			Name:        actionName,
			Description: fmt.Sprintf("Use %s during graph reasoning.", tool.Name),
			Tools:       []string{tool.Name},
		})
		if idx < 2 {
			leaderActions = append(leaderActions, actionName)
		}
	}

	expert := types.ExpertBlueprint{
		Name:        "GraphTaskExpert",
		Description: "General graph task expert with planning, execution and verification capabilities.",
		Operators:   BuildTopologyOperators(topology, leaderActions),
	}

	return &types.WorkflowBlueprint{
		BlueprintID:   "bp-" + randomHex(12),
		AppName:       appName,
		TaskDesc:      taskDesc,
		Topology:      topology,
		Tools:         selectedTools,
		Actions:       actions,
		Experts:       []types.ExpertBlueprint{expert},
		LeaderActions: leaderActions,
	}
}

// BuildTopologyOperators returns the operator pipeline for a topology, each
// operator seeded with the same action list.
func BuildTopologyOperators(topology types.TopologyPattern, seedActions []string) []types.OperatorBlueprint {
	copyActions := func() []string { return append([]string(nil), seedActions...) }

	switch topology {
	case types.TopologyLinear:
		return []types.OperatorBlueprint{
			{
				Name:         "linear_worker",
				Instruction:  "Solve the graph task with minimal steps and explicit evidence references.",
				OutputSchema: "answer: concise factual answer",
				Actions:      copyActions(),
			},
		}

	case types.TopologyPlannerWorkerReviewer:
		return []types.OperatorBlueprint{
			{
				Name:         "planner",
				Instruction:  "Plan required graph operations and tools before execution.",
				OutputSchema: "plan: ordered graph actions",
				Actions:      copyActions(),
			},
			{
				Name:         "worker",
				Instruction:  "Execute the plan and collect graph evidence.",
				OutputSchema: "draft_answer: evidence-backed result",
				Actions:      copyActions(),
			},
			{
				Name:         "reviewer",
				Instruction:  "Audit draft answer and patch unsupported claims.",
				OutputSchema: "final_answer: corrected result",
				Actions:      copyActions(),
			},
		}

	default:
		return []types.OperatorBlueprint{
			{
				Name:         "router",
				Instruction:  "Route request by intent and required capability.",
				OutputSchema: "route: chosen branch",
				Actions:      copyActions(),
			},
			{
				Name:         "worker_query",
				Instruction:  "Process query branch with strict schema grounding.",
				OutputSchema: "query_result: branch output",
				Actions:      copyActions(),
			},
			{
				Name:         "worker_analysis",
				Instruction:  "Process analytics branch with algorithm rationale.",
				OutputSchema: "analysis_result: branch output",
				Actions:      copyActions(),
			},
			{
				Name:         "synthesizer",
				Instruction:  "Merge branch outputs and produce verified final answer.",
				OutputSchema: "final_answer: merged result",
				Actions:      copyActions(),
			},
		}
	}
}

// InferCaseIntents returns the at most two most frequent intents across the
// dataset's cases, defaulting to query when empty.
func InferCaseIntents(cases []types.SyntheticCase) []types.TaskIntent {
	counts := make(map[types.TaskIntent]int)
	for _, c := range cases {
		counts[c.Intent]++
	}
	if len(counts) == 0 {
		return []types.TaskIntent{types.IntentQuery}
	}

	intents := make([]types.TaskIntent, 0, len(counts))
	for intent := range counts {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool {
		if counts[intents[i]] != counts[intents[j]] {
			return counts[intents[i]] > counts[intents[j]]
		}
		return intents[i] < intents[j]
	})
	if len(intents) > 2 {
		intents = intents[:2]
	}
	return intents
}
