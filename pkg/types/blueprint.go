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
package types

import "fmt"

// TopologyPattern identifies the orchestration shape of a workflow blueprint.
type TopologyPattern string

const (
	TopologyLinear                TopologyPattern = "linear"
	TopologyPlannerWorkerReviewer TopologyPattern = "planner_worker_reviewer"
	TopologyRouterParallel        TopologyPattern = "router_parallel"
)

// ParseTopology maps a wire value to a TopologyPattern, defaulting to
// planner_worker_reviewer for unknown values.
func ParseTopology(value string) TopologyPattern {
	switch TopologyPattern(value) {
	case TopologyLinear, TopologyPlannerWorkerReviewer, TopologyRouterParallel:
		return TopologyPattern(value)
	default:
		return TopologyPlannerWorkerReviewer
	}
}

// ToolSpec describes a tool that a workflow action can bind to.
type ToolSpec struct {
	Name        string   `json:"name" yaml:"name"`
	ModulePath  string   `json:"module_path,omitempty" yaml:"module_path,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	ToolType    string   `json:"tool_type,omitempty" yaml:"tool_type,omitempty"`
}

// ActionSpec is a named step binding one or more tools.
type ActionSpec struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Tools       []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// OperatorBlueprint is one prompt-bearing stage inside an expert workflow.
type OperatorBlueprint struct {
	Name         string   `json:"name" yaml:"name"`
	Instruction  string   `json:"instruction" yaml:"instruction"`
	OutputSchema string   `json:"output_schema" yaml:"output_schema"`
	Actions      []string `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// ExpertBlueprint groups an ordered operator pipeline under a profile.
type ExpertBlueprint struct {
	Name        string              `json:"name" yaml:"name"`
	Description string              `json:"description" yaml:"description"`
	Operators   []OperatorBlueprint `json:"operators" yaml:"operators"`
}

// WorkflowBlueprint is the optimization subject: prompts, tool bindings and
// topology for one agent workflow. Blueprints are treated as immutable by the
// search engine; mutations operate on a Clone.
type WorkflowBlueprint struct {
	BlueprintID   string            `json:"blueprint_id" yaml:"blueprint_id"`
	AppName       string            `json:"app_name" yaml:"app_name"`
	TaskDesc      string            `json:"task_desc" yaml:"task_desc"`
	Topology      TopologyPattern   `json:"topology" yaml:"topology"`
	Tools         []ToolSpec        `json:"tools" yaml:"tools"`
	Actions       []ActionSpec      `json:"actions" yaml:"actions"`
	Experts       []ExpertBlueprint `json:"experts" yaml:"experts"`
	LeaderActions []string          `json:"leader_actions" yaml:"leader_actions"`
	ParentID      string            `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	MutationTrace []string          `json:"mutation_trace,omitempty" yaml:"mutation_trace,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Clone returns a deep copy with independent slices and metadata map.
func (b *WorkflowBlueprint) Clone() *WorkflowBlueprint {
	out := *b
	out.Tools = make([]ToolSpec, len(b.Tools))
	for i, tool := range b.Tools {
		out.Tools[i] = tool
		out.Tools[i].Tags = append([]string(nil), tool.Tags...)
	}
	out.Actions = make([]ActionSpec, len(b.Actions))
	for i, action := range b.Actions {
		out.Actions[i] = action
		out.Actions[i].Tools = append([]string(nil), action.Tools...)
	}
	out.Experts = make([]ExpertBlueprint, len(b.Experts))
	for i, expert := range b.Experts {
		out.Experts[i] = expert
		out.Experts[i].Operators = make([]OperatorBlueprint, len(expert.Operators))
		for j, op := range expert.Operators {
			out.Experts[i].Operators[j] = op
			out.Experts[i].Operators[j].Actions = append([]string(nil), op.Actions...)
		}
	}
	out.LeaderActions = append([]string(nil), b.LeaderActions...)
	out.MutationTrace = append([]string(nil), b.MutationTrace...)
	if b.Metadata != nil {
		out.Metadata = make(map[string]string, len(b.Metadata))
		for k, v := range b.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Validate checks referential integrity: every action referenced by an
// operator or the leader must exist in Actions, and every tool referenced by
// an action must exist in Tools.
func (b *WorkflowBlueprint) Validate() error {
	if b.BlueprintID == "" {
		return fmt.Errorf("blueprint id is required")
	}
	actionNames := make(map[string]struct{}, len(b.Actions))
	for _, action := range b.Actions {
		actionNames[action.Name] = struct{}{}
	}
	toolNames := make(map[string]struct{}, len(b.Tools))
	for _, tool := range b.Tools {
		toolNames[tool.Name] = struct{}{}
	}

	for _, action := range b.Actions {
		for _, tool := range action.Tools {
			if _, ok := toolNames[tool]; !ok {
				return fmt.Errorf("action %q references unknown tool %q", action.Name, tool)
			}
		}
	}
	for _, expert := range b.Experts {
		for _, op := range expert.Operators {
			for _, name := range op.Actions {
				if _, ok := actionNames[name]; !ok {
					return fmt.Errorf("operator %q references unknown action %q", op.Name, name)
				}
			}
		}
	}
	for _, name := range b.LeaderActions {
		if _, ok := actionNames[name]; !ok {
			return fmt.Errorf("leader references unknown action %q", name)
		}
	}
	return nil
}

// Complexity is the penalty basis used by the search objective: total actions
// plus total operators across all experts.
func (b *WorkflowBlueprint) Complexity() int {
	total := len(b.Actions)
	for _, expert := range b.Experts {
		total += len(expert.Operators)
	}
	return total
}
