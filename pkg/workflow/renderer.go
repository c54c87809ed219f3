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

// Package workflow renders blueprints into the runtime's YAML manifest format
// and loads manual blueprints back from either manifest or internal form.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// Manifest is the on-disk workflow document consumed by the downstream
// runtime. Field order mirrors the blueprint.
type Manifest struct {
	App           ManifestApp        `yaml:"app" json:"app"`
	Plugin        ManifestPlugin     `yaml:"plugin" json:"plugin"`
	Reasoner      ManifestReasoner   `yaml:"reasoner" json:"reasoner"`
	Tools         []ManifestTool     `yaml:"tools" json:"tools"`
	Actions       []ManifestAction   `yaml:"actions" json:"actions"`
	Toolkit       [][]ManifestRef    `yaml:"toolkit" json:"toolkit"`
	Experts       []ManifestExpert   `yaml:"experts" json:"experts"`
	Leader        ManifestLeader     `yaml:"leader" json:"leader"`
	KnowledgeBase map[string]any     `yaml:"knowledgebase" json:"knowledgebase"`
	Memory        map[string]any     `yaml:"memory" json:"memory"`
	Env           ManifestEnv        `yaml:"env" json:"env"`
}

type ManifestApp struct {
	Name    string `yaml:"name" json:"name"`
	Desc    string `yaml:"desc" json:"desc"`
	Version string `yaml:"version" json:"version"`
}

type ManifestPlugin struct {
	WorkflowPlatform string `yaml:"workflow_platform" json:"workflow_platform"`
}

type ManifestReasoner struct {
	Type string `yaml:"type" json:"type"`
}

type ManifestTool struct {
	Name       string `yaml:"name" json:"name"`
	Type       string `yaml:"type" json:"type"`
	ModulePath string `yaml:"module_path,omitempty" json:"module_path,omitempty"`
}

type ManifestAction struct {
	Name  string        `yaml:"name" json:"name"`
	Desc  string        `yaml:"desc" json:"desc"`
	Tools []ManifestRef `yaml:"tools" json:"tools"`
}

type ManifestRef struct {
	Name string `yaml:"name" json:"name"`
}

type ManifestExpert struct {
	Profile  ManifestProfile        `yaml:"profile" json:"profile"`
	Workflow [][]ManifestOperator   `yaml:"workflow" json:"workflow"`
}

type ManifestProfile struct {
	Name string `yaml:"name" json:"name"`
	Desc string `yaml:"desc" json:"desc"`
}

type ManifestOperator struct {
	Instruction  string        `yaml:"instruction" json:"instruction"`
	OutputSchema string        `yaml:"output_schema" json:"output_schema"`
	Actions      []ManifestRef `yaml:"actions" json:"actions"`
}

type ManifestLeader struct {
	Actions []ManifestRef `yaml:"actions" json:"actions"`
}

type ManifestEnv struct {
	Topology string            `yaml:"topology" json:"topology"`
	Meta     map[string]string `yaml:"meta" json:"meta"`
}

// Renderer materializes blueprints to manifest YAML.
type Renderer struct{}

// NewRenderer returns a manifest renderer.
func NewRenderer() *Renderer { return &Renderer{} }

// Render serializes the blueprint as manifest YAML.
func (r *Renderer) Render(blueprint *types.WorkflowBlueprint) ([]byte, error) {
	payload, err := yaml.Marshal(r.ToManifest(blueprint))
	if err != nil {
		return nil, fmt.Errorf("render workflow manifest: %w", err)
	}
	return payload, nil
}

// ToManifest converts a blueprint into the manifest document shape.
func (r *Renderer) ToManifest(blueprint *types.WorkflowBlueprint) *Manifest {
	tools := make([]ManifestTool, 0, len(blueprint.Tools))
	for _, tool := range blueprint.Tools {
		toolType := tool.ToolType
		if toolType == "" {
			toolType = "LOCAL_TOOL"
		}
		tools = append(tools, ManifestTool{
			Name:       tool.Name,
			Type:       toolType,
			ModulePath: tool.ModulePath,
		})
	}

	actions := make([]ManifestAction, 0, len(blueprint.Actions))
	toolkit := make([][]ManifestRef, 0, len(blueprint.Actions))
	for _, action := range blueprint.Actions {
		refs := make([]ManifestRef, 0, len(action.Tools))
		for _, name := range action.Tools {
			refs = append(refs, ManifestRef{Name: name})
		}
		actions = append(actions, ManifestAction{
			Name:  action.Name,
			Desc:  action.Description,
			Tools: refs,
		})
		toolkit = append(toolkit, []ManifestRef{{Name: action.Name}})
	}

	experts := make([]ManifestExpert, 0, len(blueprint.Experts))
	for _, expert := range blueprint.Experts {
		operators := make([]ManifestOperator, 0, len(expert.Operators))
		for _, op := range expert.Operators {
			refs := make([]ManifestRef, 0, len(op.Actions))
			for _, name := range op.Actions {
				refs = append(refs, ManifestRef{Name: name})
			}
			operators = append(operators, ManifestOperator{
				Instruction:  op.Instruction,
				OutputSchema: op.OutputSchema,
				Actions:      refs,
			})
		}
		experts = append(experts, ManifestExpert{
			Profile:  ManifestProfile{Name: expert.Name, Desc: expert.Description},
			Workflow: [][]ManifestOperator{operators},
		})
	}

	leaderRefs := make([]ManifestRef, 0, len(blueprint.LeaderActions))
	for _, name := range blueprint.LeaderActions {
		leaderRefs = append(leaderRefs, ManifestRef{Name: name})
	}

	meta := blueprint.Metadata
	if meta == nil {
		meta = map[string]string{}
	}

	return &Manifest{
		App: ManifestApp{
			Name:    blueprint.AppName,
			Desc:    blueprint.TaskDesc,
			Version: "0.1.0",
		},
		Plugin:        ManifestPlugin{WorkflowPlatform: "BUILTIN"},
		Reasoner:      ManifestReasoner{Type: "DUAL"},
		Tools:         tools,
		Actions:       actions,
		Toolkit:       toolkit,
		Experts:       experts,
		Leader:        ManifestLeader{Actions: leaderRefs},
		KnowledgeBase: map[string]any{},
		Memory:        map[string]any{},
		Env: ManifestEnv{
			Topology: string(blueprint.Topology),
			Meta:     meta,
		},
	}
}
