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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// Loader reads a manual blueprint file in either the runtime manifest form or
// the internal blueprint form and normalizes it to a WorkflowBlueprint.
type Loader struct{}

// NewLoader returns a manual blueprint loader.
func NewLoader() *Loader { return &Loader{} }

// Load parses the file at path. appName and taskDesc fill any fields the
// payload leaves empty.
func (l *Loader) Load(path, appName, taskDesc string) (*types.WorkflowBlueprint, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("manual blueprint file not found: %s", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yml" && ext != ".yaml" && ext != ".json" {
		return nil, fmt.Errorf("manual blueprint must be .yml/.yaml/.json")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manual blueprint: %w", err)
	}
	payload, err := decodePayload(raw, ext)
	if err != nil {
		return nil, err
	}

	if looksLikeInternal(payload) {
		return fromInternal(payload, appName, taskDesc), nil
	}
	return fromManifest(payload, appName, taskDesc), nil
}

func decodePayload(raw []byte, ext string) (map[string]any, error) {
	var payload any
	if ext == ".json" {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("parse manual blueprint: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("parse manual blueprint: %w", err)
		}
	}
	obj, ok := asMap(payload)
	if !ok {
		return nil, fmt.Errorf("manual blueprint payload must be a JSON/YAML object")
	}
	return obj, nil
}

// looksLikeInternal detects the internal blueprint form: top-level
// blueprint_id, experts, and actions keys.
func looksLikeInternal(payload map[string]any) bool {
	_, hasID := payload["blueprint_id"]
	_, hasExperts := payload["experts"]
	_, hasActions := payload["actions"]
	return hasID && hasExperts && hasActions
}

func fromInternal(payload map[string]any, appName, taskDesc string) *types.WorkflowBlueprint {
	tools := make([]types.ToolSpec, 0)
	for _, item := range asList(payload["tools"]) {
		tools = append(tools, parseTool(item))
	}
	actions := make([]types.ActionSpec, 0)
	for _, item := range asList(payload["actions"]) {
		actions = append(actions, parseAction(item))
	}
	experts := make([]types.ExpertBlueprint, 0)
	for idx, item := range asList(payload["experts"]) {
		experts = append(experts, parseExpert(item, fmt.Sprintf("expert_%d", idx+1)))
	}
	leaderActions := stringList(payload["leader_actions"])
	if len(leaderActions) == 0 {
		leaderActions = defaultLeaderActions(actions)
	}

	return &types.WorkflowBlueprint{
		BlueprintID:   orDefault(asString(payload["blueprint_id"]), manualID()),
		AppName:       orDefault(asString(payload["app_name"]), appName),
		TaskDesc:      orDefault(asString(payload["task_desc"]), taskDesc),
		Topology:      types.ParseTopology(asString(payload["topology"])),
		Tools:         tools,
		Actions:       actions,
		Experts:       experts,
		LeaderActions: leaderActions,
		Metadata:      stringMap(payload["metadata"]),
	}
}

func fromManifest(payload map[string]any, appName, taskDesc string) *types.WorkflowBlueprint {
	appRow, _ := asMap(payload["app"])
	envRow, _ := asMap(payload["env"])
	metadata := stringMap(envRow["meta"])

	tools := make([]types.ToolSpec, 0)
	for _, item := range asList(payload["tools"]) {
		tools = append(tools, parseTool(item))
	}
	actions := make([]types.ActionSpec, 0)
	for _, item := range asList(payload["actions"]) {
		actions = append(actions, parseAction(item))
	}

	experts := make([]types.ExpertBlueprint, 0)
	for eIdx, rawExpert := range asList(payload["experts"]) {
		expertRow, ok := asMap(rawExpert)
		if !ok {
			continue
		}
		profileRow, _ := asMap(expertRow["profile"])

		// Manifest workflows are a list of stages; only the first stage
		// carries operators.
		stages := asList(expertRow["workflow"])
		operatorsPayload := stages
		if len(stages) > 0 {
			if first := asList(stages[0]); first != nil {
				operatorsPayload = first
			}
		}

		operators := make([]types.OperatorBlueprint, 0)
		for oIdx, rawOp := range operatorsPayload {
			opRow, ok := asMap(rawOp)
			if !ok {
				continue
			}
			operators = append(operators, types.OperatorBlueprint{
				Name:         fmt.Sprintf("op_%d", oIdx+1),
				Instruction:  asString(opRow["instruction"]),
				OutputSchema: asString(opRow["output_schema"]),
				Actions:      nameRefs(opRow["actions"]),
			})
		}

		experts = append(experts, types.ExpertBlueprint{
			Name:        orDefault(asString(profileRow["name"]), fmt.Sprintf("expert_%d", eIdx+1)),
			Description: asString(profileRow["desc"]),
			Operators:   operators,
		})
	}

	leaderRow, _ := asMap(payload["leader"])
	leaderActions := nameRefs(leaderRow["actions"])
	if len(leaderActions) == 0 {
		leaderActions = defaultLeaderActions(actions)
	}

	return &types.WorkflowBlueprint{
		BlueprintID:   orDefault(metadata["blueprint_id"], manualID()),
		AppName:       orDefault(asString(appRow["name"]), appName),
		TaskDesc:      orDefault(asString(appRow["desc"]), taskDesc),
		Topology:      types.ParseTopology(asString(envRow["topology"])),
		Tools:         tools,
		Actions:       actions,
		Experts:       experts,
		LeaderActions: leaderActions,
		Metadata:      metadata,
	}
}

func manualID() string {
	return "manual-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func parseTool(payload any) types.ToolSpec {
	row, ok := asMap(payload)
	if !ok {
		return types.ToolSpec{Name: asString(payload)}
	}
	return types.ToolSpec{
		Name:        asString(row["name"]),
		ModulePath:  asString(row["module_path"]),
		Description: orDefault(asString(row["description"]), asString(row["desc"])),
		Tags:        stringList(row["tags"]),
		ToolType:    orDefault(orDefault(asString(row["tool_type"]), asString(row["type"])), "LOCAL_TOOL"),
	}
}

func parseAction(payload any) types.ActionSpec {
	row, ok := asMap(payload)
	if !ok {
		name := asString(payload)
		return types.ActionSpec{Name: name, Description: name}
	}
	return types.ActionSpec{
		Name:        asString(row["name"]),
		Description: orDefault(asString(row["description"]), asString(row["desc"])),
		Tools:       nameRefs(row["tools"]),
	}
}

func parseExpert(payload any, fallbackName string) types.ExpertBlueprint {
	row, ok := asMap(payload)
	if !ok {
		return types.ExpertBlueprint{Name: fallbackName}
	}
	operators := make([]types.OperatorBlueprint, 0)
	for idx, item := range asList(row["operators"]) {
		operators = append(operators, parseOperator(item, idx))
	}
	return types.ExpertBlueprint{
		Name:        orDefault(asString(row["name"]), fallbackName),
		Description: asString(row["description"]),
		Operators:   operators,
	}
}

func parseOperator(payload any, idx int) types.OperatorBlueprint {
	fallbackName := fmt.Sprintf("op_%d", idx+1)
	row, ok := asMap(payload)
	if !ok {
		return types.OperatorBlueprint{Name: fallbackName}
	}
	return types.OperatorBlueprint{
		Name:         orDefault(asString(row["name"]), fallbackName),
		Instruction:  asString(row["instruction"]),
		OutputSchema: asString(row["output_schema"]),
		Actions:      stringList(row["actions"]),
	}
}

// nameRefs accepts both bare strings and {name: ...} objects.
func nameRefs(value any) []string {
	out := make([]string, 0)
	for _, item := range asList(value) {
		if row, ok := asMap(item); ok {
			if name := asString(row["name"]); name != "" {
				out = append(out, name)
			}
			continue
		}
		if name := asString(item); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func defaultLeaderActions(actions []types.ActionSpec) []string {
	out := make([]string, 0, 2)
	for _, action := range actions {
		out = append(out, action.Name)
		if len(out) == 2 {
			break
		}
	}
	return out
}

// asMap normalizes both map[string]any (yaml.v3, json) and map[any]any
// (older YAML payloads) to string keys.
func asMap(value any) (map[string]any, bool) {
	switch row := value.(type) {
	case map[string]any:
		return row, true
	case map[any]any:
		out := make(map[string]any, len(row))
		for k, v := range row {
			out[fmt.Sprintf("%v", k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func asList(value any) []any {
	if items, ok := value.([]any); ok {
		return items
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func stringList(value any) []string {
	out := make([]string, 0)
	for _, item := range asList(value) {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringMap(value any) map[string]string {
	row, ok := asMap(value)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = asString(v)
	}
	return out
}
