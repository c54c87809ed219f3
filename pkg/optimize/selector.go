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

// Package optimize holds the blueprint search engine and its collaborators:
// the intent-aware tool selector, the candidate prompt optimizer, experiment
// profile knobs, and topology builders.
package optimize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// ToolSelector ranks catalog tools for a task. historicalGain may be nil.
type ToolSelector interface {
	Rank(taskDesc string, intents []types.TaskIntent, catalog []types.ToolSpec, topK int, historicalGain map[string]float64) []types.ToolSpec
}

// intentKeywords maps each task intent to the capability keywords that mark a
// tool as relevant to it.
var intentKeywords = map[types.TaskIntent][]string{
	types.IntentQuery:     {"query", "cypher", "schema", "search"},
	types.IntentAnalytics: {"algorithm", "analysis", "rank", "community"},
	types.IntentModeling:  {"schema", "model", "label", "vertex", "edge"},
	types.IntentImport:    {"import", "ingest", "extract", "etl"},
	types.IntentQA:        {"retrieval", "knowledge", "browser", "search"},
}

// IntentAwareToolSelector scores tools by keyword coverage against the task's
// intents, boosted by the observed historical gain of adding the tool.
type IntentAwareToolSelector struct{}

// NewIntentAwareToolSelector returns the default selector.
func NewIntentAwareToolSelector() *IntentAwareToolSelector { return &IntentAwareToolSelector{} }

func (s *IntentAwareToolSelector) Rank(
	taskDesc string,
	intents []types.TaskIntent,
	catalog []types.ToolSpec,
	topK int,
	historicalGain map[string]float64,
) []types.ToolSpec {
	normalizedTask := strings.ToLower(taskDesc)

	type scoredTool struct {
		score float64
		name  string
		tool  types.ToolSpec
	}

	scored := make([]scoredTool, 0, len(catalog))
	for _, tool := range catalog {
		text := strings.ToLower(fmt.Sprintf("%s %s %s", tool.Name, tool.Description, strings.Join(tool.Tags, " ")))
		capabilities := toolCapabilities(text)

		score := 0.0
		for _, intent := range intents {
			for _, keyword := range intentKeywords[intent] {
				if strings.Contains(text, keyword) {
					score += 1.8
				}
				if strings.Contains(normalizedTask, keyword) {
					score += 0.8
				}
			}
			if _, ok := capabilities[intent]; ok {
				score += 1.5
			}
		}
		if historicalGain != nil {
			score += 0.5 * historicalGain[tool.Name]
		}
		scored = append(scored, scoredTool{score: score, name: tool.Name, tool: tool})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].name < scored[j].name
	})

	limit := topK
	if limit < 1 {
		limit = 1
	}
	if limit > len(scored) {
		limit = len(scored)
	}
	out := make([]types.ToolSpec, 0, limit)
	for _, entry := range scored[:limit] {
		out = append(out, entry.tool)
	}
	return out
}

// toolCapabilities derives the intent capabilities a tool advertises from its
// lowercased name, description and tags.
func toolCapabilities(toolText string) map[types.TaskIntent]struct{} {
	capabilities := make(map[types.TaskIntent]struct{})
	for intent, keywords := range intentKeywords {
		for _, keyword := range keywords {
			if strings.Contains(toolText, keyword) {
				capabilities[intent] = struct{}{}
				break
			}
		}
	}
	return capabilities
}
