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

// SearchNode is one candidate in the search tree. Nodes live in an arena
// keyed by node_id; parent links are kept in a separate map so
// backpropagation never walks pointer cycles.
type SearchNode struct {
	NodeID      string
	Blueprint   *WorkflowBlueprint
	ParentID    string
	Visits      int
	ValueSum    float64
	BestScore   float64
	ChildrenIDs []string
}

// MeanValue is the backpropagated average reward, zero before any visit.
func (n *SearchNode) MeanValue() float64 {
	if n.Visits == 0 {
		return 0.0
	}
	return n.ValueSum / float64(n.Visits)
}

// SearchConfig tunes the blueprint search loop. Zero-value penalties are
// meaningful, so callers start from DefaultSearchConfig and override.
type SearchConfig struct {
	Rounds             int
	ExpansionsPerRound int
	EvaluationBudget   int
	ValidationBudget   int
	TestBudget         int

	ExplorationWeight float64
	NoveltyWeight     float64
	LatencyPenalty    float64
	CostPenalty       float64
	ComplexityPenalty float64
	ConfidenceWeight  float64
	MinImprovement    float64
	Patience          int

	UseHoldout                 bool
	EnablePromptMutation       bool
	EnableToolMutation         bool
	EnableTopologyMutation     bool
	EnableFailureAwareMutation bool
	EnableToolHistoricalGain   bool
	UncertaintyPenalty         float64
	GeneralizationPenalty      float64
}

// DefaultSearchConfig returns the documented search defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Rounds:                   10,
		ExpansionsPerRound:       3,
		EvaluationBudget:         8,
		ValidationBudget:         4,
		TestBudget:               4,
		ExplorationWeight:        1.2,
		NoveltyWeight:            0.15,
		LatencyPenalty:           0.05,
		CostPenalty:              0.05,
		ComplexityPenalty:        0.02,
		ConfidenceWeight:         0.15,
		MinImprovement:           0.005,
		Patience:                 3,
		UseHoldout:               true,
		EnablePromptMutation:     true,
		EnableToolMutation:       true,
		EnableTopologyMutation:   true,
		EnableToolHistoricalGain: true,
		UncertaintyPenalty:       0.08,
		GeneralizationPenalty:    0.5,
	}
}

// SearchRoundTrace is one expansion's ledger row, numbered by a global
// expansion counter across rounds.
type SearchRoundTrace struct {
	RoundNum            int     `json:"round_num"`
	SelectedNodeID      string  `json:"selected_node_id"`
	SelectedBlueprintID string  `json:"selected_blueprint_id"`
	Mutation            string  `json:"mutation"`
	TrainObjective      float64 `json:"train_objective"`
	ValObjective        float64 `json:"val_objective"`
	BestTrainObjective  float64 `json:"best_train_objective"`
	BestValObjective    float64 `json:"best_val_objective"`
	Improvement         float64 `json:"improvement"`
	Regret              float64 `json:"regret"`
	Uncertainty         float64 `json:"uncertainty"`
	GeneralizationGap   float64 `json:"generalization_gap"`
}

// PromptVariant is a scored prompt candidate kept in the run-scoped registry.
type PromptVariant struct {
	VariantID string         `json:"variant_id"`
	Prompt    string         `json:"prompt"`
	Source    string         `json:"source"`
	Score     float64        `json:"score"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
