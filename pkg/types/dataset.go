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

// TaskIntent is the inferred purpose of a synthetic case.
type TaskIntent string

const (
	IntentQuery     TaskIntent = "query"
	IntentAnalytics TaskIntent = "analytics"
	IntentModeling  TaskIntent = "modeling"
	IntentImport    TaskIntent = "import"
	IntentQA        TaskIntent = "qa"
)

// Difficulty buckets cases into four levels, cycled by case index.
type Difficulty string

const (
	DifficultyL1 Difficulty = "L1"
	DifficultyL2 Difficulty = "L2"
	DifficultyL3 Difficulty = "L3"
	DifficultyL4 Difficulty = "L4"
)

// SchemaSnapshot is a point-in-time view of the graph schema used to ground
// question generation.
type SchemaSnapshot struct {
	Labels    []string `json:"labels"`
	Relations []string `json:"relations"`
	Source    string   `json:"source,omitempty"`
}

// CaseLineage records how a synthetic case was produced.
type CaseLineage struct {
	SeedIndex      int    `json:"seed_index"`
	Intent         string `json:"intent"`
	Difficulty     string `json:"difficulty"`
	IsHardNegative bool   `json:"is_hard_negative"`
}

// SyntheticCase is a single generated task item.
type SyntheticCase struct {
	CaseID     string      `json:"case_id"`
	Question   string      `json:"question"`
	Verifier   string      `json:"verifier"`
	Intent     TaskIntent  `json:"intent"`
	Difficulty Difficulty  `json:"difficulty"`
	Lineage    CaseLineage `json:"lineage"`
}

// SplitSizes reports per-split case counts for the synthesis report.
type SplitSizes struct {
	Train int `json:"train"`
	Val   int `json:"val"`
	Test  int `json:"test"`
}

// SynthesisReport summarizes one synthesis pass for artifact output.
type SynthesisReport struct {
	RequestedSize     int        `json:"requested_size"`
	FinalSize         int        `json:"final_size"`
	Intents           []string   `json:"intents"`
	LabelsSampled     []string   `json:"labels_sampled"`
	RelationsSampled  []string   `json:"relations_sampled"`
	HardNegativeCount int        `json:"hard_negative_count"`
	SplitSizes        SplitSizes `json:"split_sizes"`
}

// SyntheticDataset bundles the generated cases with their train/val/test
// partition. Splits are disjoint and jointly cover Cases whenever at least
// three cases exist.
type SyntheticDataset struct {
	Name           string          `json:"name"`
	TaskDesc       string          `json:"task_desc"`
	Cases          []SyntheticCase `json:"cases"`
	TrainCases     []SyntheticCase `json:"train_cases"`
	ValCases       []SyntheticCase `json:"val_cases"`
	TestCases      []SyntheticCase `json:"test_cases"`
	SchemaSnapshot SchemaSnapshot  `json:"schema_snapshot"`
	Report         SynthesisReport `json:"synthesis_report"`
}
