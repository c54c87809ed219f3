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

// Split names one partition of a synthetic dataset.
type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
	SplitTest  Split = "test"
)

// JudgeVote is one judge's verdict on a single case.
type JudgeVote struct {
	JudgeName string  `json:"judge_name"`
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// CaseExecution captures the full outcome of running and scoring one case.
// Score and Rationale are overwritten by the judge after execution.
type CaseExecution struct {
	CaseID     string      `json:"case_id"`
	Question   string      `json:"question"`
	Expected   string      `json:"expected"`
	Output     string      `json:"output"`
	Score      float64     `json:"score"`
	Rationale  string      `json:"rationale"`
	LatencyMS  float64     `json:"latency_ms"`
	TokenCost  float64     `json:"token_cost"`
	Confidence float64     `json:"confidence"`
	JudgeVotes []JudgeVote `json:"judge_votes,omitempty"`
}

// EvaluationSummary aggregates case executions for one blueprint on one split.
type EvaluationSummary struct {
	BlueprintID    string          `json:"blueprint_id"`
	MeanScore      float64         `json:"mean_score"`
	MeanLatencyMS  float64         `json:"mean_latency_ms"`
	MeanTokenCost  float64         `json:"mean_token_cost"`
	TotalCases     int             `json:"total_cases"`
	Reflection     string          `json:"reflection"`
	JudgeAgreement float64         `json:"judge_agreement"`
	ScoreStd       float64         `json:"score_std"`
	Split          Split           `json:"split"`
	CaseResults    []CaseExecution `json:"case_results"`
}

// MeanConfidence averages per-case confidence, zero for an empty summary.
func (s *EvaluationSummary) MeanConfidence() float64 {
	if len(s.CaseResults) == 0 {
		return 0.0
	}
	total := 0.0
	for _, result := range s.CaseResults {
		total += result.Confidence
	}
	return total / float64(len(s.CaseResults))
}
