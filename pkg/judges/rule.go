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
package judges

import (
	"context"
	"strings"
)

// RuleJudge scores by containment checks against the reference answer. When
// no reference exists it falls back to weak heuristics on the prediction.
type RuleJudge struct{}

// NewRuleJudge returns the rule-based judge.
func NewRuleJudge() *RuleJudge { return &RuleJudge{} }

func (j *RuleJudge) Name() string { return "rule" }

func (j *RuleJudge) Judge(_ context.Context, _, expected, prediction, _ string) (float64, string) {
	normalizedExpected := strings.ToLower(strings.TrimSpace(expected))
	normalizedPrediction := strings.ToLower(strings.TrimSpace(prediction))

	if normalizedExpected != "" && normalizedExpected != "unknown" {
		if strings.Contains(normalizedPrediction, normalizedExpected) {
			return 0.95, "prediction contains expected answer"
		}
		if strings.Contains(normalizedExpected, normalizedPrediction) && normalizedPrediction != "" {
			return 0.75, "expected answer contains prediction"
		}
		return 0.20, "prediction does not match expected answer"
	}

	if strings.Contains(normalizedPrediction, "unknown") {
		return 0.65, "prediction acknowledges unknown answer"
	}
	if len(strings.Fields(normalizedPrediction)) < 4 {
		return 0.30, "prediction too short without reference"
	}
	return 0.55, "plausible prediction without reference"
}
