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
	"fmt"
	"math"
	"strings"
)

// LexicalJudge scores by token overlap with the reference answer, or with the
// question itself under weak supervision.
type LexicalJudge struct{}

// NewLexicalJudge returns the lexical overlap judge.
func NewLexicalJudge() *LexicalJudge { return &LexicalJudge{} }

func (j *LexicalJudge) Name() string { return "lexical" }

func (j *LexicalJudge) Judge(_ context.Context, question, expected, prediction, _ string) (float64, string) {
	normalizedExpected := strings.ToLower(strings.TrimSpace(expected))
	normalizedPrediction := strings.ToLower(strings.TrimSpace(prediction))
	if normalizedPrediction == "" {
		return 0.0, "empty prediction"
	}

	if normalizedExpected != "" && normalizedExpected != "unknown" {
		if normalizedExpected == normalizedPrediction {
			return 1.0, "exact match"
		}
		overlap := overlapRatio(normalizedExpected, normalizedPrediction)
		score := math.Max(0.1, math.Min(0.8, overlap))
		return score, fmt.Sprintf("token overlap=%.2f", overlap)
	}

	overlap := overlapRatio(strings.ToLower(question), normalizedPrediction)
	return math.Max(0.1, math.Min(0.8, overlap)), "weak-supervision overlap"
}

func overlapRatio(reference, prediction string) float64 {
	referenceTokens := tokenSet(reference)
	if len(referenceTokens) == 0 {
		return 0.0
	}
	predictionTokens := tokenSet(prediction)
	shared := 0
	for token := range referenceTokens {
		if _, ok := predictionTokens[token]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(referenceTokens))
}
