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

// Package judges scores execution outputs with rule, lexical, and LLM judges
// and aggregates them into a weighted ensemble verdict.
package judges

import (
	"context"
	"math"
	"strings"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// DefaultRubric is used when the caller does not supply one.
const DefaultRubric = "Score by factual correctness, graph-domain precision, and task completion."

// Judge assigns a score in [0,1] plus a rationale to a prediction. Failures
// degrade to a low score with an explanatory rationale rather than an error,
// so one bad judge never halts an evaluation.
type Judge interface {
	Name() string
	Judge(ctx context.Context, question, expected, prediction, rubric string) (float64, string)
}

// VoteReporter is implemented by judges that expose per-vote side data from
// their most recent call.
type VoteReporter interface {
	LastVotes() []types.JudgeVote
	LastAgreement() float64
	LastConfidence() float64
}

func clamp01(value float64) float64 {
	return math.Max(0.0, math.Min(1.0, value))
}

func tokenSet(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, token := range strings.Fields(text) {
		tokens[token] = struct{}{}
	}
	return tokens
}
