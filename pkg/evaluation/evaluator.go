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

// Package evaluation scores workflow blueprints against case sets and
// classifies the failures that remain relative to a manual baseline.
package evaluation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/jacquard/pkg/executor"
	"github.com/teradata-labs/jacquard/pkg/judges"
	"github.com/teradata-labs/jacquard/pkg/types"
)

// Evaluator runs each case through the executor, rescores the output with the
// judge, and aggregates the results into an EvaluationSummary with a textual
// reflection for the prompt optimizer.
type Evaluator struct {
	executor executor.Executor
	judge    judges.Judge
	rubric   string
	logger   *zap.Logger
}

func NewEvaluator(exec executor.Executor, judge judges.Judge, rubric string, logger *zap.Logger) *Evaluator {
	if rubric == "" {
		rubric = judges.DefaultRubric
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{executor: exec, judge: judge, rubric: rubric, logger: logger}
}

// Evaluate scores the blueprint on the given cases. The judge's verdict
// overwrites the executor's placeholder score and rationale on every case.
func (e *Evaluator) Evaluate(ctx context.Context, blueprint *types.WorkflowBlueprint, cases []types.SyntheticCase, split types.Split) types.EvaluationSummary {
	results := make([]types.CaseExecution, 0, len(cases))
	agreements := make([]float64, 0, len(cases))

	for _, c := range cases {
		execution := e.executor.Execute(ctx, blueprint, c)
		score, rationale := e.judge.Judge(ctx, c.Question, c.Verifier, execution.Output, e.rubric)
		execution.Score = score
		execution.Rationale = rationale

		if reporter, ok := e.judge.(judges.VoteReporter); ok {
			execution.JudgeVotes = reporter.LastVotes()
			execution.Confidence = reporter.LastConfidence()
			agreements = append(agreements, reporter.LastAgreement())
		}
		results = append(results, execution)
	}

	if len(results) == 0 {
		return types.EvaluationSummary{
			BlueprintID: blueprint.BlueprintID,
			Reflection:  "no evaluation results",
			Split:       split,
		}
	}

	scores := make([]float64, 0, len(results))
	meanScore, meanLatency, meanCost := 0.0, 0.0, 0.0
	for _, result := range results {
		scores = append(scores, result.Score)
		meanScore += result.Score
		meanLatency += result.LatencyMS
		meanCost += result.TokenCost
	}
	n := float64(len(results))
	meanScore /= n
	meanLatency /= n
	meanCost /= n

	agreement := 1.0
	if len(agreements) > 0 {
		total := 0.0
		for _, a := range agreements {
			total += a
		}
		agreement = total / float64(len(agreements))
	}

	summary := types.EvaluationSummary{
		BlueprintID:    blueprint.BlueprintID,
		MeanScore:      meanScore,
		MeanLatencyMS:  meanLatency,
		MeanTokenCost:  meanCost,
		TotalCases:     len(results),
		Reflection:     reflect(results),
		JudgeAgreement: agreement,
		ScoreStd:       pstdev(scores, meanScore),
		Split:          split,
		CaseResults:    results,
	}
	e.logger.Debug("evaluation complete",
		zap.String("blueprint_id", blueprint.BlueprintID),
		zap.String("split", string(split)),
		zap.Float64("mean_score", meanScore),
		zap.Int("cases", len(results)))
	return summary
}

// reflect summarizes failures into feedback for the next prompt mutation.
func reflect(results []types.CaseExecution) string {
	failed := make([]types.CaseExecution, 0)
	for _, result := range results {
		if result.Score < 0.6 {
			failed = append(failed, result)
		}
	}
	if len(failed) == 0 {
		return "stable candidate, preserve current constraints and evidence discipline"
	}

	snippets := make([]string, 0, 4)
	for i, c := range failed {
		if i == 3 {
			break
		}
		snippets = append(snippets, fmt.Sprintf("%s score=%.2f reason=%s", c.CaseID, c.Score, c.Rationale))
	}
	snippets = append(snippets, "Improve prompt grounding, prune noisy tools, and add reviewer checks.")
	return strings.Join(snippets, " | ")
}

// pstdev is the population standard deviation.
func pstdev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	total := 0.0
	for _, value := range values {
		d := value - mean
		total += d * d
	}
	return math.Sqrt(total / float64(len(values)))
}
