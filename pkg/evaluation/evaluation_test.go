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
package evaluation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/jacquard/pkg/executor"
	"github.com/teradata-labs/jacquard/pkg/judges"
	"github.com/teradata-labs/jacquard/pkg/types"
)

// fixedJudge returns a scripted score per case id and reports vote side data.
type fixedJudge struct {
	scores map[string]float64
}

func (j *fixedJudge) Name() string { return "fixed" }

func (j *fixedJudge) Judge(_ context.Context, question, _, _, _ string) (float64, string) {
	if score, ok := j.scores[question]; ok {
		return score, "scripted verdict"
	}
	return 0.9, "scripted verdict"
}

func (j *fixedJudge) LastVotes() []types.JudgeVote {
	return []types.JudgeVote{{JudgeName: "fixed", Score: 0.9, Rationale: "scripted verdict"}}
}

func (j *fixedJudge) LastAgreement() float64 { return 0.8 }

func (j *fixedJudge) LastConfidence() float64 { return 0.85 }

func evalBlueprint() *types.WorkflowBlueprint {
	return &types.WorkflowBlueprint{
		BlueprintID: "bp-eval",
		AppName:     "demo",
		TaskDesc:    "graph QA",
		Topology:    types.TopologyLinear,
		Tools:       []types.ToolSpec{{Name: "CypherExecutor"}},
		Actions:     []types.ActionSpec{{Name: "act", Description: "step", Tools: []string{"CypherExecutor"}}},
	}
}

func evalCases(questions ...string) []types.SyntheticCase {
	out := make([]types.SyntheticCase, 0, len(questions))
	for i, q := range questions {
		out = append(out, types.SyntheticCase{
			CaseID:   "case-" + string(rune('1'+i)),
			Question: q,
			Verifier: "expected",
		})
	}
	return out
}

func TestEvaluateOverwritesScoresAndAttachesVotes(t *testing.T) {
	judge := &fixedJudge{}
	evaluator := NewEvaluator(executor.NewMockExecutor(), judge, "", nil)

	summary := evaluator.Evaluate(context.Background(), evalBlueprint(), evalCases("q one", "q two"), types.SplitTrain)
	require.Len(t, summary.CaseResults, 2)
	for _, result := range summary.CaseResults {
		assert.Equal(t, 0.9, result.Score)
		assert.Equal(t, "scripted verdict", result.Rationale)
		assert.Equal(t, 0.85, result.Confidence)
		require.Len(t, result.JudgeVotes, 1)
	}
	assert.Equal(t, 0.9, summary.MeanScore)
	assert.Equal(t, 0.8, summary.JudgeAgreement)
	assert.Equal(t, types.SplitTrain, summary.Split)
	assert.Equal(t, "stable candidate, preserve current constraints and evidence discipline", summary.Reflection)
}

func TestEvaluateReflectionListsFailures(t *testing.T) {
	judge := &fixedJudge{scores: map[string]float64{
		"bad one": 0.2,
		"bad two": 0.4,
	}}
	evaluator := NewEvaluator(executor.NewMockExecutor(), judge, "", nil)

	summary := evaluator.Evaluate(context.Background(), evalBlueprint(), evalCases("bad one", "bad two", "fine"), types.SplitVal)
	assert.Contains(t, summary.Reflection, "case-1 score=0.20")
	assert.Contains(t, summary.Reflection, "case-2 score=0.40")
	assert.Contains(t, summary.Reflection, "Improve prompt grounding, prune noisy tools, and add reviewer checks.")
	assert.Greater(t, summary.ScoreStd, 0.0)
}

func TestEvaluateEmptyCases(t *testing.T) {
	evaluator := NewEvaluator(executor.NewMockExecutor(), &fixedJudge{}, "", nil)
	summary := evaluator.Evaluate(context.Background(), evalBlueprint(), nil, types.SplitTest)
	assert.Zero(t, summary.TotalCases)
	assert.Zero(t, summary.MeanScore)
	assert.Equal(t, "no evaluation results", summary.Reflection)
}

func TestEvaluateWithEnsembleJudge(t *testing.T) {
	ensemble := judges.NewDefaultEnsemble(nil)
	evaluator := NewEvaluator(executor.NewMockExecutor(), ensemble, "", nil)

	summary := evaluator.Evaluate(context.Background(), evalBlueprint(), evalCases("List accounts"), types.SplitTrain)
	require.Len(t, summary.CaseResults, 1)
	assert.Len(t, summary.CaseResults[0].JudgeVotes, 2)
	assert.Greater(t, summary.JudgeAgreement, 0.0)
}

func execution(caseID, output, rationale string, score float64) types.CaseExecution {
	return types.CaseExecution{CaseID: caseID, Output: output, Rationale: rationale, Score: score}
}

func summaryOf(results ...types.CaseExecution) types.EvaluationSummary {
	return types.EvaluationSummary{CaseResults: results}
}

func TestBuildFailureTaxonomyClassification(t *testing.T) {
	auto := summaryOf(
		execution("c1", "RUNTIME_ERROR[TIMEOUT]: slow", "", 0.1),
		execution("c2", "picked the wrong tool", "", 0.3),
		execution("c3", "skipped a subtask", "", 0.35),
		execution("c4", "answer differs from reference", "", 0.5),
		execution("c5", "looks plausible", "shallow single hop", 0.2),
		execution("c6", "fine", "", 0.9),
	)
	manual := summaryOf(
		execution("c1", "good", "solid", 0.9),
		execution("c2", "good", "solid", 0.6),
		execution("c3", "good", "solid", 0.6),
		execution("c4", "good", "solid", 0.65),
		execution("c5", "good", "solid", 0.9),
		execution("c6", "good", "solid", 0.9),
	)

	taxonomy := BuildFailureTaxonomy(auto, manual, 0.0, DefaultTaxonomyRules())
	assert.Equal(t, 5, taxonomy.TotalFailures)
	assert.Equal(t, 1, taxonomy.ByCategory["execution_grounding"])
	assert.Equal(t, 1, taxonomy.ByCategory["tool_selection"])
	// c3 keyword plus c5 manual-gap fallback.
	assert.Equal(t, 2, taxonomy.ByCategory["decomposition"])
	assert.Equal(t, 1, taxonomy.ByCategory["verifier_mismatch"])
	assert.Equal(t, 0, taxonomy.ByCategory["other"])

	// Sorted by descending score gap: c1 (0.8) first.
	require.NotEmpty(t, taxonomy.CaseItems)
	assert.Equal(t, "c1", taxonomy.CaseItems[0].CaseID)
	assert.Equal(t, "severe", taxonomy.CaseItems[0].Severity)
}

func TestBuildFailureTaxonomySeverityThresholds(t *testing.T) {
	rules := DefaultTaxonomyRules()
	assert.Equal(t, "severe", classifyFailureSeverity(0.5, 0.9, rules))
	// Floating point sums stay on the right side of the threshold.
	assert.Equal(t, "moderate", classifyFailureSeverity(0.1, 0.3, rules))
	assert.Equal(t, "mild", classifyFailureSeverity(0.5, 0.6, rules))
}

func TestBuildFailureTaxonomyMarginFilters(t *testing.T) {
	auto := summaryOf(execution("c1", "output", "", 0.5))
	manual := summaryOf(execution("c1", "output", "", 0.6))

	strict := BuildFailureTaxonomy(auto, manual, 0.0, DefaultTaxonomyRules())
	assert.Equal(t, 1, strict.TotalFailures)

	lenient := BuildFailureTaxonomy(auto, manual, 0.15, DefaultTaxonomyRules())
	assert.Zero(t, lenient.TotalFailures)
	assert.Equal(t, 0.0, lenient.ByCategoryRatio["other"])
}

func TestLoadTaxonomyRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	payload, err := json.Marshal(DefaultTaxonomyRules())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	rules, err := LoadTaxonomyRules(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTaxonomyRules(), rules)
}

func TestLoadTaxonomyRulesRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	missingField := filepath.Join(dir, "missing.json")
	require.NoError(t, os.WriteFile(missingField, []byte(`{"execution_keywords": ["x"]}`), 0o644))
	_, err := LoadTaxonomyRules(missingField)
	assert.ErrorContains(t, err, "invalid taxonomy rules")

	inverted := DefaultTaxonomyRules()
	inverted.ModerateGapThreshold = 0.5
	payload, marshalErr := json.Marshal(inverted)
	require.NoError(t, marshalErr)
	invertedPath := filepath.Join(dir, "inverted.json")
	require.NoError(t, os.WriteFile(invertedPath, payload, 0o644))
	_, err = LoadTaxonomyRules(invertedPath)
	assert.ErrorContains(t, err, "exceeds severe_gap_threshold")
}
