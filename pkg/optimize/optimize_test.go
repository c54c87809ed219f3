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
package optimize

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/jacquard/pkg/types"
)

func sampleCatalog() []types.ToolSpec {
	return []types.ToolSpec{
		{Name: "CypherExecutor", Description: "Execute Cypher query", Tags: []string{"query", "cypher"}},
		{Name: "PageRankExecutor", Description: "Run PageRank analytics", Tags: []string{"analysis", "algorithm", "rank"}},
		{Name: "KnowledgeBaseRetriever", Description: "Retrieve external knowledge", Tags: []string{"qa", "retrieval"}},
	}
}

func TestToolSelectorRanksByIntentCoverage(t *testing.T) {
	selector := NewIntentAwareToolSelector()

	ranked := selector.Rank("run a cypher query", []types.TaskIntent{types.IntentQuery}, sampleCatalog(), 3, nil)
	require.Len(t, ranked, 3)
	assert.Equal(t, "CypherExecutor", ranked[0].Name)

	ranked = selector.Rank("rank communities", []types.TaskIntent{types.IntentAnalytics}, sampleCatalog(), 3, nil)
	assert.Equal(t, "PageRankExecutor", ranked[0].Name)
}

func TestToolSelectorHistoricalGainBreaksTies(t *testing.T) {
	selector := NewIntentAwareToolSelector()
	catalog := []types.ToolSpec{
		{Name: "AlphaTool", Description: "generic helper"},
		{Name: "BetaTool", Description: "generic helper"},
	}

	// Equal lexical score: name ascends.
	ranked := selector.Rank("task", []types.TaskIntent{types.IntentQuery}, catalog, 2, nil)
	assert.Equal(t, "AlphaTool", ranked[0].Name)

	// Historical gain promotes BetaTool.
	ranked = selector.Rank("task", []types.TaskIntent{types.IntentQuery}, catalog, 2,
		map[string]float64{"BetaTool": 1.0})
	assert.Equal(t, "BetaTool", ranked[0].Name)
}

func TestToolSelectorTopKFloor(t *testing.T) {
	selector := NewIntentAwareToolSelector()
	ranked := selector.Rank("task", []types.TaskIntent{types.IntentQuery}, sampleCatalog(), 0, nil)
	assert.Len(t, ranked, 1)
}

func TestPromptOptimizerCandidates(t *testing.T) {
	optimizer := NewCandidatePromptOptimizer(4)
	failures := []types.CaseExecution{
		{CaseID: "c1", Score: 0.2, Rationale: "missing evidence for claim"},
	}

	candidates := optimizer.GenerateCandidates("Answer the question.", failures, "graph task")
	require.Len(t, candidates, 4)
	assert.Equal(t, "Answer the question.", candidates[0])
	assert.Contains(t, candidates[1], "[Refined Constraints]")
	assert.Contains(t, candidates[1], "missing evidence for claim")
	assert.Contains(t, candidates[2], "[Output Discipline]")
	assert.Contains(t, candidates[3], "[Safety Checks]")
}

func TestPromptOptimizerPicksBestAndRegisters(t *testing.T) {
	optimizer := NewCandidatePromptOptimizer(5)
	best := optimizer.Optimize("Answer the question.", nil, "graph task")

	// The refined-constraints candidate carries both evidence and unknown
	// bonuses, beating the bare original.
	assert.NotEqual(t, "Answer the question.", best)
	variants := optimizer.Variants()
	require.Len(t, variants, 5)
	for _, variant := range variants {
		assert.Regexp(t, `^pv-[0-9a-f]{12}$`, variant.VariantID)
		assert.GreaterOrEqual(t, variant.Score, 0.0)
		assert.LessOrEqual(t, variant.Score, 1.0)
	}
}

func TestResolveKnobs(t *testing.T) {
	full := ResolveKnobs(ProfileFullSystem)
	assert.True(t, full.EnableTopologyMutation)
	assert.True(t, full.UseEnsembleJudge)
	assert.False(t, full.EnableFailureAwareMutation)

	baseline := ResolveKnobs(ProfileBaselineStaticPromptOnly)
	assert.False(t, baseline.DynamicDataset)
	assert.False(t, baseline.EnableToolMutation)
	assert.True(t, baseline.EnablePromptMutation)
	assert.True(t, baseline.UseHoldout)
	assert.Zero(t, baseline.UncertaintyPenalty)

	noHoldout := ResolveKnobs(ProfileAblationNoHoldout)
	assert.False(t, noHoldout.UseHoldout)
	assert.Equal(t, 0.12, noHoldout.UncertaintyPenalty)

	idea := ResolveKnobs(ProfileIdeaFailureAware)
	assert.True(t, idea.EnableFailureAwareMutation)

	unknown := ResolveKnobs(ExperimentProfile("mystery"))
	assert.Equal(t, ProfileFullSystem, unknown.Profile)
}

func TestBuildTopologyOperators(t *testing.T) {
	seed := []string{"use_cypherexecutor"}
	assert.Len(t, BuildTopologyOperators(types.TopologyLinear, seed), 1)
	pwr := BuildTopologyOperators(types.TopologyPlannerWorkerReviewer, seed)
	require.Len(t, pwr, 3)
	assert.Equal(t, "planner", pwr[0].Name)
	assert.Equal(t, "reviewer", pwr[2].Name)
	router := BuildTopologyOperators(types.TopologyRouterParallel, seed)
	require.Len(t, router, 4)
	assert.Equal(t, "router", router[0].Name)
	assert.Equal(t, "synthesizer", router[3].Name)
}

func TestBuildInitialBlueprint(t *testing.T) {
	bp := BuildInitialBlueprint("demo", "graph task", sampleCatalog(), types.TopologyPlannerWorkerReviewer)
	require.NoError(t, bp.Validate())
	assert.Len(t, bp.Actions, 3)
	assert.Equal(t, []string{"use_cypherexecutor", "use_pagerankexecutor"}, bp.LeaderActions)
	require.Len(t, bp.Experts, 1)
	assert.Len(t, bp.Experts[0].Operators, 3)
}

func TestInferCaseIntents(t *testing.T) {
	cases := []types.SyntheticCase{
		{Intent: types.IntentQuery},
		{Intent: types.IntentQuery},
		{Intent: types.IntentAnalytics},
		{Intent: types.IntentQA},
		{Intent: types.IntentAnalytics},
		{Intent: types.IntentAnalytics},
	}
	assert.Equal(t, []types.TaskIntent{types.IntentAnalytics, types.IntentQuery}, InferCaseIntents(cases))
	assert.Equal(t, []types.TaskIntent{types.IntentQuery}, InferCaseIntents(nil))
}

// stubEvaluator rewards tool count so tool:add mutations improve the
// objective deterministically.
type stubEvaluator struct {
	evaluations int
}

func (s *stubEvaluator) Evaluate(_ context.Context, blueprint *types.WorkflowBlueprint, cases []types.SyntheticCase, split types.Split) types.EvaluationSummary {
	s.evaluations++
	score := 0.5 + 0.05*float64(len(blueprint.Tools))
	results := make([]types.CaseExecution, 0, len(cases))
	for _, c := range cases {
		results = append(results, types.CaseExecution{
			CaseID:     c.CaseID,
			Score:      score,
			Confidence: 0.7,
			Rationale:  "stub verdict",
		})
	}
	return types.EvaluationSummary{
		BlueprintID:    blueprint.BlueprintID,
		MeanScore:      score,
		TotalCases:     len(cases),
		JudgeAgreement: 1.0,
		Split:          split,
		CaseResults:    results,
	}
}

func searchDataset() *types.SyntheticDataset {
	mk := func(prefix string, n int) []types.SyntheticCase {
		out := make([]types.SyntheticCase, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, types.SyntheticCase{
				CaseID:   prefix + string(rune('a'+i)),
				Question: "q",
				Intent:   types.IntentQuery,
			})
		}
		return out
	}
	ds := &types.SyntheticDataset{
		TrainCases: mk("train-", 4),
		ValCases:   mk("val-", 2),
		TestCases:  mk("test-", 2),
	}
	ds.Cases = append(append(append([]types.SyntheticCase(nil), ds.TrainCases...), ds.ValCases...), ds.TestCases...)
	return ds
}

func searchConfigForTest() types.SearchConfig {
	cfg := types.DefaultSearchConfig()
	cfg.Rounds = 3
	cfg.ExpansionsPerRound = 2
	cfg.Patience = 10
	return cfg
}

func TestSearchEngineOptimize(t *testing.T) {
	evaluator := &stubEvaluator{}
	engine := NewSearchEngine(evaluator, NewCandidatePromptOptimizer(4), NewIntentAwareToolSelector(), searchConfigForTest(), nil)

	root := BuildInitialBlueprint("demo", "cypher query task", sampleCatalog()[:1], types.TopologyPlannerWorkerReviewer)
	result, err := engine.Optimize(context.Background(), root, searchDataset(), []types.TaskIntent{types.IntentQuery}, sampleCatalog())
	require.NoError(t, err)

	assert.Len(t, result.RoundTraces, 6)
	for idx, trace := range result.RoundTraces {
		assert.Equal(t, idx+1, trace.RoundNum)
		assert.NotEmpty(t, trace.Mutation)
	}
	require.NotNil(t, result.ValidationEvaluation)
	require.NotNil(t, result.TestEvaluation)
	assert.Equal(t, types.SplitTest, result.TestEvaluation.Split)
	assert.NotEmpty(t, result.PromptVariants)

	// Best blueprint must descend from the root with a fresh id and trace.
	assert.NotEmpty(t, result.BestBlueprint.BlueprintID)
	if result.BestBlueprint.BlueprintID != root.BlueprintID {
		assert.NotEmpty(t, result.BestBlueprint.MutationTrace)
	}
}

func TestSearchEngineBestObjectivesAreMonotone(t *testing.T) {
	cfg := searchConfigForTest()
	cfg.Rounds = 4

	engine := NewSearchEngine(&stubEvaluator{}, NewCandidatePromptOptimizer(4), NewIntentAwareToolSelector(), cfg, nil)
	root := BuildInitialBlueprint("demo", "cypher query task", sampleCatalog()[:1], types.TopologyPlannerWorkerReviewer)

	result, err := engine.Optimize(context.Background(), root, searchDataset(), []types.TaskIntent{types.IntentQuery}, sampleCatalog())
	require.NoError(t, err)
	require.NotEmpty(t, result.RoundTraces)

	prevTrain := result.RoundTraces[0].BestTrainObjective
	prevVal := result.RoundTraces[0].BestValObjective
	for _, trace := range result.RoundTraces {
		assert.GreaterOrEqual(t, trace.BestTrainObjective, prevTrain)
		assert.GreaterOrEqual(t, trace.BestValObjective, prevVal)
		assert.GreaterOrEqual(t, trace.BestTrainObjective, trace.TrainObjective)
		assert.GreaterOrEqual(t, trace.BestValObjective, trace.ValObjective)
		prevTrain = trace.BestTrainObjective
		prevVal = trace.BestValObjective
	}
}

// flatEvaluator scores every blueprint identically so no round can improve.
type flatEvaluator struct{}

func (flatEvaluator) Evaluate(_ context.Context, blueprint *types.WorkflowBlueprint, cases []types.SyntheticCase, split types.Split) types.EvaluationSummary {
	results := make([]types.CaseExecution, 0, len(cases))
	for _, c := range cases {
		results = append(results, types.CaseExecution{
			CaseID:     c.CaseID,
			Score:      0.5,
			Confidence: 0.7,
			Rationale:  "stub verdict",
		})
	}
	return types.EvaluationSummary{
		BlueprintID:    blueprint.BlueprintID,
		MeanScore:      0.5,
		TotalCases:     len(cases),
		JudgeAgreement: 1.0,
		Split:          split,
		CaseResults:    results,
	}
}

func TestSearchEngineStopsEarlyWithoutImprovement(t *testing.T) {
	cfg := searchConfigForTest()
	cfg.Rounds = 5
	cfg.ExpansionsPerRound = 2
	cfg.Patience = 1
	cfg.MinImprovement = 0.5

	engine := NewSearchEngine(flatEvaluator{}, NewCandidatePromptOptimizer(4), NewIntentAwareToolSelector(), cfg, nil)
	root := BuildInitialBlueprint("demo", "cypher query task", sampleCatalog()[:1], types.TopologyPlannerWorkerReviewer)

	result, err := engine.Optimize(context.Background(), root, searchDataset(), []types.TaskIntent{types.IntentQuery}, sampleCatalog())
	require.NoError(t, err)

	// Flat scores exhaust patience after the first round.
	assert.Len(t, result.RoundTraces, cfg.ExpansionsPerRound)
	assert.Less(t, len(result.RoundTraces), cfg.Rounds*cfg.ExpansionsPerRound)
}

func TestSearchEngineRecordsToolGain(t *testing.T) {
	cfg := searchConfigForTest()
	cfg.EnablePromptMutation = false
	cfg.EnableTopologyMutation = false
	cfg.Rounds = 1
	cfg.ExpansionsPerRound = 1

	engine := NewSearchEngine(&stubEvaluator{}, NewCandidatePromptOptimizer(4), NewIntentAwareToolSelector(), cfg, nil)
	root := BuildInitialBlueprint("demo", "cypher query task", sampleCatalog()[:1], types.TopologyPlannerWorkerReviewer)

	result, err := engine.Optimize(context.Background(), root, searchDataset(), []types.TaskIntent{types.IntentQuery}, sampleCatalog())
	require.NoError(t, err)
	require.Len(t, result.RoundTraces, 1)
	assert.True(t, strings.HasPrefix(result.RoundTraces[0].Mutation, "tool:add("))
	assert.NotEmpty(t, result.HistoricalToolGain)
	for _, gain := range result.HistoricalToolGain {
		// 0.3 of the observed improvement on the first add.
		assert.Greater(t, gain, 0.0)
	}
}

func TestSearchEngineDisabledMutations(t *testing.T) {
	cfg := searchConfigForTest()
	cfg.EnablePromptMutation = false
	cfg.EnableToolMutation = false
	cfg.EnableTopologyMutation = false
	cfg.Rounds = 1
	cfg.ExpansionsPerRound = 1

	engine := NewSearchEngine(&stubEvaluator{}, NewCandidatePromptOptimizer(4), NewIntentAwareToolSelector(), cfg, nil)
	root := BuildInitialBlueprint("demo", "task", sampleCatalog()[:1], types.TopologyLinear)

	result, err := engine.Optimize(context.Background(), root, searchDataset(), []types.TaskIntent{types.IntentQuery}, sampleCatalog())
	require.NoError(t, err)
	assert.Equal(t, "mutation:disabled", result.RoundTraces[0].Mutation)
}

func TestSearchEngineNoHoldout(t *testing.T) {
	cfg := searchConfigForTest()
	cfg.UseHoldout = false
	cfg.Rounds = 1

	engine := NewSearchEngine(&stubEvaluator{}, NewCandidatePromptOptimizer(4), NewIntentAwareToolSelector(), cfg, nil)
	root := BuildInitialBlueprint("demo", "task", sampleCatalog()[:1], types.TopologyLinear)

	result, err := engine.Optimize(context.Background(), root, searchDataset(), []types.TaskIntent{types.IntentQuery}, sampleCatalog())
	require.NoError(t, err)
	assert.Nil(t, result.ValidationEvaluation)
	assert.Nil(t, result.TestEvaluation)
}

func TestSearchEngineEmptyTrainCases(t *testing.T) {
	engine := NewSearchEngine(&stubEvaluator{}, NewCandidatePromptOptimizer(4), NewIntentAwareToolSelector(), searchConfigForTest(), nil)
	root := BuildInitialBlueprint("demo", "task", sampleCatalog()[:1], types.TopologyLinear)

	_, err := engine.Optimize(context.Background(), root, &types.SyntheticDataset{}, []types.TaskIntent{types.IntentQuery}, nil)
	assert.ErrorContains(t, err, "train cases must not be empty")
}
