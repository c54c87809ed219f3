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
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// Evaluator scores one blueprint against a case slice on a named split.
type Evaluator interface {
	Evaluate(ctx context.Context, blueprint *types.WorkflowBlueprint, cases []types.SyntheticCase, split types.Split) types.EvaluationSummary
}

// VariantSource is implemented by prompt optimizers that keep a run-scoped
// variant registry.
type VariantSource interface {
	Variants() []types.PromptVariant
}

// SearchResult is the optimization output handed to orchestration.
type SearchResult struct {
	BestBlueprint        *types.WorkflowBlueprint
	BestEvaluation       types.EvaluationSummary
	ValidationEvaluation *types.EvaluationSummary
	TestEvaluation       *types.EvaluationSummary
	History              []types.EvaluationSummary
	RoundTraces          []types.SearchRoundTrace
	PromptVariants       []types.PromptVariant
	HistoricalToolGain   map[string]float64
}

// SearchEngine runs MCTS-style co-optimization of prompts, tool bindings and
// topology. Rewards backpropagate train-split objectives; model selection
// tracks a separate validation objective when holdout is on.
type SearchEngine struct {
	evaluator       Evaluator
	promptOptimizer PromptOptimizer
	toolSelector    ToolSelector
	config          types.SearchConfig
	logger          *zap.Logger
}

func NewSearchEngine(
	evaluator Evaluator,
	promptOptimizer PromptOptimizer,
	toolSelector ToolSelector,
	config types.SearchConfig,
	logger *zap.Logger,
) *SearchEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchEngine{
		evaluator:       evaluator,
		promptOptimizer: promptOptimizer,
		toolSelector:    toolSelector,
		config:          config,
		logger:          logger,
	}
}

// Optimize searches from rootBlueprint and returns the best blueprint by
// validation objective, with the full evaluation history and round traces.
func (e *SearchEngine) Optimize(
	ctx context.Context,
	rootBlueprint *types.WorkflowBlueprint,
	dataset *types.SyntheticDataset,
	intents []types.TaskIntent,
	toolCatalog []types.ToolSpec,
) (*SearchResult, error) {
	trainCases := sliceCases(firstNonEmpty(dataset.TrainCases, dataset.Cases), e.config.EvaluationBudget)
	var valCases, testCases []types.SyntheticCase
	if e.config.UseHoldout {
		valCases = sliceCases(firstNonEmpty(dataset.ValCases, dataset.Cases), e.config.ValidationBudget)
		testCases = sliceCases(firstNonEmpty(dataset.TestCases, dataset.Cases), e.config.TestBudget)
	} else {
		valCases = trainCases
	}
	if len(trainCases) == 0 {
		return nil, fmt.Errorf("train cases must not be empty")
	}

	nodes := make(map[string]*types.SearchNode)
	parentMap := make(map[string]string)
	evalTrain := make(map[string]types.EvaluationSummary)
	evalVal := make(map[string]types.EvaluationSummary)

	history := make([]types.EvaluationSummary, 0)
	roundTraces := make([]types.SearchRoundTrace, 0)
	historicalToolGain := make(map[string]float64)

	rootNode := &types.SearchNode{NodeID: "node-" + randomHex(10), Blueprint: rootBlueprint}
	nodes[rootNode.NodeID] = rootNode

	rootTrainEval := e.evaluator.Evaluate(ctx, rootBlueprint, trainCases, types.SplitTrain)
	rootValEval := rootTrainEval
	if e.config.UseHoldout {
		rootValEval = e.evaluator.Evaluate(ctx, rootBlueprint, valCases, types.SplitVal)
		history = append(history, rootTrainEval, rootValEval)
	} else {
		history = append(history, rootTrainEval)
	}
	evalTrain[rootBlueprint.BlueprintID] = rootTrainEval
	evalVal[rootBlueprint.BlueprintID] = rootValEval

	rootObjective := e.objective(rootTrainEval, rootBlueprint)
	e.backpropagate(rootNode.NodeID, rootObjective, nodes, parentMap)

	bestByTrainEval := rootTrainEval
	bestByTrainObjective := rootObjective

	bestByValBlueprint := rootBlueprint
	bestByValEval := rootValEval
	bestByValObjective := e.modelSelectionObjective(rootTrainEval, rootValEval, rootBlueprint)

	noImproveRounds := 0
	traceIdx := 0

	for roundIdx := 1; roundIdx <= e.config.Rounds; roundIdx++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search interrupted: %w", err)
		}

		selected := e.selectNode(nodes)
		selectedTrainEval := evalTrain[selected.Blueprint.BlueprintID]
		selectedTrainObjective := e.objective(selectedTrainEval, selected.Blueprint)

		roundBestBefore := bestByValObjective

		for expansionIdx := 0; expansionIdx < e.config.ExpansionsPerRound; expansionIdx++ {
			candidate, mutation := e.mutate(
				selected.Blueprint, selectedTrainEval, intents, toolCatalog,
				historicalToolGain, roundIdx, expansionIdx,
			)
			candidate.ParentID = selected.Blueprint.BlueprintID
			candidate.MutationTrace = append(candidate.MutationTrace, mutation)

			child := &types.SearchNode{
				NodeID:    "node-" + randomHex(10),
				Blueprint: candidate,
				ParentID:  selected.NodeID,
			}
			nodes[child.NodeID] = child
			parentMap[child.NodeID] = selected.NodeID
			selected.ChildrenIDs = append(selected.ChildrenIDs, child.NodeID)

			childTrainEval := e.evaluator.Evaluate(ctx, candidate, trainCases, types.SplitTrain)
			childValEval := childTrainEval
			if e.config.UseHoldout {
				childValEval = e.evaluator.Evaluate(ctx, candidate, valCases, types.SplitVal)
				history = append(history, childTrainEval, childValEval)
			} else {
				history = append(history, childTrainEval)
			}
			evalTrain[candidate.BlueprintID] = childTrainEval
			evalVal[candidate.BlueprintID] = childValEval

			childTrainObjective := e.objective(childTrainEval, candidate)
			childValObjective := e.modelSelectionObjective(childTrainEval, childValEval, candidate)
			e.backpropagate(child.NodeID, childTrainObjective, nodes, parentMap)

			if childTrainObjective > bestByTrainObjective {
				bestByTrainObjective = childTrainObjective
				bestByTrainEval = childTrainEval
			}
			if childValObjective > bestByValObjective {
				bestByValObjective = childValObjective
				bestByValBlueprint = candidate
				bestByValEval = childValEval
			}

			improvement := childTrainObjective - selectedTrainObjective
			e.updateToolGain(mutation, improvement, historicalToolGain)

			generalizationGap := 0.0
			if e.config.UseHoldout {
				generalizationGap = generalizationGap2(childTrainEval, childValEval)
			}
			traceIdx++
			roundTraces = append(roundTraces, types.SearchRoundTrace{
				RoundNum:            traceIdx,
				SelectedNodeID:      selected.NodeID,
				SelectedBlueprintID: selected.Blueprint.BlueprintID,
				Mutation:            mutation,
				TrainObjective:      childTrainObjective,
				ValObjective:        childValObjective,
				BestTrainObjective:  bestByTrainObjective,
				BestValObjective:    bestByValObjective,
				Improvement:         improvement,
				Regret:              math.Max(0.0, bestByValObjective-childValObjective),
				Uncertainty:         uncertainty(childValEval),
				GeneralizationGap:   generalizationGap,
			})
		}

		roundImprovement := bestByValObjective - roundBestBefore
		if roundImprovement < e.config.MinImprovement {
			noImproveRounds++
		} else {
			noImproveRounds = 0
		}
		e.logger.Debug("search round complete",
			zap.Int("round", roundIdx),
			zap.Float64("best_val_objective", bestByValObjective),
			zap.Int("no_improve_rounds", noImproveRounds))

		if noImproveRounds >= e.config.Patience {
			break
		}
	}

	var validationEval *types.EvaluationSummary
	if e.config.UseHoldout {
		v := bestByValEval
		validationEval = &v
	}
	var testEval *types.EvaluationSummary
	if e.config.UseHoldout && len(testCases) > 0 {
		t := e.evaluator.Evaluate(ctx, bestByValBlueprint, testCases, types.SplitTest)
		history = append(history, t)
		testEval = &t
	}

	var promptVariants []types.PromptVariant
	if source, ok := e.promptOptimizer.(VariantSource); ok {
		promptVariants = source.Variants()
	}

	return &SearchResult{
		BestBlueprint:        bestByValBlueprint,
		BestEvaluation:       bestByTrainEval,
		ValidationEvaluation: validationEval,
		TestEvaluation:       testEval,
		History:              history,
		RoundTraces:          roundTraces,
		PromptVariants:       promptVariants,
		HistoricalToolGain:   historicalToolGain,
	}, nil
}

// selectNode applies UCB1 with a novelty bonus; unvisited nodes win outright.
func (e *SearchEngine) selectNode(nodes map[string]*types.SearchNode) *types.SearchNode {
	totalVisits := 1
	for _, node := range nodes {
		totalVisits += node.Visits
	}

	var best *types.SearchNode
	bestUCB := math.Inf(-1)
	for _, node := range nodes {
		if node.Visits == 0 {
			return node
		}
		exploration := e.config.ExplorationWeight * math.Sqrt(math.Log(float64(totalVisits))/float64(node.Visits))
		novelty := e.config.NoveltyWeight * noveltyBonus(node)
		score := node.MeanValue() + exploration + novelty
		if score > bestUCB {
			bestUCB = score
			best = node
		}
	}
	return best
}

func noveltyBonus(node *types.SearchNode) float64 {
	unique := make(map[string]struct{}, len(node.Blueprint.MutationTrace))
	for _, mutation := range node.Blueprint.MutationTrace {
		unique[mutation] = struct{}{}
	}
	topologyBonus := map[types.TopologyPattern]float64{
		types.TopologyLinear:                0.1,
		types.TopologyPlannerWorkerReviewer: 0.4,
		types.TopologyRouterParallel:        0.6,
	}[node.Blueprint.Topology]
	return float64(len(unique)) + topologyBonus
}

func (e *SearchEngine) mutate(
	parent *types.WorkflowBlueprint,
	parentEval types.EvaluationSummary,
	intents []types.TaskIntent,
	toolCatalog []types.ToolSpec,
	historicalToolGain map[string]float64,
	roundIdx, expansionIdx int,
) (*types.WorkflowBlueprint, string) {
	modes := make([]string, 0, 3)
	if e.config.EnablePromptMutation {
		modes = append(modes, "prompt")
	}
	if e.config.EnableToolMutation && len(toolCatalog) > 0 {
		modes = append(modes, "tool")
	}
	if e.config.EnableTopologyMutation {
		modes = append(modes, "topology")
	}

	if len(modes) == 0 {
		candidate := parent.Clone()
		candidate.BlueprintID = "bp-" + randomHex(12)
		return candidate, "mutation:disabled"
	}

	mode := modes[(roundIdx+expansionIdx)%len(modes)]
	if e.config.EnableFailureAwareMutation && e.config.EnablePromptMutation && mode != "prompt" && hasFailures(parentEval) {
		mode = "prompt"
	}

	switch mode {
	case "prompt":
		return e.mutatePrompt(parent, parentEval)
	case "tool":
		gainSource := map[string]float64{}
		if e.config.EnableToolHistoricalGain {
			gainSource = historicalToolGain
		}
		return e.mutateTools(parent, intents, toolCatalog, gainSource)
	default:
		return e.mutateTopology(parent)
	}
}

func hasFailures(summary types.EvaluationSummary) bool {
	for _, result := range summary.CaseResults {
		if result.Score < 0.6 {
			return true
		}
	}
	return false
}

func (e *SearchEngine) mutatePrompt(parent *types.WorkflowBlueprint, parentEval types.EvaluationSummary) (*types.WorkflowBlueprint, string) {
	candidate := parent.Clone()
	if len(candidate.Experts) == 0 || len(candidate.Experts[0].Operators) == 0 {
		candidate.BlueprintID = "bp-" + randomHex(12)
		return candidate, "prompt:skip-empty"
	}

	failures := make([]types.CaseExecution, 0)
	for _, result := range parentEval.CaseResults {
		if result.Score < 0.6 {
			failures = append(failures, result)
		}
	}

	firstOperator := &candidate.Experts[0].Operators[0]
	firstOperator.Instruction = e.promptOptimizer.Optimize(firstOperator.Instruction, failures, candidate.TaskDesc)

	candidate.BlueprintID = "bp-" + randomHex(12)
	return candidate, fmt.Sprintf("prompt:optimize(%s)", firstOperator.Name)
}

func (e *SearchEngine) mutateTools(
	parent *types.WorkflowBlueprint,
	intents []types.TaskIntent,
	toolCatalog []types.ToolSpec,
	historicalToolGain map[string]float64,
) (*types.WorkflowBlueprint, string) {
	candidate := parent.Clone()

	ranked := e.toolSelector.Rank(candidate.TaskDesc, intents, toolCatalog, len(candidate.Tools)+1, historicalToolGain)

	existing := make(map[string]struct{}, len(candidate.Tools))
	for _, tool := range candidate.Tools {
		existing[tool.Name] = struct{}{}
	}
	for _, tool := range ranked {
		if _, ok := existing[tool.Name]; ok {
			continue
		}
		candidate.Tools = append(candidate.Tools, tool)
		actionName := "use_" + strings.ToLower(tool.Name)
		candidate.Actions = append(candidate.Actions, types.ActionSpec{
			Name:        actionName,
			Description: fmt.Sprintf("Use %s to ground graph reasoning.", tool.Name),
			Tools:       []string{tool.Name},
		})
	attach:
		for i := range candidate.Experts {
			for j := range candidate.Experts[i].Operators {
				op := &candidate.Experts[i].Operators[j]
				if !containsString(op.Actions, actionName) {
					op.Actions = append(op.Actions, actionName)
					break attach
				}
			}
		}
		candidate.BlueprintID = "bp-" + randomHex(12)
		return candidate, fmt.Sprintf("tool:add(%s)", tool.Name)
	}

	// Nothing new to add: drop the last non-leader action instead.
	leader := make(map[string]struct{}, len(candidate.LeaderActions))
	for _, name := range candidate.LeaderActions {
		leader[name] = struct{}{}
	}
	var removed string
	for i := len(candidate.Actions) - 1; i >= 0; i-- {
		if _, ok := leader[candidate.Actions[i].Name]; !ok {
			removed = candidate.Actions[i].Name
			break
		}
	}
	if removed != "" {
		kept := make([]types.ActionSpec, 0, len(candidate.Actions)-1)
		for _, action := range candidate.Actions {
			if action.Name != removed {
				kept = append(kept, action)
			}
		}
		candidate.Actions = kept
		for i := range candidate.Experts {
			for j := range candidate.Experts[i].Operators {
				op := &candidate.Experts[i].Operators[j]
				filtered := make([]string, 0, len(op.Actions))
				for _, name := range op.Actions {
					if name != removed {
						filtered = append(filtered, name)
					}
				}
				op.Actions = filtered
			}
		}
		candidate.BlueprintID = "bp-" + randomHex(12)
		return candidate, fmt.Sprintf("tool:remove(%s)", removed)
	}

	candidate.BlueprintID = "bp-" + randomHex(12)
	return candidate, "tool:noop"
}

func (e *SearchEngine) mutateTopology(parent *types.WorkflowBlueprint) (*types.WorkflowBlueprint, string) {
	candidate := parent.Clone()
	order := []types.TopologyPattern{
		types.TopologyLinear,
		types.TopologyPlannerWorkerReviewer,
		types.TopologyRouterParallel,
	}
	current := 0
	for idx, topology := range order {
		if topology == candidate.Topology {
			current = idx
			break
		}
	}
	candidate.Topology = order[(current+1)%len(order)]

	for i := range candidate.Experts {
		var seedActions []string
		if len(candidate.Experts[i].Operators) > 0 {
			seedActions = candidate.Experts[i].Operators[0].Actions
		}
		candidate.Experts[i].Operators = BuildTopologyOperators(candidate.Topology, seedActions)
	}

	candidate.BlueprintID = "bp-" + randomHex(12)
	return candidate, fmt.Sprintf("topology:switch(%s)", candidate.Topology)
}

func (e *SearchEngine) objective(summary types.EvaluationSummary, blueprint *types.WorkflowBlueprint) float64 {
	return summary.MeanScore +
		e.config.ConfidenceWeight*summary.MeanConfidence() -
		e.config.LatencyPenalty*(summary.MeanLatencyMS/1000.0) -
		e.config.CostPenalty*summary.MeanTokenCost -
		e.config.ComplexityPenalty*(float64(blueprint.Complexity())/10.0) -
		e.config.UncertaintyPenalty*uncertainty(summary)
}

func (e *SearchEngine) modelSelectionObjective(trainSummary, valSummary types.EvaluationSummary, blueprint *types.WorkflowBlueprint) float64 {
	base := e.objective(valSummary, blueprint)
	if !e.config.UseHoldout {
		return base
	}
	return base - e.config.GeneralizationPenalty*generalizationGap2(trainSummary, valSummary)
}

func uncertainty(summary types.EvaluationSummary) float64 {
	agreement := math.Max(0.0, math.Min(1.0, summary.JudgeAgreement))
	return (1.0 - agreement) + math.Max(0.0, summary.ScoreStd)
}

func generalizationGap2(trainSummary, valSummary types.EvaluationSummary) float64 {
	return math.Max(0.0, trainSummary.MeanScore-valSummary.MeanScore)
}

func (e *SearchEngine) backpropagate(nodeID string, reward float64, nodes map[string]*types.SearchNode, parentMap map[string]string) {
	cursor := nodeID
	for cursor != "" {
		node := nodes[cursor]
		node.Visits++
		node.ValueSum += reward
		node.BestScore = math.Max(node.BestScore, reward)
		cursor = parentMap[cursor]
	}
}

// updateToolGain keeps an exponential moving average of the train-objective
// improvement attributable to each tool:add mutation.
func (e *SearchEngine) updateToolGain(mutation string, improvement float64, historicalToolGain map[string]float64) {
	if !e.config.EnableToolHistoricalGain {
		return
	}
	const prefix = "tool:add("
	if !strings.HasPrefix(mutation, prefix) || !strings.HasSuffix(mutation, ")") {
		return
	}
	toolName := mutation[len(prefix) : len(mutation)-1]
	historicalToolGain[toolName] = 0.7*historicalToolGain[toolName] + 0.3*improvement
}

func sliceCases(cases []types.SyntheticCase, budget int) []types.SyntheticCase {
	if budget < 1 {
		budget = 1
	}
	if budget > len(cases) {
		budget = len(cases)
	}
	return append([]types.SyntheticCase(nil), cases[:budget]...)
}

func firstNonEmpty(primary, fallback []types.SyntheticCase) []types.SyntheticCase {
	if len(primary) > 0 {
		return primary
	}
	return fallback
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
