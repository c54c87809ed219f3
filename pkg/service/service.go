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

// Package service orchestrates dataset synthesis, blueprint search,
// evaluation and persistence into complete optimization runs.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/jacquard/pkg/artifacts"
	"github.com/teradata-labs/jacquard/pkg/config"
	"github.com/teradata-labs/jacquard/pkg/evaluation"
	"github.com/teradata-labs/jacquard/pkg/executor"
	"github.com/teradata-labs/jacquard/pkg/judges"
	"github.com/teradata-labs/jacquard/pkg/optimize"
	"github.com/teradata-labs/jacquard/pkg/storage"
	"github.com/teradata-labs/jacquard/pkg/synthesis"
	"github.com/teradata-labs/jacquard/pkg/types"
	"github.com/teradata-labs/jacquard/pkg/workflow"
)

// Artifact index types written per run.
const (
	ArtifactWorkflowYAML          = "workflow_yaml"
	ArtifactDatasetReport         = "dataset_report"
	ArtifactRoundTraces           = "round_traces"
	ArtifactPromptVariants        = "prompt_variants"
	ArtifactRunSummary            = "run_summary"
	ArtifactManualParityReport    = "manual_parity_report"
	ArtifactManualParityCaseItems = "manual_parity_case_report"
)

// OptimizeRequest is one optimization invocation. AgentName is already
// tenant-scoped by the caller.
type OptimizeRequest struct {
	AgentName   string
	TaskDesc    string
	DatasetSize int
	Profile     string
	Seed        int64
}

// OptimizationReport is the optimize response payload.
type OptimizationReport struct {
	RunID          string   `json:"run_id"`
	Profile        string   `json:"profile"`
	AgentName      string   `json:"agent_name"`
	Version        int      `json:"version"`
	BlueprintID    string   `json:"blueprint_id"`
	TrainScore     float64  `json:"train_score"`
	ValScore       *float64 `json:"val_score,omitempty"`
	TestScore      *float64 `json:"test_score,omitempty"`
	ArtifactPath   string   `json:"artifact_path"`
	EvaluatedCases int      `json:"evaluated_cases"`
}

// Service wires the optimization pipeline to storage and the artifact store.
type Service struct {
	cfg           *config.Config
	store         *storage.Store
	artifactStore artifacts.Store
	exec          executor.Executor
	judgeProvider judges.Provider
	taxonomyRules evaluation.TaxonomyRules
	logger        *zap.Logger
	renderer      *workflow.Renderer
	loader        *workflow.Loader
	freshSeed     func() int64
}

func New(
	cfg *config.Config,
	store *storage.Store,
	artifactStore artifacts.Store,
	exec executor.Executor,
	judgeProvider judges.Provider,
	logger *zap.Logger,
) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := evaluation.DefaultTaxonomyRules()
	if cfg.FailureTaxonomyRulesFile != "" {
		loaded, err := evaluation.LoadTaxonomyRules(cfg.FailureTaxonomyRulesFile)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy rules: %w", err)
		}
		rules = loaded
	}
	return &Service{
		cfg:           cfg,
		store:         store,
		artifactStore: artifactStore,
		exec:          exec,
		judgeProvider: judgeProvider,
		taxonomyRules: rules,
		logger:        logger,
		renderer:      workflow.NewRenderer(),
		loader:        workflow.NewLoader(),
		freshSeed:     func() int64 { return time.Now().UnixNano() },
	}, nil
}

// optimizeOutcome keeps the intermediate state that manual parity reuses.
type optimizeOutcome struct {
	report    OptimizationReport
	dataset   *types.SyntheticDataset
	result    *optimize.SearchResult
	runID     string
	runPrefix string
	knobs     optimize.OptimizationKnobs
	judge     judges.Judge
}

// Optimize runs the full procedure: synthesize, search, materialize
// artifacts and persist the run in one transaction.
func (s *Service) Optimize(ctx context.Context, req OptimizeRequest) (OptimizationReport, error) {
	outcome, err := s.optimize(ctx, req)
	if err != nil {
		return OptimizationReport{}, err
	}
	return outcome.report, nil
}

func (s *Service) optimize(ctx context.Context, req OptimizeRequest) (*optimizeOutcome, error) {
	if err := s.validateOptimizeRequest(&req); err != nil {
		return nil, err
	}

	runID := "run-" + randomHex(12)
	knobs := optimize.ResolveKnobs(optimize.ExperimentProfile(req.Profile))
	seed := s.resolveSeed(req.Seed, knobs)

	synthOpts := synthesis.DefaultOptions()
	synthOpts.RandomSeed = seed
	synthOpts.EnableParaphrase = knobs.EnableParaphrase
	synthOpts.EnableHardNegatives = knobs.EnableHardNegatives
	synthOpts.TrainRatio = s.cfg.Search.TrainRatio
	synthOpts.ValRatio = s.cfg.Search.ValRatio
	synthOpts.TestRatio = s.cfg.Search.TestRatio
	synthesizer, err := synthesis.NewDynamicSynthesizer(s.exec, synthOpts)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrValidation)
	}

	size := req.DatasetSize
	if size == 0 {
		size = s.cfg.Search.DefaultDatasetSize
	}
	dataset := synthesizer.Synthesize(req.TaskDesc, req.AgentName, size)

	catalog := s.exec.FetchToolCatalog()
	intents := optimize.InferCaseIntents(dataset.Cases)
	selector := optimize.NewIntentAwareToolSelector()
	topK := len(catalog)
	if topK > 6 {
		topK = 6
	}
	if topK < 2 {
		topK = 2
	}
	selectedTools := selector.Rank(req.TaskDesc, intents, catalog, topK, nil)

	root := optimize.BuildInitialBlueprint(req.AgentName, req.TaskDesc, selectedTools, types.TopologyPlannerWorkerReviewer)

	searchCfg := knobs.SearchConfig()
	searchCfg.Rounds = s.cfg.Search.MaxSearchRounds
	searchCfg.ExpansionsPerRound = s.cfg.Search.MaxExpansionsPerRound
	promptOptimizer := optimize.NewCandidatePromptOptimizer(s.cfg.Search.MaxPromptCandidates)
	judge := s.buildJudge(knobs)
	evaluator := evaluation.NewEvaluator(s.exec, judge, "", s.logger)

	engine := optimize.NewSearchEngine(evaluator, promptOptimizer, selector, searchCfg, s.logger)
	result, err := engine.Optimize(ctx, root, dataset, intents, catalog)
	if err != nil {
		return nil, fmt.Errorf("blueprint search: %w", err)
	}

	best := result.BestBlueprint
	if best.Metadata == nil {
		best.Metadata = make(map[string]string, 3)
	}
	best.Metadata["profile"] = string(knobs.Profile)
	best.Metadata["seed"] = strconv.FormatInt(seed, 10)
	best.Metadata["run_id"] = runID

	runPrefix := path.Join("agents", req.AgentName, runID)
	manifest, err := s.renderer.Render(best)
	if err != nil {
		return nil, fmt.Errorf("render workflow manifest: %w", err)
	}
	workflowStored, err := s.artifactStore.Put(path.Join(runPrefix, "workflow.yml"), manifest)
	if err != nil {
		return nil, fmt.Errorf("write workflow artifact: %v: %w", err, ErrPersistence)
	}

	report := s.buildReport(runID, knobs, req, best, result)
	report.ArtifactPath = workflowStored.URI

	entries := []storage.ArtifactIndexEntry{indexEntry(ArtifactWorkflowYAML, workflowStored)}
	jsonArtifacts := []struct {
		artifactType string
		fileName     string
		payload      any
	}{
		{ArtifactDatasetReport, "dataset_report.json", datasetReport(dataset)},
		{ArtifactRoundTraces, "round_traces.json", result.RoundTraces},
		{ArtifactPromptVariants, "prompt_variants.json", result.PromptVariants},
		{ArtifactRunSummary, "run_summary.json", runSummary(report, req.TaskDesc, result)},
	}
	for _, artifact := range jsonArtifacts {
		payload, err := json.MarshalIndent(artifact.payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", artifact.artifactType, err)
		}
		stored, err := s.artifactStore.Put(path.Join(runPrefix, artifact.fileName), payload)
		if err != nil {
			return nil, fmt.Errorf("write %s artifact: %v: %w", artifact.artifactType, err, ErrPersistence)
		}
		entries = append(entries, indexEntry(artifact.artifactType, stored))
	}

	datasetReportJSON, err := json.Marshal(dataset.Report)
	if err != nil {
		return nil, fmt.Errorf("encode dataset report: %w", err)
	}
	record, err := s.store.SaveOptimizationResult(ctx,
		storage.OptimizationRunRecord{
			RunID:             runID,
			AgentName:         req.AgentName,
			TaskDesc:          req.TaskDesc,
			DatasetReportJSON: string(datasetReportJSON),
			BestBlueprintID:   best.BlueprintID,
			BestTrainScore:    result.BestEvaluation.MeanScore,
			BestValScore:      summaryScore(result.ValidationEvaluation),
			BestTestScore:     summaryScore(result.TestEvaluation),
			ArtifactDir:       runPrefix,
		},
		result.RoundTraces,
		entries,
		storage.VersionInput{
			AgentName:        req.AgentName,
			Blueprint:        best,
			Evaluation:       result.BestEvaluation,
			ArtifactPath:     workflowStored.URI,
			WorkflowSnapshot: string(manifest),
			Lifecycle:        types.LifecycleValidated,
			Notes:            "optimized by jacquard",
			RunID:            runID,
		})
	if err != nil {
		return nil, fmt.Errorf("persist optimization run: %v: %w", err, ErrPersistence)
	}
	report.Version = record.Version

	s.logger.Info("optimization run completed",
		zap.String("run_id", runID),
		zap.String("agent", req.AgentName),
		zap.String("profile", string(knobs.Profile)),
		zap.Int("version", record.Version),
		zap.Float64("train_score", report.TrainScore))

	return &optimizeOutcome{
		report:    report,
		dataset:   dataset,
		result:    result,
		runID:     runID,
		runPrefix: runPrefix,
		knobs:     knobs,
		judge:     judge,
	}, nil
}

func (s *Service) validateOptimizeRequest(req *OptimizeRequest) error {
	if strings.TrimSpace(req.AgentName) == "" {
		return fmt.Errorf("agent_name must not be empty: %w", ErrValidation)
	}
	if strings.TrimSpace(req.TaskDesc) == "" {
		return fmt.Errorf("task_desc must not be empty: %w", ErrValidation)
	}
	if req.DatasetSize != 0 && (req.DatasetSize < 6 || req.DatasetSize > 30) {
		return fmt.Errorf("dataset_size must be in [6, 30], got %d: %w", req.DatasetSize, ErrValidation)
	}
	if req.Seed != 0 && (req.Seed < 1 || req.Seed > 1_000_000) {
		return fmt.Errorf("seed must be in [1, 1000000], got %d: %w", req.Seed, ErrValidation)
	}
	if req.Profile == "" {
		req.Profile = string(optimize.ProfileFullSystem)
	}
	return nil
}

func (s *Service) resolveSeed(seed int64, knobs optimize.OptimizationKnobs) int64 {
	if seed != 0 {
		return seed
	}
	if !knobs.DynamicDataset {
		return 7
	}
	return s.freshSeed()
}

func (s *Service) buildJudge(knobs optimize.OptimizationKnobs) judges.Judge {
	if knobs.UseEnsembleJudge {
		return judges.NewDefaultEnsemble(s.judgeProvider)
	}
	if s.judgeProvider != nil {
		return judges.NewLLMJudge(s.judgeProvider)
	}
	return judges.NewLexicalJudge()
}

func (s *Service) buildReport(runID string, knobs optimize.OptimizationKnobs, req OptimizeRequest, best *types.WorkflowBlueprint, result *optimize.SearchResult) OptimizationReport {
	return OptimizationReport{
		RunID:          runID,
		Profile:        string(knobs.Profile),
		AgentName:      req.AgentName,
		BlueprintID:    best.BlueprintID,
		TrainScore:     result.BestEvaluation.MeanScore,
		ValScore:       summaryScore(result.ValidationEvaluation),
		TestScore:      summaryScore(result.TestEvaluation),
		EvaluatedCases: result.BestEvaluation.TotalCases,
	}
}

// ListVersions returns the agent's versions, newest first.
func (s *Service) ListVersions(ctx context.Context, agentName string) ([]types.AgentVersionRecord, error) {
	versions, err := s.store.ListVersions(ctx, agentName)
	if err != nil {
		return nil, fmt.Errorf("list versions: %v: %w", err, ErrPersistence)
	}
	return versions, nil
}

// Deploy promotes a version to DEPLOYED, demoting any other deployed
// version of the same agent.
func (s *Service) Deploy(ctx context.Context, agentName string, version int) (types.AgentVersionRecord, error) {
	return s.updateLifecycle(ctx, agentName, version)
}

// Rollback re-deploys a previous version. It is the same lifecycle
// transition as Deploy applied to the older version.
func (s *Service) Rollback(ctx context.Context, agentName string, version int) (types.AgentVersionRecord, error) {
	return s.updateLifecycle(ctx, agentName, version)
}

func (s *Service) updateLifecycle(ctx context.Context, agentName string, version int) (types.AgentVersionRecord, error) {
	record, err := s.store.UpdateLifecycle(ctx, agentName, version, types.LifecycleDeployed)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.AgentVersionRecord{}, fmt.Errorf("agent version %s@%d: %w", agentName, version, ErrNotFound)
		}
		return types.AgentVersionRecord{}, fmt.Errorf("update lifecycle: %v: %w", err, ErrPersistence)
	}
	return record, nil
}

type runSummaryPayload struct {
	RunID              string             `json:"run_id"`
	Profile            string             `json:"profile"`
	AgentName          string             `json:"agent_name"`
	TaskDesc           string             `json:"task_desc"`
	BestBlueprintID    string             `json:"best_blueprint_id"`
	TrainScore         float64            `json:"train_score"`
	ValScore           *float64           `json:"val_score,omitempty"`
	TestScore          *float64           `json:"test_score,omitempty"`
	EvaluatedCases     int                `json:"evaluated_cases"`
	MutationTrace      []string           `json:"mutation_trace"`
	HistoricalToolGain map[string]float64 `json:"historical_tool_gain"`
}

func runSummary(report OptimizationReport, taskDesc string, result *optimize.SearchResult) runSummaryPayload {
	return runSummaryPayload{
		RunID:              report.RunID,
		Profile:            report.Profile,
		AgentName:          report.AgentName,
		TaskDesc:           taskDesc,
		BestBlueprintID:    report.BlueprintID,
		TrainScore:         report.TrainScore,
		ValScore:           report.ValScore,
		TestScore:          report.TestScore,
		EvaluatedCases:     report.EvaluatedCases,
		MutationTrace:      result.BestBlueprint.MutationTrace,
		HistoricalToolGain: result.HistoricalToolGain,
	}
}

type datasetReportPayload struct {
	Name           string                `json:"name"`
	TaskDesc       string                `json:"task_desc"`
	SchemaSnapshot types.SchemaSnapshot  `json:"schema_snapshot"`
	Report         types.SynthesisReport `json:"synthesis_report"`
	Cases          []types.SyntheticCase `json:"cases"`
}

func datasetReport(dataset *types.SyntheticDataset) datasetReportPayload {
	return datasetReportPayload{
		Name:           dataset.Name,
		TaskDesc:       dataset.TaskDesc,
		SchemaSnapshot: dataset.SchemaSnapshot,
		Report:         dataset.Report,
		Cases:          dataset.Cases,
	}
}

func indexEntry(artifactType string, stored artifacts.Stored) storage.ArtifactIndexEntry {
	return storage.ArtifactIndexEntry{
		ArtifactType: artifactType,
		URI:          stored.URI,
		Checksum:     stored.Checksum,
		SizeBytes:    int64(stored.SizeBytes),
	}
}

func summaryScore(summary *types.EvaluationSummary) *float64 {
	if summary == nil {
		return nil
	}
	score := summary.MeanScore
	return &score
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
