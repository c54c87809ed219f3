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
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/jacquard/pkg/evaluation"
	"github.com/teradata-labs/jacquard/pkg/storage"
	"github.com/teradata-labs/jacquard/pkg/types"
)

// ManualParityRequest benchmarks an auto-optimized blueprint against a
// human-authored one. ManualBlueprintPath is resolved under the configured
// allow-list root.
type ManualParityRequest struct {
	AgentName           string
	TaskDesc            string
	ManualBlueprintPath string
	DatasetSize         int
	Profile             string
	Seed                int64
	ParityMargin        float64
}

// ManualParityReport is the parity benchmark response payload.
type ManualParityReport struct {
	RunID               string                     `json:"run_id"`
	Profile             string                     `json:"profile"`
	Split               string                     `json:"split"`
	AutoScore           float64                    `json:"auto_score"`
	ManualScore         float64                    `json:"manual_score"`
	ScoreDelta          float64                    `json:"score_delta"`
	ParityMargin        float64                    `json:"parity_margin"`
	ParityAchieved      bool                       `json:"parity_achieved"`
	AutoArtifactPath    string                     `json:"auto_artifact_path"`
	ManualBlueprintPath string                     `json:"manual_blueprint_path"`
	EvaluatedCases      int                        `json:"evaluated_cases"`
	FailureTaxonomy     evaluation.FailureTaxonomy `json:"failure_taxonomy"`
}

type parityCaseRow struct {
	CaseID       string  `json:"case_id"`
	Question     string  `json:"question"`
	AutoScore    float64 `json:"auto_score"`
	AutoOutput   string  `json:"auto_output"`
	ManualScore  float64 `json:"manual_score"`
	ManualOutput string  `json:"manual_output"`
	ScoreGap     float64 `json:"score_gap"`
}

// BenchmarkManualParity optimizes the agent, evaluates the manual blueprint
// on the holdout split, and reports the score delta with a failure taxonomy.
func (s *Service) BenchmarkManualParity(ctx context.Context, req ManualParityRequest) (ManualParityReport, error) {
	if req.ParityMargin < 0 || req.ParityMargin > 0.2 {
		return ManualParityReport{}, fmt.Errorf("parity_margin must be in [0, 0.2], got %v: %w", req.ParityMargin, ErrValidation)
	}
	manualPath, err := s.resolveManualBlueprintPath(req.ManualBlueprintPath)
	if err != nil {
		return ManualParityReport{}, err
	}
	manualBlueprint, err := s.loader.Load(manualPath, req.AgentName+"-manual", req.TaskDesc)
	if err != nil {
		return ManualParityReport{}, fmt.Errorf("%v: %w", err, ErrValidation)
	}

	outcome, err := s.optimize(ctx, OptimizeRequest{
		AgentName:   req.AgentName,
		TaskDesc:    req.TaskDesc,
		DatasetSize: req.DatasetSize,
		Profile:     req.Profile,
		Seed:        req.Seed,
	})
	if err != nil {
		return ManualParityReport{}, err
	}

	split, autoEval, cases := s.paritySplit(outcome)
	evaluator := evaluation.NewEvaluator(s.exec, outcome.judge, "", s.logger)
	manualEval := evaluator.Evaluate(ctx, manualBlueprint, cases, split)

	scoreDelta := autoEval.MeanScore - manualEval.MeanScore
	taxonomy := evaluation.BuildFailureTaxonomy(autoEval, manualEval, req.ParityMargin, s.taxonomyRules)

	report := ManualParityReport{
		RunID:               outcome.runID,
		Profile:             outcome.report.Profile,
		Split:               string(split),
		AutoScore:           autoEval.MeanScore,
		ManualScore:         manualEval.MeanScore,
		ScoreDelta:          scoreDelta,
		ParityMargin:        req.ParityMargin,
		ParityAchieved:      autoEval.MeanScore+req.ParityMargin >= manualEval.MeanScore,
		AutoArtifactPath:    outcome.report.ArtifactPath,
		ManualBlueprintPath: manualPath,
		EvaluatedCases:      manualEval.TotalCases,
		FailureTaxonomy:     taxonomy,
	}

	if err := s.writeParityArtifacts(ctx, outcome, report, autoEval, manualEval); err != nil {
		return ManualParityReport{}, err
	}
	s.logger.Info("manual parity benchmark completed",
		zap.String("run_id", outcome.runID),
		zap.String("split", report.Split),
		zap.Float64("score_delta", scoreDelta),
		zap.Bool("parity_achieved", report.ParityAchieved))
	return report, nil
}

// resolveManualBlueprintPath confines the path to the allow-list root and
// requires a regular file.
func (s *Service) resolveManualBlueprintPath(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("manual_blueprint_path must not be empty: %w", ErrValidation)
	}
	root, err := filepath.Abs(s.cfg.ManualBlueprintsDir)
	if err != nil {
		return "", fmt.Errorf("resolve MANUAL_BLUEPRINTS_DIR: %w", err)
	}
	candidate := raw
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)
	if candidate != root && !strings.HasPrefix(candidate, root+string(filepath.Separator)) {
		return "", fmt.Errorf("manual blueprint path must stay under MANUAL_BLUEPRINTS_DIR: %w", ErrValidation)
	}
	info, err := os.Stat(candidate)
	if err != nil {
		return "", fmt.Errorf("manual blueprint file not found: %s: %w", raw, ErrValidation)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("manual blueprint path is not a file: %s: %w", raw, ErrValidation)
	}
	return candidate, nil
}

// paritySplit picks the strongest available holdout: test, then val, then
// train, falling back when a split was not evaluated.
func (s *Service) paritySplit(outcome *optimizeOutcome) (types.Split, types.EvaluationSummary, []types.SyntheticCase) {
	cfg := outcome.knobs.SearchConfig()
	result := outcome.result
	dataset := outcome.dataset

	if result.TestEvaluation != nil && len(dataset.TestCases) > 0 {
		return types.SplitTest, *result.TestEvaluation, headCases(dataset.TestCases, cfg.TestBudget)
	}
	if result.ValidationEvaluation != nil && len(dataset.ValCases) > 0 {
		return types.SplitVal, *result.ValidationEvaluation, headCases(dataset.ValCases, cfg.ValidationBudget)
	}
	cases := dataset.TrainCases
	if len(cases) == 0 {
		cases = dataset.Cases
	}
	return types.SplitTrain, result.BestEvaluation, headCases(cases, cfg.EvaluationBudget)
}

func headCases(cases []types.SyntheticCase, budget int) []types.SyntheticCase {
	if budget < 1 {
		budget = 1
	}
	if len(cases) <= budget {
		return cases
	}
	return cases[:budget]
}

func (s *Service) writeParityArtifacts(ctx context.Context, outcome *optimizeOutcome, report ManualParityReport, autoEval, manualEval types.EvaluationSummary) error {
	caseRows := joinParityCases(autoEval, manualEval)

	entries := make([]storage.ArtifactIndexEntry, 0, 2)
	for _, artifact := range []struct {
		artifactType string
		fileName     string
		payload      any
	}{
		{ArtifactManualParityReport, "manual_parity_report.json", report},
		{ArtifactManualParityCaseItems, "manual_parity_case_report.json", caseRows},
	} {
		payload, err := json.MarshalIndent(artifact.payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", artifact.artifactType, err)
		}
		stored, err := s.artifactStore.Put(path.Join(outcome.runPrefix, artifact.fileName), payload)
		if err != nil {
			return fmt.Errorf("write %s artifact: %v: %w", artifact.artifactType, err, ErrPersistence)
		}
		entries = append(entries, indexEntry(artifact.artifactType, stored))
	}
	if err := s.store.AppendArtifacts(ctx, outcome.runID, entries); err != nil {
		return fmt.Errorf("index parity artifacts: %v: %w", err, ErrPersistence)
	}
	return nil
}

func joinParityCases(autoEval, manualEval types.EvaluationSummary) []parityCaseRow {
	manualByID := make(map[string]types.CaseExecution, len(manualEval.CaseResults))
	for _, result := range manualEval.CaseResults {
		manualByID[result.CaseID] = result
	}
	rows := make([]parityCaseRow, 0, len(autoEval.CaseResults))
	for _, auto := range autoEval.CaseResults {
		manual, ok := manualByID[auto.CaseID]
		if !ok {
			continue
		}
		rows = append(rows, parityCaseRow{
			CaseID:       auto.CaseID,
			Question:     auto.Question,
			AutoScore:    auto.Score,
			AutoOutput:   auto.Output,
			ManualScore:  manual.Score,
			ManualOutput: manual.Output,
			ScoreGap:     manual.Score - auto.Score,
		})
	}
	return rows
}
