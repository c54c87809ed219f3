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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// FailureCategories and FailureSeverities fix the taxonomy axes and their
// report ordering.
var (
	FailureCategories = []string{
		"tool_selection",
		"decomposition",
		"execution_grounding",
		"verifier_mismatch",
		"other",
	}
	FailureSeverities = []string{"mild", "moderate", "severe"}
)

// TaxonomyRules hold the classification keywords and gap thresholds. Keyword
// order matters: the first match wins.
type TaxonomyRules struct {
	ExecutionKeywords     []string `json:"execution_keywords"`
	ToolKeywords          []string `json:"tool_keywords"`
	DecompositionKeywords []string `json:"decomposition_keywords"`
	VerifierKeywords      []string `json:"verifier_keywords"`
	SevereGapThreshold    float64  `json:"severe_gap_threshold"`
	ModerateGapThreshold  float64  `json:"moderate_gap_threshold"`
	FallbackGapThreshold  float64  `json:"fallback_gap_threshold"`
}

// DefaultTaxonomyRules returns the built-in classification rules.
func DefaultTaxonomyRules() TaxonomyRules {
	return TaxonomyRules{
		ExecutionKeywords: []string{
			"runtime_error", "timeout", "circuit open", "execution error",
			"exception", "traceback", "query failed", "cypher syntax",
		},
		ToolKeywords: []string{
			"tool", "action", "executor", "schemagetter", "cypherexecutor",
			"pagerankexecutor", "knowledgebaseretriever", "missing tool", "wrong tool",
		},
		DecompositionKeywords: []string{
			"decompose", "decomposition", "subtask", "multi-step",
			"missing step", "planning", "workflow order", "reasoning chain",
		},
		VerifierKeywords: []string{
			"verifier", "expected", "mismatch", "not aligned", "format",
			"answer differs", "incorrect final answer",
		},
		SevereGapThreshold:   0.4,
		ModerateGapThreshold: 0.2,
		FallbackGapThreshold: 0.2,
	}
}

const taxonomyRulesSchema = `{
  "type": "object",
  "properties": {
    "execution_keywords": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "tool_keywords": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "decomposition_keywords": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "verifier_keywords": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "severe_gap_threshold": {"type": "number", "minimum": 0, "maximum": 1},
    "moderate_gap_threshold": {"type": "number", "minimum": 0, "maximum": 1},
    "fallback_gap_threshold": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "required": [
    "execution_keywords", "tool_keywords", "decomposition_keywords",
    "verifier_keywords", "severe_gap_threshold", "moderate_gap_threshold",
    "fallback_gap_threshold"
  ],
  "additionalProperties": false
}`

// LoadTaxonomyRules reads and validates a rules file. The schema check runs
// before unmarshaling so a malformed file fails with field-level detail.
func LoadTaxonomyRules(path string) (TaxonomyRules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TaxonomyRules{}, fmt.Errorf("read taxonomy rules: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(taxonomyRulesSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return TaxonomyRules{}, fmt.Errorf("validate taxonomy rules: %w", err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return TaxonomyRules{}, fmt.Errorf("invalid taxonomy rules: %s", strings.Join(details, "; "))
	}

	var rules TaxonomyRules
	if err := json.Unmarshal(raw, &rules); err != nil {
		return TaxonomyRules{}, fmt.Errorf("decode taxonomy rules: %w", err)
	}
	if rules.ModerateGapThreshold > rules.SevereGapThreshold {
		return TaxonomyRules{}, fmt.Errorf("moderate_gap_threshold %v exceeds severe_gap_threshold %v",
			rules.ModerateGapThreshold, rules.SevereGapThreshold)
	}
	return rules, nil
}

// FailureCaseItem is one classified failing case in the taxonomy report.
type FailureCaseItem struct {
	CaseID      string  `json:"case_id"`
	Category    string  `json:"category"`
	Severity    string  `json:"severity"`
	Signal      string  `json:"signal"`
	AutoScore   float64 `json:"auto_score"`
	ManualScore float64 `json:"manual_score"`
	ScoreGap    float64 `json:"score_gap"`
}

// FailureTaxonomy aggregates failing cases by category and severity.
type FailureTaxonomy struct {
	TotalFailures   int                `json:"total_failures"`
	FailureMargin   float64            `json:"failure_margin"`
	ByCategory      map[string]int     `json:"by_category"`
	ByCategoryRatio map[string]float64 `json:"by_category_ratio"`
	BySeverity      map[string]int     `json:"by_severity"`
	BySeverityRatio map[string]float64 `json:"by_severity_ratio"`
	CaseItems       []FailureCaseItem  `json:"case_items"`
}

// BuildFailureTaxonomy classifies every joined case where the auto score plus
// the margin still trails the manual score.
func BuildFailureTaxonomy(autoEval, manualEval types.EvaluationSummary, failureMargin float64, rules TaxonomyRules) FailureTaxonomy {
	manualByCaseID := make(map[string]types.CaseExecution, len(manualEval.CaseResults))
	for _, c := range manualEval.CaseResults {
		manualByCaseID[c.CaseID] = c
	}

	byCategory := make(map[string]int, len(FailureCategories))
	for _, category := range FailureCategories {
		byCategory[category] = 0
	}
	bySeverity := make(map[string]int, len(FailureSeverities))
	for _, severity := range FailureSeverities {
		bySeverity[severity] = 0
	}

	caseItems := make([]FailureCaseItem, 0)
	for _, autoCase := range autoEval.CaseResults {
		manualCase, ok := manualByCaseID[autoCase.CaseID]
		if !ok {
			continue
		}
		if autoCase.Score+failureMargin >= manualCase.Score {
			continue
		}

		category, signal := classifyFailureCase(autoCase, manualCase, rules)
		severity := classifyFailureSeverity(autoCase.Score, manualCase.Score, rules)
		byCategory[category]++
		bySeverity[severity]++
		caseItems = append(caseItems, FailureCaseItem{
			CaseID:      autoCase.CaseID,
			Category:    category,
			Severity:    severity,
			Signal:      signal,
			AutoScore:   autoCase.Score,
			ManualScore: manualCase.Score,
			ScoreGap:    manualCase.Score - autoCase.Score,
		})
	}

	sort.SliceStable(caseItems, func(i, j int) bool {
		return caseItems[i].ScoreGap > caseItems[j].ScoreGap
	})

	total := len(caseItems)
	byCategoryRatio := make(map[string]float64, len(FailureCategories))
	bySeverityRatio := make(map[string]float64, len(FailureSeverities))
	for _, category := range FailureCategories {
		if total > 0 {
			byCategoryRatio[category] = float64(byCategory[category]) / float64(total)
		} else {
			byCategoryRatio[category] = 0.0
		}
	}
	for _, severity := range FailureSeverities {
		if total > 0 {
			bySeverityRatio[severity] = float64(bySeverity[severity]) / float64(total)
		} else {
			bySeverityRatio[severity] = 0.0
		}
	}

	return FailureTaxonomy{
		TotalFailures:   total,
		FailureMargin:   failureMargin,
		ByCategory:      byCategory,
		ByCategoryRatio: byCategoryRatio,
		BySeverity:      bySeverity,
		BySeverityRatio: bySeverityRatio,
		CaseItems:       caseItems,
	}
}

func classifyFailureCase(autoCase, manualCase types.CaseExecution, rules TaxonomyRules) (string, string) {
	combined := strings.ToLower(autoCase.Output + "\n" + autoCase.Rationale)
	manualHint := strings.ToLower(manualCase.Output + "\n" + manualCase.Rationale)

	if matched := firstKeyword(combined, rules.ExecutionKeywords); matched != "" {
		return "execution_grounding", matched
	}
	if matched := firstKeyword(combined, rules.ToolKeywords); matched != "" {
		return "tool_selection", matched
	}
	if matched := firstKeyword(combined, rules.DecompositionKeywords); matched != "" {
		return "decomposition", matched
	}
	if matched := firstKeyword(combined, rules.VerifierKeywords); matched != "" {
		return "verifier_mismatch", matched
	}
	if strings.TrimSpace(manualHint) != "" && autoCase.Score+rules.FallbackGapThreshold < manualCase.Score {
		return "decomposition", fmt.Sprintf("manual_gap>=%v", rules.FallbackGapThreshold)
	}
	return "other", "no_keyword_match"
}

func classifyFailureSeverity(autoScore, manualScore float64, rules TaxonomyRules) string {
	gap := manualScore - autoScore
	if gap < 0.0 {
		gap = 0.0
	}
	const epsilon = 1e-9
	if gap+epsilon >= rules.SevereGapThreshold {
		return "severe"
	}
	if gap+epsilon >= rules.ModerateGapThreshold {
		return "moderate"
	}
	return "mild"
}

func firstKeyword(text string, keywords []string) string {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return keyword
		}
	}
	return ""
}
