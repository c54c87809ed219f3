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
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// PromptOptimizer rewrites an operator instruction given recent failures.
type PromptOptimizer interface {
	Optimize(prompt string, failures []types.CaseExecution, taskDesc string) string
}

// PromptVariantRegistry collects every scored candidate produced during one
// run so the orchestration layer can persist them as an artifact.
type PromptVariantRegistry struct {
	mu       sync.Mutex
	variants []types.PromptVariant
}

func NewPromptVariantRegistry() *PromptVariantRegistry { return &PromptVariantRegistry{} }

func (r *PromptVariantRegistry) Add(variant types.PromptVariant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants = append(r.variants, variant)
}

// List returns a copy of the registered variants in insertion order.
func (r *PromptVariantRegistry) List() []types.PromptVariant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.PromptVariant(nil), r.variants...)
}

// CandidatePromptOptimizer generates a bounded candidate set per call, scores
// each heuristically, registers all of them, and returns the best prompt.
type CandidatePromptOptimizer struct {
	maxCandidates int
	registry      *PromptVariantRegistry
}

// NewCandidatePromptOptimizer keeps at least two candidates so the original
// prompt always competes against one rewrite.
func NewCandidatePromptOptimizer(maxCandidates int) *CandidatePromptOptimizer {
	if maxCandidates < 2 {
		maxCandidates = 2
	}
	return &CandidatePromptOptimizer{
		maxCandidates: maxCandidates,
		registry:      NewPromptVariantRegistry(),
	}
}

// Registry exposes the run-scoped variant registry.
func (o *CandidatePromptOptimizer) Registry() *PromptVariantRegistry { return o.registry }

// Variants lists every variant registered so far.
func (o *CandidatePromptOptimizer) Variants() []types.PromptVariant { return o.registry.List() }

func (o *CandidatePromptOptimizer) Optimize(prompt string, failures []types.CaseExecution, taskDesc string) string {
	candidates := o.GenerateCandidates(prompt, failures, taskDesc)
	scored := o.ScoreCandidates(candidates, failures)

	best := scored[0]
	for _, candidate := range scored {
		o.registry.Add(candidate)
		if candidate.Score > best.Score {
			best = candidate
		}
	}
	return best.Prompt
}

// GenerateCandidates emits the original prompt plus up to four augmented
// rewrites, deduplicated by whitespace-normalized text.
func (o *CandidatePromptOptimizer) GenerateCandidates(prompt string, failures []types.CaseExecution, taskDesc string) []string {
	hints := make([]string, 0, 3)
	for _, failure := range failures {
		if len(hints) == 3 {
			break
		}
		if failure.Rationale != "" {
			hints = append(hints, failure.Rationale)
		}
	}
	failureText := "no explicit failure"
	if len(hints) > 0 {
		failureText = strings.Join(hints, "; ")
	}

	trimmed := strings.TrimSpace(prompt)
	candidates := []string{
		prompt,
		fmt.Sprintf("%s\n\n[Refined Constraints]\n"+
			"- Use graph-tool evidence for every claim.\n"+
			"- State unknown instead of hallucinating.\n"+
			"- Prior failure pattern: %s.\n", trimmed, failureText),
		fmt.Sprintf("%s\n\n[Task Intent]\n%s\n"+
			"[Output Discipline]\n"+
			"1) Answer\n2) Evidence\n3) Assumptions", trimmed, taskDesc),
		trimmed + "\n\n[Safety Checks]\n" +
			"- Validate schema alignment before answering.\n" +
			"- If tools disagree, explain discrepancy and choose conservative output.",
		trimmed + "\n\n[Failure Recovery]\n" +
			"- If a tool call fails, retry with fallback query plan.\n" +
			"- Summarize fallback and confidence in final answer.",
	}

	seen := make(map[string]struct{}, len(candidates))
	deduped := make([]string, 0, o.maxCandidates)
	for _, candidate := range candidates {
		key := strings.Join(strings.Fields(candidate), " ")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, candidate)
		if len(deduped) >= o.maxCandidates {
			break
		}
	}
	return deduped
}

// ScoreCandidates assigns each candidate a heuristic score favoring evidence
// discipline, failure-token coverage and brevity.
func (o *CandidatePromptOptimizer) ScoreCandidates(candidates []string, failures []types.CaseExecution) []types.PromptVariant {
	keywords := extractFailureKeywords(failures)
	out := make([]types.PromptVariant, 0, len(candidates))
	for idx, candidate := range candidates {
		score := 0.5
		lowered := strings.ToLower(candidate)
		if strings.Contains(lowered, "evidence") {
			score += 0.15
		}
		if strings.Contains(lowered, "unknown") {
			score += 0.1
		}
		if strings.Contains(lowered, "fallback") {
			score += 0.05
		}

		if len(keywords) > 0 {
			covered := 0
			for keyword := range keywords {
				if strings.Contains(lowered, keyword) {
					covered++
				}
			}
			score += 0.2 * float64(covered) / float64(len(keywords))
		}

		score -= math.Min(0.12, float64(len(candidate))/6000.0)

		keywordList := make([]string, 0, len(keywords))
		for keyword := range keywords {
			keywordList = append(keywordList, keyword)
		}
		sort.Strings(keywordList)

		out = append(out, types.PromptVariant{
			VariantID: "pv-" + randomHex(12),
			Prompt:    candidate,
			Source:    fmt.Sprintf("candidate_%d", idx),
			Score:     math.Max(0.0, math.Min(1.0, score)),
			Metadata: map[string]any{
				"failure_keywords": keywordList,
				"length":           len(candidate),
			},
		})
	}
	return out
}

// extractFailureKeywords pulls tokens of length >= 5 from the first five
// failure rationales, stripped of surrounding punctuation.
func extractFailureKeywords(failures []types.CaseExecution) map[string]struct{} {
	tokens := make(map[string]struct{})
	for i, failure := range failures {
		if i == 5 {
			break
		}
		for _, token := range strings.Fields(strings.ToLower(failure.Rationale)) {
			token = strings.Trim(token, ".,:;()[]{}\"'")
			if len(token) >= 5 {
				tokens[token] = struct{}{}
			}
		}
	}
	return tokens
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
