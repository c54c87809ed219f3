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

// Package synthesis generates compact task datasets from a task description
// and the runtime's schema snapshot, with deterministic seeded sampling.
package synthesis

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// SchemaSource provides the schema snapshot that grounds generated questions.
type SchemaSource interface {
	FetchSchemaSnapshot() types.SchemaSnapshot
}

type seedTemplate struct {
	intent   types.TaskIntent
	template string
}

// Options tune dataset generation. Zero-value ratios fall back to 0.6/0.2/0.2
// and a zero seed falls back to 7 so that repeated runs stay reproducible.
type Options struct {
	RandomSeed          int64
	TrainRatio          float64
	ValRatio            float64
	TestRatio           float64
	EnableParaphrase    bool
	EnableHardNegatives bool
	AnswerResolver      func(question string) string
}

// DefaultOptions enables paraphrases and hard negatives with the standard
// 60/20/20 split.
func DefaultOptions() Options {
	return Options{
		RandomSeed:          7,
		TrainRatio:          0.6,
		ValRatio:            0.2,
		TestRatio:           0.2,
		EnableParaphrase:    true,
		EnableHardNegatives: true,
	}
}

// DynamicSynthesizer builds datasets from intent-keyed seed templates filled
// with schema labels and relations.
type DynamicSynthesizer struct {
	source  SchemaSource
	opts    Options
	rng     *rand.Rand
	resolve func(string) string
}

// NewDynamicSynthesizer validates split ratios up front; a bad ratio sum is a
// configuration error, not a per-call one.
func NewDynamicSynthesizer(source SchemaSource, opts Options) (*DynamicSynthesizer, error) {
	if opts.RandomSeed == 0 {
		opts.RandomSeed = 7
	}
	if opts.TrainRatio == 0 && opts.ValRatio == 0 && opts.TestRatio == 0 {
		opts.TrainRatio, opts.ValRatio, opts.TestRatio = 0.6, 0.2, 0.2
	}
	sum := opts.TrainRatio + opts.ValRatio + opts.TestRatio
	if sum < 1.0-1e-6 || sum > 1.0+1e-6 {
		return nil, fmt.Errorf("dataset split ratios must sum to 1.0, got %v+%v+%v",
			opts.TrainRatio, opts.ValRatio, opts.TestRatio)
	}
	resolve := opts.AnswerResolver
	if resolve == nil {
		resolve = func(string) string { return "UNKNOWN" }
	}
	return &DynamicSynthesizer{
		source:  source,
		opts:    opts,
		rng:     rand.New(rand.NewSource(opts.RandomSeed)),
		resolve: resolve,
	}, nil
}

// Synthesize generates a dataset of at most size cases, clamped to [6, 30].
func (s *DynamicSynthesizer) Synthesize(taskDesc, datasetName string, size int) *types.SyntheticDataset {
	boundedSize := size
	if boundedSize > 30 {
		boundedSize = 30
	}
	if boundedSize < 6 {
		boundedSize = 6
	}

	schema := s.source.FetchSchemaSnapshot()
	intents := InferIntents(taskDesc)
	labels := listOrFallback(schema.Labels, []string{"Node"})
	relations := listOrFallback(schema.Relations, []string{"RELATED_TO"})

	templates := buildTemplates(intents)
	questions := s.renderQuestions(templates, labels, relations, boundedSize*2)
	if s.opts.EnableHardNegatives {
		questions = append(questions, s.hardNegatives(questions, labels, relations)...)
	}
	questions = deduplicate(questions)

	levels := []types.Difficulty{types.DifficultyL1, types.DifficultyL2, types.DifficultyL3, types.DifficultyL4}
	cases := make([]types.SyntheticCase, 0, boundedSize)
	for idx, question := range questions {
		if idx >= boundedSize {
			break
		}
		intent := intents[idx%len(intents)]
		difficulty := levels[idx%len(levels)]
		cases = append(cases, types.SyntheticCase{
			CaseID:     fmt.Sprintf("%s-%d", datasetName, idx+1),
			Question:   question,
			Verifier:   s.resolve(question),
			Intent:     intent,
			Difficulty: difficulty,
			Lineage: types.CaseLineage{
				SeedIndex:      idx,
				Intent:         string(intent),
				Difficulty:     string(difficulty),
				IsHardNegative: strings.Contains(strings.ToLower(question), "cannot be inferred"),
			},
		})
	}

	train, val, test := s.splitCases(cases)

	hardNegatives := 0
	for _, c := range cases {
		if c.Lineage.IsHardNegative {
			hardNegatives++
		}
	}
	intentNames := make([]string, 0, len(intents))
	for _, intent := range intents {
		intentNames = append(intentNames, string(intent))
	}

	return &types.SyntheticDataset{
		Name:           datasetName,
		TaskDesc:       taskDesc,
		Cases:          cases,
		TrainCases:     train,
		ValCases:       val,
		TestCases:      test,
		SchemaSnapshot: schema,
		Report: types.SynthesisReport{
			RequestedSize:     size,
			FinalSize:         len(cases),
			Intents:           intentNames,
			LabelsSampled:     labels,
			RelationsSampled:  relations,
			HardNegativeCount: hardNegatives,
			SplitSizes: types.SplitSizes{
				Train: len(train),
				Val:   len(val),
				Test:  len(test),
			},
		},
	}
}

// InferIntents derives at most two task intents from bilingual keyword hits,
// in fixed precedence order. No hit defaults to query plus analytics.
func InferIntents(taskDesc string) []types.TaskIntent {
	text := strings.ToLower(taskDesc)
	intents := make([]types.TaskIntent, 0, 5)

	include := func(intent types.TaskIntent, words ...string) {
		for _, word := range words {
			if strings.Contains(text, word) {
				intents = append(intents, intent)
				return
			}
		}
	}

	include(types.IntentQuery, "query", "查询", "cypher", "查找")
	include(types.IntentAnalytics, "analytics", "analysis", "算法", "rank", "社区")
	include(types.IntentModeling, "model", "schema", "建模", "实体", "关系")
	include(types.IntentImport, "import", "导入", "etl", "ingest")
	include(types.IntentQA, "qa", "问答", "summarize", "explain", "介绍")

	if len(intents) == 0 {
		intents = []types.TaskIntent{types.IntentQuery, types.IntentAnalytics}
	}
	if len(intents) > 2 {
		intents = intents[:2]
	}
	return intents
}

func buildTemplates(intents []types.TaskIntent) []seedTemplate {
	templateMap := map[types.TaskIntent][]string{
		types.IntentQuery: {
			"Find %s entities linked by %s and return key properties.",
			"Which %s nodes satisfy path constraints through %s?",
		},
		types.IntentAnalytics: {
			"Run graph analytics on %s using %s and explain top findings.",
			"Identify anomalous subgraphs in %s connected by %s.",
		},
		types.IntentModeling: {
			"Design schema evolution for %s and relationship %s.",
			"Propose constraints for %s connected via %s.",
		},
		types.IntentImport: {
			"Create an ingestion plan for %s and map edges via %s.",
			"Define pre-import validation for %s with %s.",
		},
		types.IntentQA: {
			"Explain the semantic meaning of %s and %s in this graph.",
			"Provide concise domain summary centered on %s/%s.",
		},
	}

	seeds := make([]seedTemplate, 0, len(intents)*2)
	for _, intent := range intents {
		for _, template := range templateMap[intent] {
			seeds = append(seeds, seedTemplate{intent: intent, template: template})
		}
	}
	return seeds
}

func (s *DynamicSynthesizer) renderQuestions(templates []seedTemplate, labels, relations []string, target int) []string {
	results := make([]string, 0, target)
	for len(results) < target {
		seed := templates[s.rng.Intn(len(templates))]
		label := labels[s.rng.Intn(len(labels))]
		relation := relations[s.rng.Intn(len(relations))]
		question := fmt.Sprintf(seed.template, label, relation)
		results = append(results, question)
		if s.opts.EnableParaphrase {
			results = append(results, paraphrase(question)...)
		}
	}
	return results[:target]
}

// paraphrase yields surface variants; unchanged candidates are dropped.
func paraphrase(question string) []string {
	candidates := []string{
		strings.ReplaceAll(question, "Find", "Locate"),
		strings.ReplaceAll(question, "Which", "List"),
		strings.ReplaceAll(question, "Explain", "Summarize"),
	}
	out := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate != question {
			out = append(out, candidate)
		}
	}
	return out
}

// hardNegatives appends an unanswerable twist to roughly a quarter of the
// questions, never fewer than two.
func (s *DynamicSynthesizer) hardNegatives(questions, labels, relations []string) []string {
	if len(questions) == 0 {
		return nil
	}
	sampleSize := len(questions) / 4
	if sampleSize < 2 {
		sampleSize = 2
	}
	if sampleSize > len(questions) {
		sampleSize = len(questions)
	}

	sampled := make([]string, len(questions))
	copy(sampled, questions)
	s.rng.Shuffle(len(sampled), func(i, j int) { sampled[i], sampled[j] = sampled[j], sampled[i] })
	sampled = sampled[:sampleSize]

	negatives := make([]string, 0, sampleSize)
	for idx, question := range sampled {
		label := labels[idx%len(labels)]
		relation := relations[idx%len(relations)]
		negatives = append(negatives, fmt.Sprintf(
			"%s Also explain why the answer cannot be inferred if %s has no edge of type %s.",
			question, label, relation))
	}
	return negatives
}

// deduplicate drops questions that collapse to the same whitespace-normalized
// lowercase key, preserving first occurrence order.
func deduplicate(questions []string) []string {
	seen := make(map[string]struct{}, len(questions))
	out := make([]string, 0, len(questions))
	for _, question := range questions {
		key := strings.Join(strings.Fields(strings.ToLower(question)), " ")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, question)
	}
	return out
}

// splitCases shuffles then partitions by ratio. With at least three cases,
// every split ends up non-empty: an empty split borrows one case from the
// shuffled head and the donor split gives it up.
func (s *DynamicSynthesizer) splitCases(cases []types.SyntheticCase) (train, val, test []types.SyntheticCase) {
	shuffled := make([]types.SyntheticCase, len(cases))
	copy(shuffled, cases)
	s.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	total := len(shuffled)
	trainEnd := int(float64(total) * s.opts.TrainRatio)
	valEnd := trainEnd + int(float64(total)*s.opts.ValRatio)

	train = append([]types.SyntheticCase(nil), shuffled[:trainEnd]...)
	val = append([]types.SyntheticCase(nil), shuffled[trainEnd:valEnd]...)
	test = append([]types.SyntheticCase(nil), shuffled[valEnd:]...)

	if len(train) == 0 && len(shuffled) > 0 {
		train = []types.SyntheticCase{shuffled[0]}
	}
	if len(val) == 0 && len(shuffled) > 1 {
		val = []types.SyntheticCase{shuffled[1]}
		test = withoutCase(test, shuffled[1].CaseID)
	}
	if len(test) == 0 && len(shuffled) > 2 {
		test = []types.SyntheticCase{shuffled[2]}
		train = withoutCase(train, shuffled[2].CaseID)
	}
	return train, val, test
}

func withoutCase(cases []types.SyntheticCase, caseID string) []types.SyntheticCase {
	out := make([]types.SyntheticCase, 0, len(cases))
	for _, c := range cases {
		if c.CaseID != caseID {
			out = append(out, c)
		}
	}
	return out
}

func listOrFallback(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
