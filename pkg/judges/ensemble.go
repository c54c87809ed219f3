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
package judges

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// WeightedMember pairs a judge with its aggregation weight.
type WeightedMember struct {
	Judge  Judge
	Weight float64
}

// Ensemble aggregates member verdicts into a weighted mean and exposes
// per-vote side data from the most recent call.
type Ensemble struct {
	members []WeightedMember

	mu             sync.Mutex
	lastVotes      []types.JudgeVote
	lastAgreement  float64
	lastConfidence float64
}

// NewEnsemble builds an ensemble over the given members.
func NewEnsemble(members ...WeightedMember) (*Ensemble, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("ensemble requires at least one judge")
	}
	for _, member := range members {
		if member.Weight <= 0 {
			return nil, fmt.Errorf("judge %s has non-positive weight", member.Judge.Name())
		}
	}
	return &Ensemble{members: members}, nil
}

// NewDefaultEnsemble wires rule and lexical judges at weight 1.0, plus the
// LLM judge at weight 1.4 when a provider is supplied.
func NewDefaultEnsemble(provider Provider) *Ensemble {
	members := []WeightedMember{
		{Judge: NewRuleJudge(), Weight: 1.0},
		{Judge: NewLexicalJudge(), Weight: 1.0},
	}
	if provider != nil {
		members = append(members, WeightedMember{Judge: NewLLMJudge(provider), Weight: 1.4})
	}
	ensemble, _ := NewEnsemble(members...)
	return ensemble
}

func (e *Ensemble) Name() string { return "ensemble" }

// Judge runs every member and returns the weighted mean score. The combined
// rationale names each member verdict.
func (e *Ensemble) Judge(ctx context.Context, question, expected, prediction, rubric string) (float64, string) {
	votes := make([]types.JudgeVote, 0, len(e.members))
	scores := make([]float64, 0, len(e.members))
	weightedSum := 0.0
	totalWeight := 0.0
	rationale := ""

	for i, member := range e.members {
		score, reason := member.Judge.Judge(ctx, question, expected, prediction, rubric)
		votes = append(votes, types.JudgeVote{
			JudgeName: member.Judge.Name(),
			Score:     score,
			Rationale: reason,
		})
		scores = append(scores, score)
		weightedSum += score * member.Weight
		totalWeight += member.Weight
		if i > 0 {
			rationale += " | "
		}
		rationale += fmt.Sprintf("%s=%.2f", member.Judge.Name(), score)
	}

	finalScore := clamp01(weightedSum / totalWeight)
	agreement := computeAgreement(scores)
	confidence := clamp01(0.5*finalScore + 0.5*agreement)

	e.mu.Lock()
	e.lastVotes = votes
	e.lastAgreement = agreement
	e.lastConfidence = confidence
	e.mu.Unlock()

	return finalScore, rationale
}

// LastVotes returns a copy of the votes from the most recent call.
func (e *Ensemble) LastVotes() []types.JudgeVote {
	e.mu.Lock()
	defer e.mu.Unlock()
	votes := make([]types.JudgeVote, len(e.lastVotes))
	copy(votes, e.lastVotes)
	return votes
}

// LastAgreement returns the agreement signal from the most recent call.
func (e *Ensemble) LastAgreement() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAgreement
}

// LastConfidence returns the confidence signal from the most recent call.
func (e *Ensemble) LastConfidence() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastConfidence
}

// computeAgreement blends the population standard deviation with the mean
// absolute deviation from the mean, both inverted, clamped to [0,1].
func computeAgreement(scores []float64) float64 {
	if len(scores) == 0 {
		return 1.0
	}
	mean := 0.0
	for _, score := range scores {
		mean += score
	}
	mean /= float64(len(scores))

	variance := 0.0
	absDeviation := 0.0
	for _, score := range scores {
		diff := score - mean
		variance += diff * diff
		absDeviation += 1.0 - math.Abs(diff)
	}
	pstdev := math.Sqrt(variance / float64(len(scores)))
	meanCloseness := absDeviation / float64(len(scores))

	return clamp01(0.5*(1.0-pstdev) + 0.5*meanCloseness)
}
