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

import "github.com/teradata-labs/jacquard/pkg/types"

// ExperimentProfile names a documented knob preset.
type ExperimentProfile string

const (
	ProfileFullSystem               ExperimentProfile = "full_system"
	ProfileBaselineStaticPromptOnly ExperimentProfile = "baseline_static_prompt_only"
	ProfileDynamicPromptOnly        ExperimentProfile = "dynamic_prompt_only"
	ProfileDynamicPromptTool        ExperimentProfile = "dynamic_prompt_tool"
	ProfileAblationNoHoldout        ExperimentProfile = "ablation_no_holdout"
	ProfileAblationSingleJudge      ExperimentProfile = "ablation_single_judge"
	ProfileAblationNoHardNegative   ExperimentProfile = "ablation_no_hard_negative"
	ProfileAblationNoToolGain       ExperimentProfile = "ablation_no_tool_gain"
	ProfileAblationNoTopology       ExperimentProfile = "ablation_no_topology_mutation"
	ProfileIdeaFailureAware         ExperimentProfile = "idea_failure_aware_mutation"
)

// OptimizationKnobs is the resolved feature matrix for one optimization run.
type OptimizationKnobs struct {
	Profile                    ExperimentProfile
	DynamicDataset             bool
	EnableParaphrase           bool
	EnableHardNegatives        bool
	UseEnsembleJudge           bool
	EnablePromptMutation       bool
	EnableToolMutation         bool
	EnableTopologyMutation     bool
	EnableFailureAwareMutation bool
	UseHoldout                 bool
	EnableToolHistoricalGain   bool
	UncertaintyPenalty         float64
	GeneralizationPenalty      float64
}

func defaultKnobs(profile ExperimentProfile) OptimizationKnobs {
	cfg := types.DefaultSearchConfig()
	return OptimizationKnobs{
		Profile:                  profile,
		DynamicDataset:           true,
		EnableParaphrase:         true,
		EnableHardNegatives:      true,
		UseEnsembleJudge:         true,
		EnablePromptMutation:     true,
		EnableToolMutation:       true,
		EnableTopologyMutation:   true,
		UseHoldout:               true,
		EnableToolHistoricalGain: true,
		UncertaintyPenalty:       cfg.UncertaintyPenalty,
		GeneralizationPenalty:    cfg.GeneralizationPenalty,
	}
}

// ResolveKnobs maps a profile to its knob preset; unknown profiles get the
// full_system defaults.
func ResolveKnobs(profile ExperimentProfile) OptimizationKnobs {
	switch profile {
	case ProfileBaselineStaticPromptOnly:
		knobs := defaultKnobs(profile)
		knobs.DynamicDataset = false
		knobs.EnableParaphrase = false
		knobs.EnableHardNegatives = false
		knobs.UseEnsembleJudge = false
		knobs.EnableToolMutation = false
		knobs.EnableTopologyMutation = false
		knobs.EnableToolHistoricalGain = false
		knobs.UncertaintyPenalty = 0.0
		knobs.GeneralizationPenalty = 0.0
		return knobs

	case ProfileDynamicPromptOnly:
		knobs := defaultKnobs(profile)
		knobs.UseEnsembleJudge = false
		knobs.EnableToolMutation = false
		knobs.EnableTopologyMutation = false
		knobs.EnableToolHistoricalGain = false
		knobs.UncertaintyPenalty = 0.0
		knobs.GeneralizationPenalty = 0.0
		return knobs

	case ProfileDynamicPromptTool:
		knobs := defaultKnobs(profile)
		knobs.UseEnsembleJudge = false
		knobs.EnableTopologyMutation = false
		knobs.UncertaintyPenalty = 0.0
		knobs.GeneralizationPenalty = 0.0
		return knobs

	case ProfileAblationNoHoldout:
		knobs := defaultKnobs(profile)
		knobs.UseHoldout = false
		knobs.UncertaintyPenalty = 0.12
		knobs.GeneralizationPenalty = 0.0
		return knobs

	case ProfileAblationSingleJudge:
		knobs := defaultKnobs(profile)
		knobs.UseEnsembleJudge = false
		return knobs

	case ProfileAblationNoHardNegative:
		knobs := defaultKnobs(profile)
		knobs.EnableHardNegatives = false
		return knobs

	case ProfileAblationNoToolGain:
		knobs := defaultKnobs(profile)
		knobs.EnableToolHistoricalGain = false
		return knobs

	case ProfileAblationNoTopology:
		knobs := defaultKnobs(profile)
		knobs.EnableTopologyMutation = false
		return knobs

	case ProfileIdeaFailureAware:
		knobs := defaultKnobs(profile)
		knobs.EnableFailureAwareMutation = true
		return knobs

	default:
		return defaultKnobs(ProfileFullSystem)
	}
}

// SearchConfig maps knob flags onto the search defaults.
func (k OptimizationKnobs) SearchConfig() types.SearchConfig {
	cfg := types.DefaultSearchConfig()
	cfg.UseHoldout = k.UseHoldout
	cfg.EnablePromptMutation = k.EnablePromptMutation
	cfg.EnableToolMutation = k.EnableToolMutation
	cfg.EnableTopologyMutation = k.EnableTopologyMutation
	cfg.EnableFailureAwareMutation = k.EnableFailureAwareMutation
	cfg.EnableToolHistoricalGain = k.EnableToolHistoricalGain
	cfg.UncertaintyPenalty = k.UncertaintyPenalty
	cfg.GeneralizationPenalty = k.GeneralizationPenalty
	return cfg
}
