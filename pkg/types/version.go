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
package types

import "time"

// AgentLifecycle tracks a version through its rollout states. At most one
// version per agent is deployed at a time.
type AgentLifecycle string

const (
	LifecycleDraft     AgentLifecycle = "draft"
	LifecycleValidated AgentLifecycle = "validated"
	LifecycleDeployed  AgentLifecycle = "deployed"
	LifecycleArchived  AgentLifecycle = "archived"
)

// AgentVersionRecord is one registered blueprint version for an agent.
// Version numbers are monotonic per agent starting at 1.
type AgentVersionRecord struct {
	AgentName    string         `json:"agent_name"`
	Version      int            `json:"version"`
	Lifecycle    AgentLifecycle `json:"lifecycle"`
	BlueprintID  string         `json:"blueprint_id"`
	Score        float64        `json:"score"`
	ArtifactPath string         `json:"artifact_path"`
	CreatedAt    time.Time      `json:"created_at"`
	Notes        string         `json:"notes"`
	RunID        string         `json:"run_id,omitempty"`
}
