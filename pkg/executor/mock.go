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
package executor

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// MockExecutor is the deterministic adapter used for tests and dry runs. Its
// score signal is a placeholder the judge overwrites, shaped so that richer
// topologies and tool sets score higher and hard negatives score lower.
type MockExecutor struct{}

// NewMockExecutor returns the deterministic mock adapter.
func NewMockExecutor() *MockExecutor { return &MockExecutor{} }

func (e *MockExecutor) FetchSchemaSnapshot() types.SchemaSnapshot {
	return types.SchemaSnapshot{
		Labels:    []string{"Person", "Account", "Loan", "Transaction"},
		Relations: []string{"OWNS", "TRANSFERS", "BORROWS", "DEPOSITS_TO"},
	}
}

func (e *MockExecutor) FetchToolCatalog() []types.ToolSpec {
	return []types.ToolSpec{
		{
			Name:        "SchemaGetter",
			ModulePath:  "app.plugin.neo4j.resource.data_importation",
			Description: "Read graph schema",
			Tags:        []string{"schema", "query"},
		},
		{
			Name:        "CypherExecutor",
			ModulePath:  "app.plugin.neo4j.resource.graph_query",
			Description: "Execute Cypher query",
			Tags:        []string{"query", "cypher"},
		},
		{
			Name:        "PageRankExecutor",
			ModulePath:  "app.plugin.neo4j.resource.graph_analysis",
			Description: "Run PageRank analytics",
			Tags:        []string{"analysis", "algorithm", "rank"},
		},
		{
			Name:        "KnowledgeBaseRetriever",
			ModulePath:  "app.plugin.neo4j.resource.question_answering",
			Description: "Retrieve external knowledge",
			Tags:        []string{"qa", "retrieval"},
		},
	}
}

func (e *MockExecutor) Execute(_ context.Context, blueprint *types.WorkflowBlueprint, c types.SyntheticCase) types.CaseExecution {
	branchBonus := 0.0
	if blueprint.Topology != types.TopologyLinear {
		branchBonus = 0.1
	}
	toolBonus := math.Min(0.3, float64(len(blueprint.Tools))*0.05)
	hardNegativePenalty := 0.0
	if c.Lineage.IsHardNegative {
		hardNegativePenalty = 0.08
	}

	latencyMS := 10.0 + float64(len(blueprint.Actions))
	tokenCost := 0.001 * float64(len(strings.Fields(c.Question))+len(blueprint.Actions))

	return types.CaseExecution{
		CaseID:     c.CaseID,
		Question:   c.Question,
		Expected:   c.Verifier,
		Output:     fmt.Sprintf("Mock answer for %s", c.Question),
		Score:      math.Max(0.0, math.Min(0.95, 0.45+branchBonus+toolBonus-hardNegativePenalty)),
		Rationale:  "mock runtime heuristic",
		LatencyMS:  latencyMS,
		TokenCost:  tokenCost,
		Confidence: math.Min(0.95, 0.55+branchBonus+toolBonus-hardNegativePenalty/2.0),
	}
}
