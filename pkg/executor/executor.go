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

// Package executor maps (blueprint, case) pairs to case executions. The mock
// adapter is deterministic; the external adapter bridges to an out-of-process
// runtime with timeout, retry, and circuit-breaker protection.
package executor

import (
	"context"

	"github.com/teradata-labs/jacquard/pkg/types"
)

// JudgeHandoffRationale marks an execution whose score still awaits judging.
const JudgeHandoffRationale = "runtime output before LLM judge"

// Executor runs one case against a blueprint and exposes the runtime's schema
// and tool catalog. Runtime failures are absorbed into the CaseExecution
// output (RUNTIME_ERROR[...]) so one bad case never halts an evaluation.
type Executor interface {
	Execute(ctx context.Context, blueprint *types.WorkflowBlueprint, c types.SyntheticCase) types.CaseExecution
	FetchSchemaSnapshot() types.SchemaSnapshot
	FetchToolCatalog() []types.ToolSpec
}
