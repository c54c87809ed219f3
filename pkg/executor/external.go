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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/jacquard/pkg/types"
	"github.com/teradata-labs/jacquard/pkg/workflow"
)

// RuntimeClient submits a materialized workflow manifest plus one question to
// the downstream runtime and returns its textual answer.
type RuntimeClient interface {
	Run(ctx context.Context, manifest []byte, question string) (string, error)
}

// HTTPRuntimeClient posts executions to an HTTP runtime endpoint.
type HTTPRuntimeClient struct {
	url        string
	httpClient *http.Client
}

// NewHTTPRuntimeClient targets a runtime's /execute endpoint. Per-attempt
// timeouts are enforced by the caller's context, not the HTTP client.
func NewHTTPRuntimeClient(url string) *HTTPRuntimeClient {
	return &HTTPRuntimeClient{url: url, httpClient: &http.Client{}}
}

func (c *HTTPRuntimeClient) Run(ctx context.Context, manifest []byte, question string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"workflow_yaml": string(manifest),
		"question":      question,
	})
	if err != nil {
		return "", fmt.Errorf("marshal runtime request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build runtime request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read runtime response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("runtime returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body), nil
	}
	return parsed.Answer, nil
}

// ExternalConfig tunes the external adapter's failure handling.
type ExternalConfig struct {
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	CircuitThreshold int
	CircuitReset     time.Duration
}

// ExternalExecutor bridges to an out-of-process runtime. Each attempt runs
// under a per-call deadline; exhausted retries trip the circuit breaker.
type ExternalExecutor struct {
	client   RuntimeClient
	renderer *workflow.Renderer
	config   ExternalConfig
	breaker  *circuitBreaker
	logger   *zap.Logger

	schema  types.SchemaSnapshot
	catalog []types.ToolSpec

	sleep func(time.Duration)
}

// NewExternalExecutor wires the runtime client with retry and breaker
// settings. Schema and catalog fall back to minimal defaults when the
// runtime publishes none.
func NewExternalExecutor(client RuntimeClient, config ExternalConfig, logger *zap.Logger) *ExternalExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.CircuitThreshold <= 0 {
		config.CircuitThreshold = 5
	}
	if config.CircuitReset <= 0 {
		config.CircuitReset = 30 * time.Second
	}
	return &ExternalExecutor{
		client:   client,
		renderer: workflow.NewRenderer(),
		config:   config,
		breaker:  newCircuitBreaker(config.CircuitThreshold, config.CircuitReset),
		logger:   logger,
		schema:   types.SchemaSnapshot{Labels: []string{"Node"}, Relations: []string{"RELATED_TO"}, Source: "fallback"},
		sleep:    time.Sleep,
	}
}

// SetSchemaSnapshot overrides the fallback schema, e.g. from a schema file.
func (e *ExternalExecutor) SetSchemaSnapshot(schema types.SchemaSnapshot) { e.schema = schema }

// SetToolCatalog overrides the published tool catalog.
func (e *ExternalExecutor) SetToolCatalog(catalog []types.ToolSpec) { e.catalog = catalog }

func (e *ExternalExecutor) FetchSchemaSnapshot() types.SchemaSnapshot { return e.schema }

func (e *ExternalExecutor) FetchToolCatalog() []types.ToolSpec { return e.catalog }

func (e *ExternalExecutor) Execute(ctx context.Context, blueprint *types.WorkflowBlueprint, c types.SyntheticCase) types.CaseExecution {
	started := time.Now()

	if detail, open := e.breaker.checkOpen(); open {
		return e.runtimeError(c, started, "CIRCUIT_OPEN", detail)
	}

	manifest, err := e.renderer.Render(blueprint)
	if err != nil {
		e.breaker.recordFailure()
		return e.runtimeError(c, started, "EXECUTION_ERROR", fmt.Sprintf("render workflow: %v", err))
	}

	maxAttempts := e.config.MaxRetries + 1
	lastCategory := "EXECUTION_ERROR"
	lastDetail := "unknown runtime failure"

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		output, err := e.runOnce(ctx, manifest, c.Question)
		if err == nil {
			e.breaker.recordSuccess()
			return types.CaseExecution{
				CaseID:    c.CaseID,
				Question:  c.Question,
				Expected:  c.Verifier,
				Output:    output,
				Score:     0.0,
				Rationale: JudgeHandoffRationale,
				LatencyMS: float64(time.Since(started).Milliseconds()),
			}
		}

		if errors.Is(err, context.DeadlineExceeded) {
			lastCategory = "TIMEOUT"
			lastDetail = fmt.Sprintf("runtime execution timed out after %.2fs", e.config.Timeout.Seconds())
		} else {
			lastCategory = "EXECUTION_ERROR"
			lastDetail = err.Error()
		}
		e.logger.Warn("runtime attempt failed",
			zap.String("case_id", c.CaseID),
			zap.Int("attempt", attempt),
			zap.String("category", lastCategory))

		if attempt < maxAttempts && e.config.RetryBackoff > 0 {
			e.sleep(e.config.RetryBackoff * time.Duration(1<<(attempt-1)))
		}
	}

	e.breaker.recordFailure()
	return e.runtimeError(c, started, lastCategory, lastDetail)
}

func (e *ExternalExecutor) runOnce(ctx context.Context, manifest []byte, question string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()
	return e.client.Run(attemptCtx, manifest, question)
}

func (e *ExternalExecutor) runtimeError(c types.SyntheticCase, started time.Time, category, detail string) types.CaseExecution {
	return types.CaseExecution{
		CaseID:    c.CaseID,
		Question:  c.Question,
		Expected:  c.Verifier,
		Output:    fmt.Sprintf("RUNTIME_ERROR[%s]: %s", category, detail),
		Score:     0.0,
		Rationale: JudgeHandoffRationale,
		LatencyMS: float64(time.Since(started).Milliseconds()),
	}
}
