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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider is the LLM backend behind the LLM judge.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIProvider calls an OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// OpenAIConfig configures the chat completions client.
type OpenAIConfig struct {
	APIKey   string
	Model    string        // Default: gpt-4.1-mini
	BaseURL  string        // Default: https://api.openai.com/v1
	Timeout  time.Duration // Default: 60s
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("api key is required for the llm judge backend")
	}
	if config.Model == "" {
		config.Model = "gpt-4.1-mini"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		apiKey:     config.APIKey,
		model:      config.Model,
		endpoint:   strings.TrimSuffix(config.BaseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(&chatCompletionRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("API response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// MockProvider replies with a fixed parsable verdict so the ensemble path is
// exercised deterministically without a live backend.
type MockProvider struct{}

func (MockProvider) Complete(_ context.Context, _ string) (string, error) {
	return `{"score": 0.7, "rationale": "mock judge verdict"}`, nil
}

// LLMJudge asks the provider for a JSON-only verdict and parses it. Parse and
// transport failures both degrade to a zero score with an explanatory
// rationale so the case contributes a low score instead of crashing the run.
type LLMJudge struct {
	provider Provider
}

// NewLLMJudge wraps a provider as a judge.
func NewLLMJudge(provider Provider) *LLMJudge {
	return &LLMJudge{provider: provider}
}

func (j *LLMJudge) Name() string { return "llm" }

func (j *LLMJudge) Judge(ctx context.Context, question, expected, prediction, rubric string) (float64, string) {
	prompt := fmt.Sprintf(
		"You are a strict evaluator. Return JSON with keys score (0..1 float) and rationale.\n"+
			"Rubric: %s\nQuestion: %s\nExpected: %s\nPrediction: %s\n",
		rubric, question, expected, prediction)

	text, err := j.provider.Complete(ctx, prompt)
	if err != nil {
		return 0.0, fmt.Sprintf("judge backend error: %v", err)
	}
	return parseVerdict(text)
}

func parseVerdict(text string) (float64, string) {
	var payload struct {
		Score     float64 `json:"score"`
		Rationale string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		snippet := text
		if len(snippet) > 120 {
			snippet = snippet[:120]
		}
		return 0.0, fmt.Sprintf("unable to parse judge response: %s", snippet)
	}
	return clamp01(payload.Score), payload.Rationale
}
