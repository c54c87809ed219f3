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
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "jacquard", cfg.AppName)
	assert.Equal(t, 12, cfg.Search.DefaultDatasetSize)
	assert.Equal(t, "mock", cfg.Executor.Mode)
	assert.Equal(t, "mock", cfg.Judge.Backend)
	assert.Equal(t, "local", cfg.ArtifactStoreBackend)
	assert.Equal(t, 2, cfg.AsyncJobWorkers)
	assert.Equal(t, "default", cfg.Auth.DefaultTenantID)
	assert.Equal(t, "0.0.0.0:8008", cfg.Addr())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"dataset size too small", func(c *Config) { c.Search.DefaultDatasetSize = 3 }},
		{"dataset size too large", func(c *Config) { c.Search.DefaultDatasetSize = 99 }},
		{"bad ratios", func(c *Config) { c.Search.TrainRatio = 0.9 }},
		{"bad backend", func(c *Config) { c.ArtifactStoreBackend = "s3" }},
		{"bad executor mode", func(c *Config) { c.Executor.Mode = "remote" }},
		{"bad judge backend", func(c *Config) { c.Judge.Backend = "oracle" }},
		{"zero timeout", func(c *Config) { c.Executor.TimeoutSeconds = 0 }},
		{"zero workers", func(c *Config) { c.AsyncJobWorkers = 0 }},
		{"too many rounds", func(c *Config) { c.Search.MaxSearchRounds = 101 }},
		{"too few candidates", func(c *Config) { c.Search.MaxPromptCandidates = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadPicksUpEnvironment(t *testing.T) {
	t.Setenv("JACQUARD_PORT", "9090")
	t.Setenv("JACQUARD_EXECUTOR_MODE", "external")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "external", cfg.Executor.Mode)
}
