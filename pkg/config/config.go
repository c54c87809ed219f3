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

// Package config loads service configuration from environment variables and
// an optional config file, with defaults for every knob.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	AppName string `mapstructure:"app_name"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`

	DatabasePath string `mapstructure:"database_path"`

	ArtifactsDir         string `mapstructure:"artifacts_dir"`
	ManualBlueprintsDir  string `mapstructure:"manual_blueprints_dir"`
	ArtifactStoreBackend string `mapstructure:"artifact_store_backend"` // local|memory

	ArtifactRetentionDays   int    `mapstructure:"artifact_retention_days"`
	ArtifactKeepLatest      int    `mapstructure:"artifact_keep_latest"`
	ArtifactCleanupSchedule string `mapstructure:"artifact_cleanup_schedule"`

	Executor ExecutorConfig `mapstructure:"executor"`
	Judge    JudgeConfig    `mapstructure:"judge"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Search   SearchConfig   `mapstructure:"search"`

	FailureTaxonomyRulesFile string `mapstructure:"failure_taxonomy_rules_file"`
	AsyncJobWorkers          int    `mapstructure:"async_job_workers"`
}

// ExecutorConfig tunes the external runtime adapter.
type ExecutorConfig struct {
	Mode                    string  `mapstructure:"mode"` // mock|external
	RuntimeURL              string  `mapstructure:"runtime_url"`
	TimeoutSeconds          float64 `mapstructure:"timeout_seconds"`
	MaxRetries              int     `mapstructure:"max_retries"`
	RetryBackoffSeconds     float64 `mapstructure:"retry_backoff_seconds"`
	CircuitFailureThreshold int     `mapstructure:"circuit_failure_threshold"`
	CircuitResetSeconds     float64 `mapstructure:"circuit_reset_seconds"`
}

// JudgeConfig selects and configures the LLM judge backend.
type JudgeConfig struct {
	Backend string `mapstructure:"backend"` // mock|llm
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// AuthConfig controls API-key and JWT validation.
type AuthConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	APIKeysJSON      string `mapstructure:"api_keys_json"`
	JWTKeysJSON      string `mapstructure:"jwt_keys_json"`
	JWTIssuer        string `mapstructure:"jwt_issuer"`
	JWTAudience      string `mapstructure:"jwt_audience"`
	ClockSkewSeconds int    `mapstructure:"clock_skew_seconds"`
	DefaultTenantID  string `mapstructure:"default_tenant_id"`
}

// SearchConfig carries the dataset and search loop sizing knobs.
type SearchConfig struct {
	DefaultDatasetSize     int     `mapstructure:"default_dataset_size"`
	MaxSearchRounds        int     `mapstructure:"max_search_rounds"`
	MaxExpansionsPerRound  int     `mapstructure:"max_expansions_per_round"`
	MaxPromptCandidates    int     `mapstructure:"max_prompt_candidates"`
	TrainRatio             float64 `mapstructure:"train_ratio"`
	ValRatio               float64 `mapstructure:"val_ratio"`
	TestRatio              float64 `mapstructure:"test_ratio"`
}

// Load reads configuration from the environment (prefix JACQUARD_) and an
// optional jacquard.yaml in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("JACQUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("jacquard")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no environment overrides applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "jacquard")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8008)

	v.SetDefault("database_path", "./jacquard.db")

	v.SetDefault("artifacts_dir", "./artifacts")
	v.SetDefault("manual_blueprints_dir", "./artifacts/manual_blueprints")
	v.SetDefault("artifact_store_backend", "local")
	v.SetDefault("artifact_retention_days", 30)
	v.SetDefault("artifact_keep_latest", 3)
	v.SetDefault("artifact_cleanup_schedule", "")

	v.SetDefault("executor.mode", "mock")
	v.SetDefault("executor.runtime_url", "")
	v.SetDefault("executor.timeout_seconds", 30.0)
	v.SetDefault("executor.max_retries", 2)
	v.SetDefault("executor.retry_backoff_seconds", 0.5)
	v.SetDefault("executor.circuit_failure_threshold", 5)
	v.SetDefault("executor.circuit_reset_seconds", 30.0)

	v.SetDefault("judge.backend", "mock")
	v.SetDefault("judge.api_key", "")
	v.SetDefault("judge.base_url", "")
	v.SetDefault("judge.model", "gpt-4.1-mini")

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_keys_json", "{}")
	v.SetDefault("auth.jwt_keys_json", "{}")
	v.SetDefault("auth.jwt_issuer", "")
	v.SetDefault("auth.jwt_audience", "")
	v.SetDefault("auth.clock_skew_seconds", 30)
	v.SetDefault("auth.default_tenant_id", "default")

	v.SetDefault("search.default_dataset_size", 12)
	v.SetDefault("search.max_search_rounds", 10)
	v.SetDefault("search.max_expansions_per_round", 3)
	v.SetDefault("search.max_prompt_candidates", 4)
	v.SetDefault("search.train_ratio", 0.6)
	v.SetDefault("search.val_ratio", 0.2)
	v.SetDefault("search.test_ratio", 0.2)

	v.SetDefault("failure_taxonomy_rules_file", "")
	v.SetDefault("async_job_workers", 2)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Search.DefaultDatasetSize < 6 || c.Search.DefaultDatasetSize > 30 {
		return fmt.Errorf("default_dataset_size must be in [6, 30], got %d", c.Search.DefaultDatasetSize)
	}
	if c.Search.MaxSearchRounds < 1 || c.Search.MaxSearchRounds > 100 {
		return fmt.Errorf("max_search_rounds must be in [1, 100], got %d", c.Search.MaxSearchRounds)
	}
	if c.Search.MaxExpansionsPerRound < 1 || c.Search.MaxExpansionsPerRound > 10 {
		return fmt.Errorf("max_expansions_per_round must be in [1, 10], got %d", c.Search.MaxExpansionsPerRound)
	}
	if c.Search.MaxPromptCandidates < 2 || c.Search.MaxPromptCandidates > 8 {
		return fmt.Errorf("max_prompt_candidates must be in [2, 8], got %d", c.Search.MaxPromptCandidates)
	}
	ratioSum := c.Search.TrainRatio + c.Search.ValRatio + c.Search.TestRatio
	if ratioSum < 1.0-1e-6 || ratioSum > 1.0+1e-6 {
		return fmt.Errorf("split ratios must sum to 1.0, got %.3f", ratioSum)
	}
	switch strings.ToLower(c.ArtifactStoreBackend) {
	case "local", "memory":
	default:
		return fmt.Errorf("unsupported artifact store backend: %s", c.ArtifactStoreBackend)
	}
	switch strings.ToLower(c.Executor.Mode) {
	case "mock", "external":
	default:
		return fmt.Errorf("unsupported executor mode: %s", c.Executor.Mode)
	}
	switch strings.ToLower(c.Judge.Backend) {
	case "mock", "llm":
	default:
		return fmt.Errorf("unsupported judge backend: %s", c.Judge.Backend)
	}
	if c.Executor.TimeoutSeconds <= 0 {
		return fmt.Errorf("executor timeout must be positive")
	}
	if c.AsyncJobWorkers < 1 {
		return fmt.Errorf("async_job_workers must be >= 1")
	}
	return nil
}

// Addr is the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
