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
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/jacquard/pkg/artifacts"
	"github.com/teradata-labs/jacquard/pkg/auth"
	"github.com/teradata-labs/jacquard/pkg/config"
	"github.com/teradata-labs/jacquard/pkg/executor"
	"github.com/teradata-labs/jacquard/pkg/idempotency"
	"github.com/teradata-labs/jacquard/pkg/jobs"
	"github.com/teradata-labs/jacquard/pkg/judges"
	"github.com/teradata-labs/jacquard/pkg/observability"
	"github.com/teradata-labs/jacquard/pkg/server"
	"github.com/teradata-labs/jacquard/pkg/service"
	"github.com/teradata-labs/jacquard/pkg/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the jacquard HTTP server",
	Long: `Start the optimization service.

The server will:
- Open the SQLite version store
- Wire the workflow executor and judge backends
- Start the async job workers and artifact retention schedule
- Listen for HTTP requests on the configured host and port

Press Ctrl+C to gracefully shut down.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := storage.Open(cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("open version store: %w", err)
	}
	defer func() { _ = store.Close() }()

	artifactStore, err := buildArtifactStore(cfg)
	if err != nil {
		return err
	}
	exec := buildExecutor(cfg, logger)
	provider, err := buildJudgeProvider(cfg)
	if err != nil {
		return err
	}
	authCfg, err := buildAuthConfig(cfg)
	if err != nil {
		return err
	}

	svc, err := service.New(cfg, store, artifactStore, exec, provider, logger)
	if err != nil {
		return err
	}

	metrics := observability.NewMetricsRegistry()
	queue := jobs.NewQueue(cfg.AsyncJobWorkers, jobs.Hooks{
		Submitted: metrics.RecordAsyncJobSubmitted,
		Succeeded: metrics.RecordAsyncJobSucceeded,
		Failed:    metrics.RecordAsyncJobFailed,
	}, logger)
	defer queue.Close()

	if cfg.ArtifactCleanupSchedule != "" && strings.EqualFold(cfg.ArtifactStoreBackend, "local") {
		scheduler, err := artifacts.NewCleanupScheduler(cfg.ArtifactsDir, cfg.ArtifactCleanupSchedule, artifacts.CleanupOptions{
			RetentionDays:      cfg.ArtifactRetentionDays,
			KeepLatestPerAgent: cfg.ArtifactKeepLatest,
		}, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := server.New(cfg.Addr(), svc, queue, idempotency.NewStore(),
		auth.NewAuthenticator(authCfg, logger), metrics, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func buildLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func buildArtifactStore(cfg *config.Config) (artifacts.Store, error) {
	switch strings.ToLower(cfg.ArtifactStoreBackend) {
	case "memory":
		return artifacts.NewMemoryStore(), nil
	default:
		return artifacts.NewLocalStore(cfg.ArtifactsDir)
	}
}

func buildExecutor(cfg *config.Config, logger *zap.Logger) executor.Executor {
	if strings.EqualFold(cfg.Executor.Mode, "external") {
		client := executor.NewHTTPRuntimeClient(cfg.Executor.RuntimeURL)
		return executor.NewExternalExecutor(client, executor.ExternalConfig{
			Timeout:          secondsToDuration(cfg.Executor.TimeoutSeconds),
			MaxRetries:       cfg.Executor.MaxRetries,
			RetryBackoff:     secondsToDuration(cfg.Executor.RetryBackoffSeconds),
			CircuitThreshold: cfg.Executor.CircuitFailureThreshold,
			CircuitReset:     secondsToDuration(cfg.Executor.CircuitResetSeconds),
		}, logger)
	}
	return executor.NewMockExecutor()
}

func buildJudgeProvider(cfg *config.Config) (judges.Provider, error) {
	if !strings.EqualFold(cfg.Judge.Backend, "llm") {
		return nil, nil
	}
	return judges.NewOpenAIProvider(judges.OpenAIConfig{
		APIKey:  cfg.Judge.APIKey,
		Model:   cfg.Judge.Model,
		BaseURL: cfg.Judge.BaseURL,
	})
}

// buildAuthConfig decodes the JSON-valued auth settings. API keys map a key
// string to its identity; JWT keys map a kid to its HS256 secret.
func buildAuthConfig(cfg *config.Config) (auth.Config, error) {
	authCfg := auth.Config{
		Enabled:   cfg.Auth.Enabled,
		Issuer:    cfg.Auth.JWTIssuer,
		Audience:  cfg.Auth.JWTAudience,
		ClockSkew: secondsToDuration(float64(cfg.Auth.ClockSkewSeconds)),
	}
	if !cfg.Auth.Enabled {
		return authCfg, nil
	}

	type keyIdentity struct {
		TenantID  string `json:"tenant_id"`
		Role      string `json:"role"`
		Principal string `json:"principal"`
	}
	rawKeys := map[string]keyIdentity{}
	if cfg.Auth.APIKeysJSON != "" {
		if err := json.Unmarshal([]byte(cfg.Auth.APIKeysJSON), &rawKeys); err != nil {
			return auth.Config{}, fmt.Errorf("parse auth.api_keys_json: %w", err)
		}
	}
	authCfg.APIKeys = make(map[string]auth.APIKeyIdentity, len(rawKeys))
	for key, identity := range rawKeys {
		authCfg.APIKeys[key] = auth.APIKeyIdentity{
			TenantID:  identity.TenantID,
			Role:      auth.Role(identity.Role),
			Principal: identity.Principal,
		}
	}

	authCfg.JWTSecrets = map[string]string{}
	if cfg.Auth.JWTKeysJSON != "" {
		if err := json.Unmarshal([]byte(cfg.Auth.JWTKeysJSON), &authCfg.JWTSecrets); err != nil {
			return auth.Config{}, fmt.Errorf("parse auth.jwt_keys_json: %w", err)
		}
	}
	if len(authCfg.APIKeys) == 0 && len(authCfg.JWTSecrets) == 0 {
		return auth.Config{}, fmt.Errorf("auth is enabled but no api keys or jwt secrets are configured")
	}
	return authCfg, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
