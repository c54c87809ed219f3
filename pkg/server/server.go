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

// Package server exposes the optimization service over HTTP with auth,
// metrics, idempotency and async job endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/jacquard/pkg/auth"
	"github.com/teradata-labs/jacquard/pkg/idempotency"
	"github.com/teradata-labs/jacquard/pkg/jobs"
	"github.com/teradata-labs/jacquard/pkg/observability"
	"github.com/teradata-labs/jacquard/pkg/service"
)

// Server wires handlers, middleware and runtime services.
type Server struct {
	svc        *service.Service
	queue      *jobs.Queue
	idem       *idempotency.Store
	authn      *auth.Authenticator
	metrics    *observability.MetricsRegistry
	logger     *zap.Logger
	httpServer *http.Server
}

func New(
	addr string,
	svc *service.Service,
	queue *jobs.Queue,
	idem *idempotency.Store,
	authn *auth.Authenticator,
	metrics *observability.MetricsRegistry,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:     svc,
		queue:   queue,
		idem:    idem,
		authn:   authn,
		metrics: metrics,
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler builds the routed handler with metrics and auth middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("POST /v1/agents/optimize",
		s.requirePermission(auth.PermOptimizeRun, s.handleOptimize))
	mux.Handle("POST /v1/agents/optimize/async",
		s.requirePermission(auth.PermOptimizeRun, s.handleOptimizeAsync))
	mux.Handle("GET /v1/agents/{agent_name}/versions",
		s.requirePermission(auth.PermVersionsRead, s.handleListVersions))
	mux.Handle("POST /v1/agents/{agent_name}/versions/{version}/deploy",
		s.requirePermission(auth.PermVersionsDeploy, s.handleDeploy))
	mux.Handle("POST /v1/agents/{agent_name}/versions/{version}/rollback",
		s.requirePermission(auth.PermVersionsRollback, s.handleRollback))
	mux.Handle("POST /v1/agents/benchmark/manual-parity",
		s.requirePermission(auth.PermParityRun, s.handleManualParity))
	mux.Handle("POST /v1/agents/benchmark/manual-parity/async",
		s.requirePermission(auth.PermParityRun, s.handleManualParityAsync))
	mux.Handle("GET /v1/agents/jobs/{job_id}",
		s.requirePermission(auth.PermVersionsRead, s.handleGetJob))

	return s.metricsMiddleware(mux)
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
