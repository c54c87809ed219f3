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
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/jacquard/pkg/auth"
)

type principalKey struct{}

func principalFrom(ctx context.Context) auth.Principal {
	principal, _ := ctx.Value(principalKey{}).(auth.Principal)
	return principal
}

// statusRecorder captures the response code for metrics and logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records latency and status per route pattern and logs
// every request.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = r.Method + " " + r.URL.Path
		}
		latencyMS := float64(time.Since(started)) / float64(time.Millisecond)
		s.metrics.RecordRequest(endpoint, latencyMS, recorder.status)
		s.logger.Debug("request handled",
			zap.String("endpoint", endpoint),
			zap.Int("status", recorder.status),
			zap.Float64("latency_ms", latencyMS))
	})
}

// requirePermission authenticates the request and enforces one permission
// before invoking the handler.
func (s *Server) requirePermission(perm auth.Permission, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := ""
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			bearer = strings.TrimPrefix(header, "Bearer ")
		}
		principal, err := s.authn.Authenticate(r.Header.Get("X-API-Key"), bearer)
		if err != nil {
			if errors.Is(err, auth.ErrMissingCredentials) {
				writeError(w, http.StatusUnauthorized, "missing credentials")
				return
			}
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !principal.Role.Can(perm) {
			writeError(w, http.StatusForbidden, "permission denied: "+string(perm))
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		handler(w, r.WithContext(ctx))
	})
}
