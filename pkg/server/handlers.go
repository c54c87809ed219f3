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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/teradata-labs/jacquard/pkg/idempotency"
	"github.com/teradata-labs/jacquard/pkg/service"
	"github.com/teradata-labs/jacquard/pkg/types"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRaw(w http.ResponseWriter, status int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

type optimizeRequestBody struct {
	AgentName   string `json:"agent_name"`
	TaskDesc    string `json:"task_desc"`
	DatasetSize int    `json:"dataset_size,omitempty"`
	Profile     string `json:"profile,omitempty"`
	Seed        int64  `json:"seed,omitempty"`
}

type manualParityRequestBody struct {
	AgentName           string  `json:"agent_name"`
	TaskDesc            string  `json:"task_desc"`
	ManualBlueprintPath string  `json:"manual_blueprint_path"`
	DatasetSize         int     `json:"dataset_size,omitempty"`
	Profile             string  `json:"profile,omitempty"`
	Seed                int64   `json:"seed,omitempty"`
	ParityMargin        float64 `json:"parity_margin"`
}

// runIdempotent executes fn under the optional Idempotency-Key header.
// Completed keys replay the cached response with the endpoint's success
// status; in-flight keys conflict.
func (s *Server) runIdempotent(w http.ResponseWriter, r *http.Request, operation string, successStatus int, fn func() (any, error)) {
	principal := principalFrom(r.Context())
	key, hasKey := r.Header["Idempotency-Key"]
	if !hasKey {
		result, err := fn()
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, successStatus, result)
		return
	}

	scope := idempotency.Scope(principal.TenantID, operation)
	headerValue := ""
	if len(key) > 0 {
		headerValue = key[0]
	}
	outcome, cached, err := s.idem.Begin(scope, headerValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch outcome {
	case idempotency.OutcomeReplay:
		writeRaw(w, successStatus, cached)
		return
	case idempotency.OutcomeInProgress:
		writeError(w, http.StatusConflict, "idempotent request in progress")
		return
	}

	result, err := fn()
	if err != nil {
		s.idem.Discard(scope, headerValue)
		writeError(w, statusForError(err), err.Error())
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		s.idem.Discard(scope, headerValue)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.idem.Complete(scope, headerValue, payload)
	writeRaw(w, successStatus, payload)
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var body optimizeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	principal := principalFrom(r.Context())

	s.runIdempotent(w, r, "optimize", http.StatusOK, func() (any, error) {
		report, err := s.svc.Optimize(r.Context(), service.OptimizeRequest{
			AgentName:   principal.ScopedAgentName(body.AgentName),
			TaskDesc:    body.TaskDesc,
			DatasetSize: body.DatasetSize,
			Profile:     body.Profile,
			Seed:        body.Seed,
		})
		if err != nil {
			return nil, err
		}
		report.AgentName = body.AgentName
		return report, nil
	})
}

func (s *Server) handleOptimizeAsync(w http.ResponseWriter, r *http.Request) {
	var body optimizeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	principal := principalFrom(r.Context())
	scopedName := principal.ScopedAgentName(body.AgentName)

	s.runIdempotent(w, r, "optimize_async", http.StatusAccepted, func() (any, error) {
		record := s.queue.Submit("optimize", principal.TenantID, body.AgentName,
			map[string]any{"profile": body.Profile, "seed": body.Seed},
			func() (json.RawMessage, error) {
				report, err := s.svc.Optimize(context.Background(), service.OptimizeRequest{
					AgentName:   scopedName,
					TaskDesc:    body.TaskDesc,
					DatasetSize: body.DatasetSize,
					Profile:     body.Profile,
					Seed:        body.Seed,
				})
				if err != nil {
					return nil, err
				}
				report.AgentName = body.AgentName
				return json.Marshal(report)
			})
		return record, nil
	})
}

func (s *Server) handleManualParity(w http.ResponseWriter, r *http.Request) {
	var body manualParityRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	principal := principalFrom(r.Context())

	s.runIdempotent(w, r, "manual_parity", http.StatusOK, func() (any, error) {
		return s.svc.BenchmarkManualParity(r.Context(), service.ManualParityRequest{
			AgentName:           principal.ScopedAgentName(body.AgentName),
			TaskDesc:            body.TaskDesc,
			ManualBlueprintPath: body.ManualBlueprintPath,
			DatasetSize:         body.DatasetSize,
			Profile:             body.Profile,
			Seed:                body.Seed,
			ParityMargin:        body.ParityMargin,
		})
	})
}

func (s *Server) handleManualParityAsync(w http.ResponseWriter, r *http.Request) {
	var body manualParityRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	principal := principalFrom(r.Context())
	scopedName := principal.ScopedAgentName(body.AgentName)

	s.runIdempotent(w, r, "manual_parity_async", http.StatusAccepted, func() (any, error) {
		record := s.queue.Submit("manual_parity", principal.TenantID, body.AgentName,
			map[string]any{"profile": body.Profile, "seed": body.Seed},
			func() (json.RawMessage, error) {
				report, err := s.svc.BenchmarkManualParity(context.Background(), service.ManualParityRequest{
					AgentName:           scopedName,
					TaskDesc:            body.TaskDesc,
					ManualBlueprintPath: body.ManualBlueprintPath,
					DatasetSize:         body.DatasetSize,
					Profile:             body.Profile,
					Seed:                body.Seed,
					ParityMargin:        body.ParityMargin,
				})
				if err != nil {
					return nil, err
				}
				return json.Marshal(report)
			})
		return record, nil
	})
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	agentName := principal.ScopedAgentName(r.PathValue("agent_name"))

	versions, err := s.svc.ListVersions(r.Context(), agentName)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycleChange(w, r, s.svc.Deploy)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	s.handleLifecycleChange(w, r, s.svc.Rollback)
}

func (s *Server) handleLifecycleChange(
	w http.ResponseWriter,
	r *http.Request,
	change func(context.Context, string, int) (types.AgentVersionRecord, error),
) {
	principal := principalFrom(r.Context())
	agentName := principal.ScopedAgentName(r.PathValue("agent_name"))
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "version must be an integer")
		return
	}

	record, err := change(r.Context(), agentName, version)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	s.logger.Info("version lifecycle changed",
		zap.String("agent", agentName),
		zap.Int("version", version),
		zap.String("lifecycle", string(record.Lifecycle)))
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	principal := principalFrom(r.Context())
	record, ok := s.queue.Get(r.PathValue("job_id"), principal.TenantID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
