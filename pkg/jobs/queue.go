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

// Package jobs runs long optimize and parity requests on an in-process
// worker pool so HTTP handlers can return 202 and poll.
package jobs

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status is the lifecycle of one async job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Runner produces the job result payload.
type Runner func() (json.RawMessage, error)

// Record is a point-in-time snapshot of one job. Get returns copies, so
// callers never observe concurrent mutation.
type Record struct {
	JobID     string          `json:"job_id"`
	JobType   string          `json:"job_type"`
	TenantID  string          `json:"tenant_id"`
	AgentName string          `json:"agent_name"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Metadata  map[string]any  `json:"metadata"`
}

// Hooks receives job lifecycle events, used by the metrics registry.
type Hooks struct {
	Submitted func()
	Succeeded func()
	Failed    func()
}

type task struct {
	jobID  string
	runner Runner
}

// Queue is a bounded FIFO worker pool. Jobs run in submission order across
// the configured workers.
type Queue struct {
	mu     sync.Mutex
	jobs   map[string]*Record
	tasks  chan task
	wg     sync.WaitGroup
	logger *zap.Logger
	hooks  Hooks
	now    func() time.Time

	closeOnce sync.Once
}

// NewQueue starts workers goroutines (default 2 when workers <= 0).
func NewQueue(workers int, hooks Hooks, logger *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		jobs:   make(map[string]*Record),
		tasks:  make(chan task, 256),
		logger: logger,
		hooks:  hooks,
		now:    time.Now,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit registers a queued job and hands it to the pool. The returned
// snapshot reflects the queued state.
func (q *Queue) Submit(jobType, tenantID, agentName string, metadata map[string]any, runner Runner) Record {
	now := q.now()
	job := &Record{
		JobID:     "job-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		JobType:   jobType,
		TenantID:  tenantID,
		AgentName: agentName,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  copyMetadata(metadata),
	}
	q.mu.Lock()
	q.jobs[job.JobID] = job
	snapshot := snapshotOf(job)
	q.mu.Unlock()

	if q.hooks.Submitted != nil {
		q.hooks.Submitted()
	}
	q.tasks <- task{jobID: job.JobID, runner: runner}
	return snapshot
}

// Get returns a snapshot of the job. Jobs owned by another tenant are
// reported as missing.
func (q *Queue) Get(jobID, tenantID string) (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok || job.TenantID != tenantID {
		return Record{}, false
	}
	return snapshotOf(job), true
}

// Close stops accepting work and waits for in-flight jobs to finish.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.tasks) })
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		q.setRunning(t.jobID)
		result, err := t.runner()
		if err != nil {
			q.setFailed(t.jobID, err.Error())
			if q.hooks.Failed != nil {
				q.hooks.Failed()
			}
			continue
		}
		q.setSucceeded(t.jobID, result)
		if q.hooks.Succeeded != nil {
			q.hooks.Succeeded()
		}
	}
}

func (q *Queue) setRunning(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[jobID]; ok {
		job.Status = StatusRunning
		job.UpdatedAt = q.now()
	}
}

func (q *Queue) setSucceeded(jobID string, result json.RawMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[jobID]; ok {
		job.Status = StatusSucceeded
		job.Result = result
		job.Error = ""
		job.UpdatedAt = q.now()
	}
}

func (q *Queue) setFailed(jobID, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[jobID]; ok {
		job.Status = StatusFailed
		job.Error = message
		job.UpdatedAt = q.now()
		q.logger.Warn("async job failed",
			zap.String("job_id", jobID),
			zap.String("job_type", job.JobType),
			zap.String("error", message))
	}
}

func snapshotOf(job *Record) Record {
	snapshot := *job
	snapshot.Metadata = copyMetadata(job.Metadata)
	if job.Result != nil {
		snapshot.Result = make(json.RawMessage, len(job.Result))
		copy(snapshot.Result, job.Result)
	}
	return snapshot
}

func copyMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
