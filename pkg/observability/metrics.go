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

// Package observability collects request and async-job telemetry in a
// process-local registry exposed at /metrics.
package observability

import "sync"

type endpointMetric struct {
	count        int64
	errorCount   int64
	latencyMSSum float64
}

// EndpointSnapshot is one endpoint's aggregate at snapshot time.
type EndpointSnapshot struct {
	Count        int64   `json:"count"`
	ErrorCount   int64   `json:"error_count"`
	LatencyMSSum float64 `json:"latency_ms_sum"`
	LatencyMSAvg float64 `json:"latency_ms_avg"`
}

// Snapshot is the full registry state at one instant.
type Snapshot struct {
	RequestsTotal           int64                       `json:"requests_total"`
	ErrorsTotal             int64                       `json:"errors_total"`
	AsyncJobsSubmittedTotal int64                       `json:"async_jobs_submitted_total"`
	AsyncJobsSucceededTotal int64                       `json:"async_jobs_succeeded_total"`
	AsyncJobsFailedTotal    int64                       `json:"async_jobs_failed_total"`
	Endpoints               map[string]EndpointSnapshot `json:"endpoints"`
}

// MetricsRegistry aggregates counters under a single mutex. Endpoints are
// keyed "METHOD /path".
type MetricsRegistry struct {
	mu                 sync.Mutex
	requestsTotal      int64
	errorsTotal        int64
	asyncJobsSubmitted int64
	asyncJobsSucceeded int64
	asyncJobsFailed    int64
	endpoints          map[string]*endpointMetric
}

func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{endpoints: make(map[string]*endpointMetric)}
}

// RecordRequest counts one handled request. Status codes >= 500 count as
// errors both globally and per endpoint.
func (m *MetricsRegistry) RecordRequest(endpoint string, latencyMS float64, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestsTotal++
	metric, ok := m.endpoints[endpoint]
	if !ok {
		metric = &endpointMetric{}
		m.endpoints[endpoint] = metric
	}
	metric.count++
	if latencyMS > 0 {
		metric.latencyMSSum += latencyMS
	}
	if statusCode >= 500 {
		metric.errorCount++
		m.errorsTotal++
	}
}

func (m *MetricsRegistry) RecordAsyncJobSubmitted() {
	m.mu.Lock()
	m.asyncJobsSubmitted++
	m.mu.Unlock()
}

func (m *MetricsRegistry) RecordAsyncJobSucceeded() {
	m.mu.Lock()
	m.asyncJobsSucceeded++
	m.mu.Unlock()
}

func (m *MetricsRegistry) RecordAsyncJobFailed() {
	m.mu.Lock()
	m.asyncJobsFailed++
	m.mu.Unlock()
}

// Snapshot copies the registry state, computing per-endpoint averages.
func (m *MetricsRegistry) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	endpoints := make(map[string]EndpointSnapshot, len(m.endpoints))
	for endpoint, metric := range m.endpoints {
		avg := 0.0
		if metric.count > 0 {
			avg = metric.latencyMSSum / float64(metric.count)
		}
		endpoints[endpoint] = EndpointSnapshot{
			Count:        metric.count,
			ErrorCount:   metric.errorCount,
			LatencyMSSum: metric.latencyMSSum,
			LatencyMSAvg: avg,
		}
	}
	return Snapshot{
		RequestsTotal:           m.requestsTotal,
		ErrorsTotal:             m.errorsTotal,
		AsyncJobsSubmittedTotal: m.asyncJobsSubmitted,
		AsyncJobsSucceededTotal: m.asyncJobsSucceeded,
		AsyncJobsFailedTotal:    m.asyncJobsFailed,
		Endpoints:               endpoints,
	}
}
