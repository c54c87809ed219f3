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
	"fmt"
	"sync"
	"time"
)

// circuitBreaker counts consecutive failed executions. When the count
// reaches the threshold the circuit opens for resetTimeout; while open,
// calls short-circuit without reaching the runtime. A single success closes
// the circuit and resets the counter.
type circuitBreaker struct {
	mu                  sync.Mutex
	threshold           int
	resetTimeout        time.Duration
	consecutiveFailures int
	openUntil           time.Time
	now                 func() time.Time
}

func newCircuitBreaker(threshold int, resetTimeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// checkOpen returns a non-empty detail string while the circuit is open.
func (cb *circuitBreaker) checkOpen() (string, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := cb.now()
	if now.Before(cb.openUntil) {
		remaining := cb.openUntil.Sub(now)
		return fmt.Sprintf("runtime circuit open, retry after %.2fs", remaining.Seconds()), true
	}
	return "", false
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.openUntil = time.Time{}
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures++
	if cb.consecutiveFailures >= cb.threshold {
		cb.openUntil = cb.now().Add(cb.resetTimeout)
	}
}
