package errors

import (
	"sync"
	"time"
)

// CircuitBreaker cuts an operation off after repeated consecutive
// failures and lets a single probe through once a cool-down has
// passed. The flush daemon keeps one per index, so an index whose
// storage keeps failing is skipped between ticks instead of hammered
// while its rebuild is pending.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	failures  int
	trippedAt time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets how many consecutive failures trip the
// breaker.
func WithFailureThreshold(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.threshold = n
	}
}

// WithCooldown sets how long a tripped breaker blocks before it
// admits a probe.
func WithCooldown(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.cooldown = d
	}
}

// NewCircuitBreaker returns a closed breaker. Defaults suit the flush
// daemon's 5-second tick: trip after 3 consecutive failures, probe
// again after 30 seconds.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      name,
		threshold: 3,
		cooldown:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Failures returns the consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Tripped reports whether the breaker is open.
func (cb *CircuitBreaker) Tripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures >= cb.threshold
}

// Allow reports whether the operation should be attempted. A tripped
// breaker admits one probe per cool-down window; the window restarts
// on each admitted probe so concurrent callers cannot all probe at
// once.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.failures < cb.threshold {
		return true
	}
	if time.Since(cb.trippedAt) >= cb.cooldown {
		cb.trippedAt = time.Now()
		return true
	}
	return false
}

// RecordSuccess closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.failures = 0
	cb.mu.Unlock()
}

// RecordFailure counts one failure. Crossing the threshold trips the
// breaker; a failed probe re-arms the cool-down.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.trippedAt = time.Now()
	}
	cb.mu.Unlock()
}
