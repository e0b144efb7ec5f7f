package tokenbackoff

import (
	"sync"
	"time"
)

// CircuitState is one of the three gate states described in spec.md §4.2.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

const (
	tripThreshold = 3
	cooldown      = 5 * time.Minute
)

// CircuitBreaker is a per-instance (never shared globally) three-state
// gate that suppresses calls after consecutive failures and probes
// recovery after a cooldown.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       CircuitState
	failures    int
	openedAt    time.Time
	nowFunc     func() time.Time
}

// NewCircuitBreaker constructs a closed breaker.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{state: StateClosed, nowFunc: time.Now}
}

func (cb *CircuitBreaker) now() time.Time {
	if cb.nowFunc != nil {
		return cb.nowFunc()
	}
	return time.Now()
}

// ShouldSkip reports whether a caller should skip issuing a call right
// now. When the cooldown has elapsed while open, exactly one call
// transitions the breaker to half-open and returns false; every other
// open call returns true.
func (cb *CircuitBreaker) ShouldSkip() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cooldown {
			cb.state = StateHalfOpen
			return false
		}
		return true
	default:
		return false
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
}

// RecordFailure increments the consecutive-failure count. Three
// consecutive failures trip the breaker open. A failure observed while
// half-open immediately re-opens it (treated as the 3rd consecutive
// failure) and resets the cooldown.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.failures = tripThreshold
		cb.state = StateOpen
		cb.openedAt = cb.now()
		return
	}

	cb.failures++
	if cb.failures >= tripThreshold {
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

// State returns the current state, mostly for tests and diagnostics.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
