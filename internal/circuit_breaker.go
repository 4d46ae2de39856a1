package internal

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type breakerState uint8

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	}
	return "closed"
}

// CircuitBreaker stops calls to a failing dependency. After openDuration one
// trial call is let through; its outcome closes or reopens the breaker.
type CircuitBreaker struct {
	name         string
	threshold    int
	window       time.Duration
	openDuration time.Duration
	now          func() time.Time

	mu       sync.Mutex
	state    breakerState
	failures []time.Time
	openedAt time.Time
}

// NewCircuitBreaker opens after threshold failures inside window.
func NewCircuitBreaker(name string, threshold int, window, openDuration time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &CircuitBreaker{
		name:         name,
		threshold:    threshold,
		window:       window,
		openDuration: openDuration,
		now:          time.Now,
	}
}

// Allow reports whether a call may proceed. A nil breaker always allows.
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.openDuration {
			return false
		}
		cb.transition(breakerHalfOpen)
		return true
	case breakerHalfOpen:
		// trial call in flight
		return false
	}
	return true
}

// RecordFailure counts a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	if cb.state == breakerHalfOpen {
		cb.open(now)
		return
	}

	cutoff := now.Add(-cb.window)
	kept := cb.failures[:0]
	for _, t := range cb.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	cb.failures = append(kept, now)

	if cb.state == breakerClosed && len(cb.failures) >= cb.threshold {
		cb.open(now)
	}
}

// RecordSuccess closes the breaker and forgets past failures.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = cb.failures[:0]
	if cb.state != breakerClosed {
		cb.transition(breakerClosed)
	}
}

// State returns closed, open or half-open.
func (cb *CircuitBreaker) State() string {
	if cb == nil {
		return breakerClosed.String()
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}

func (cb *CircuitBreaker) open(now time.Time) {
	cb.openedAt = now
	cb.failures = cb.failures[:0]
	cb.transition(breakerOpen)
}

func (cb *CircuitBreaker) transition(to breakerState) {
	zap.S().Warnw("circuit breaker state change", "breaker", cb.name, "from", cb.state.String(), "to", to.String())
	cb.state = to
}
