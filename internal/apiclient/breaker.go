package apiclient

import (
	"errors"
	"sync"
	"time"
)

// BreakerState represents the current state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed allows all requests through. Failures are counted.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects all requests immediately.
	BreakerOpen
	// BreakerHalfOpen lets a limited number of trial requests through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned by Allow while the breaker rejects calls.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips after a run of consecutive failures and stays open
// for a cool-down before trying the API again. While half-open at most
// successThreshold trial requests are in flight. It is safe for concurrent use. A
// nil *CircuitBreaker allows everything.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            BreakerState
	failures         int
	successes        int
	inFlight         int
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	openedAt         time.Time
	now              func() time.Time

	onChange func(BreakerState)
}

// NewCircuitBreaker creates a circuit breaker.
// failureThreshold: consecutive failures to trip from Closed to Open.
// successThreshold: consecutive successes in HalfOpen to return to Closed.
// timeout: how long to stay Open before trying again.
func NewCircuitBreaker(failureThreshold, successThreshold int, timeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 5
	}
	if successThreshold < 1 {
		successThreshold = 2
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:            BreakerClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		now:              time.Now,
	}
}

// OnStateChange registers fn to be called, with the lock held, whenever the
// breaker changes state.
func (cb *CircuitBreaker) OnStateChange(fn func(BreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// Allow reports whether a request may proceed.
func (cb *CircuitBreaker) Allow() error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpen()
	switch cb.state {
	case BreakerOpen:
		return ErrBreakerOpen
	case BreakerHalfOpen:
		if cb.inFlight >= cb.successThreshold {
			return ErrBreakerOpen
		}
		cb.inFlight++
	}
	return nil
}

// release gives back a trial slot taken by Allow when the request was never
// sent.
func (cb *CircuitBreaker) release() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.endTrial()
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures = 0
	case BreakerHalfOpen:
		cb.endTrial()
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.failures = 0
			cb.successes = 0
			cb.setState(BreakerClosed)
		}
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.trip()
		}
	case BreakerHalfOpen:
		// Any failure while half-open reopens.
		cb.trip()
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	if cb == nil {
		return BreakerClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpen()
	return cb.state
}

// Counts returns the current failure and success counts.
func (cb *CircuitBreaker) Counts() (failures, successes int) {
	if cb == nil {
		return 0, 0
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures, cb.successes
}

// must be called with lock held
func (cb *CircuitBreaker) endTrial() {
	if cb.state == BreakerHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
}

// must be called with lock held
func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.successes = 0
	cb.setState(BreakerOpen)
}

// must be called with lock held
func (cb *CircuitBreaker) maybeHalfOpen() {
	if cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) > cb.timeout {
		cb.successes = 0
		cb.setState(BreakerHalfOpen)
	}
}

// must be called with lock held
func (cb *CircuitBreaker) setState(s BreakerState) {
	if cb.state == s {
		return
	}
	cb.state = s
	cb.inFlight = 0
	if cb.onChange != nil {
		cb.onChange(s)
	}
}
