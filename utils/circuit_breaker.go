package utils

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker guards a flaky dependency (the verification cache) so
// that a dead backend costs one timed-out call per cooldown window instead
// of one per request.
type CircuitBreaker struct {
	name                string
	cooldown            time.Duration
	failureThreshold    uint32
	recoveryThreshold   uint32

	mutex  sync.Mutex
	state  State
	counts Counts
	opened time.Time
}

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:              name,
		cooldown:          30 * time.Second,
		failureThreshold:  5,
		recoveryThreshold: 2,
		state:             StateClosed,
	}
}

// Execute runs req unless the breaker is open. A req error counts against
// the breaker; a (nil, nil) result counts as success.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func() (any, error)) (any, error) {
	if err := cb.beforeRequest(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := req()
	cb.afterRequest(err == nil)
	return result, err
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() State {
	if cb.state == StateOpen && time.Since(cb.opened) >= cb.cooldown {
		cb.state = StateHalfOpen
		cb.counts = Counts{}
	}
	return cb.state
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.stateLocked() == StateOpen {
		return ErrCircuitOpen
	}
	cb.counts.Requests++
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if success {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.recoveryThreshold {
			cb.state = StateClosed
			cb.counts = Counts{}
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	if cb.state == StateHalfOpen || cb.counts.ConsecutiveFailures >= cb.failureThreshold {
		cb.state = StateOpen
		cb.opened = time.Now()
	}
}
