// Package resilience provides a circuit breaker for store access, so that a failing
// database is not retried once per requested series.
package resilience

import (
	"sync"
	"time"

	"chan-analyzer/internal/errors"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // Normal operation
	CircuitOpen     CircuitState = "OPEN"      // Failing, rejecting calls
	CircuitHalfOpen CircuitState = "HALF_OPEN" // One trial call allowed
)

// ErrCircuitOpen is returned while the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a trial call
	Cooldown time.Duration
	// IsFailure decides which errors count against the circuit. Nil counts every error.
	IsFailure func(error) bool
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}

// CircuitBreaker implements the circuit breaker pattern. It is safe for concurrent use.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	rejected int64
	onChange func(from, to CircuitState)
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// OnStateChange registers a callback invoked on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// Execute runs fn unless the circuit is open.
func Execute[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := cb.allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	cb.record(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			cb.rejected++
			return errors.Wrapf(ErrCircuitOpen, "%s", cb.name)
		}
		cb.transitionTo(CircuitHalfOpen)
	case CircuitHalfOpen:
		// A trial call is already in flight.
		cb.rejected++
		return errors.Wrapf(ErrCircuitOpen, "%s", cb.name)
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		if cb.state != CircuitClosed {
			cb.transitionTo(CircuitClosed)
		}
		return
	}
	if cb.config.IsFailure != nil && !cb.config.IsFailure(err) {
		// The trial proved nothing. openedAt is kept, so the next call is a fresh trial.
		if cb.state == CircuitHalfOpen {
			cb.transitionTo(CircuitOpen)
		}
		return
	}

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.openedAt = cb.now()
		cb.transitionTo(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transitionTo(state CircuitState) {
	if cb.state == state {
		return
	}
	from := cb.state
	cb.state = state
	if state == CircuitClosed {
		cb.failures = 0
	}
	if cb.onChange != nil {
		cb.onChange(from, state)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the circuit breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Rejected returns how many calls were refused while open.
func (cb *CircuitBreaker) Rejected() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.rejected
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(CircuitClosed)
}
