package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	MaxRequests      uint32
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
	Logger           *zap.Logger
}

// CircuitBreaker trips after consecutive failures and probes again after
// Timeout. Used to keep a flaky cache from slowing down the request path.
type CircuitBreaker struct {
	name             string
	maxRequests      uint32
	timeout          time.Duration
	failureThreshold uint32
	successThreshold uint32
	logger           *zap.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	requests   uint32
	successes  uint32
	failures   uint32
	expiry     time.Time
}

func New(name string, cfg Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		maxRequests:      cfg.MaxRequests,
		timeout:          cfg.Timeout,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		logger:           cfg.Logger,
	}

	if cb.maxRequests == 0 {
		cb.maxRequests = 1
	}
	if cb.timeout == 0 {
		cb.timeout = 60 * time.Second
	}
	if cb.failureThreshold == 0 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold == 0 {
		cb.successThreshold = 2
	}

	return cb
}

func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	generation, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		cb.afterRequest(generation, false)
		return err
	}

	err = fn()
	cb.afterRequest(generation, err == nil)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	state, _ := cb.currentState(time.Now())
	return state
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, generation := cb.currentState(time.Now())

	if state == StateOpen {
		return generation, ErrCircuitOpen
	}
	if state == StateHalfOpen && cb.requests >= cb.maxRequests {
		return generation, ErrTooManyRequests
	}

	cb.requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(before uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, generation := cb.currentState(now)
	if generation != before {
		return
	}

	if success {
		cb.successes++
		cb.failures = 0
		if state == StateHalfOpen && cb.successes >= cb.successThreshold {
			cb.setState(StateClosed, now)
		}
		return
	}

	cb.failures++
	cb.successes = 0
	if state == StateHalfOpen || (state == StateClosed && cb.failures >= cb.failureThreshold) {
		cb.setState(StateOpen, now)
	}
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	if cb.state == StateOpen && cb.expiry.Before(now) {
		cb.setState(StateHalfOpen, now)
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	cb.generation++
	cb.requests = 0
	cb.successes = 0
	cb.failures = 0

	if state == StateOpen {
		cb.expiry = now.Add(cb.timeout)
	} else {
		cb.expiry = time.Time{}
	}

	if cb.logger != nil {
		cb.logger.Info("Circuit breaker state changed",
			zap.String("name", cb.name),
			zap.String("from", prev.String()),
			zap.String("to", state.String()),
		)
	}
}
