package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the current state of a circuit breaker.
type State string

const (
	// StateClosed lets every call through.
	StateClosed State = "closed"
	// StateOpen short-circuits every call until the open timeout elapses.
	StateOpen State = "open"
	// StateHalfOpen lets a single probe through to test the dependency.
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned by Execute while the circuit rejects calls.
var ErrCircuitOpen = errors.New("circuit open")

// Config holds circuit breaker settings.
type Config struct {
	Name             string
	FailureThreshold uint          // consecutive failures that open the circuit
	SuccessThreshold uint          // half-open successes that close it again
	OpenTimeout      time.Duration // how long the circuit stays open before probing
}

// DefaultConfig returns the settings used for upstream HTTP dependencies.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OpenTimeout:      30 * time.Second,
	}
}

// CircuitBreaker stops calling a failing dependency for a while after a run
// of consecutive failures.
type CircuitBreaker struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      uint
	successes     uint
	probing       bool
	nextAttemptAt time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg Config, logger zerolog.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		cfg:    cfg,
		logger: logger.With().Str("breaker", cfg.Name).Logger(),
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.record(err)
	return err
}

// ExecuteContext runs fn unless ctx is already done or the circuit is open.
// A failure that coincides with ctx ending is the caller giving up, so it
// is not counted against the dependency.
func (cb *CircuitBreaker) ExecuteContext(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		cb.release()
		return err
	}
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Before(cb.nextAttemptAt) {
			return false
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.probing = true
		cb.logger.Info().Msg("circuit breaker half-open")
		return true
	case StateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return false
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false

	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.open()
		}
		return
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.successes = 0
			cb.logger.Info().Msg("circuit breaker closed")
		}
	}
}

// release frees a half-open probe slot without recording an outcome.
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.nextAttemptAt = cb.now().Add(cb.cfg.OpenTimeout)
	cb.logger.Warn().
		Uint("failures", cb.failures).
		Time("next_attempt", cb.nextAttemptAt).
		Msg("circuit breaker opened")
	cb.failures = 0
}
