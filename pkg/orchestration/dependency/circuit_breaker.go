// Package dependency provides the hand-rolled CircuitBreaker and
// FallbackProvider used to guard every call into an external backend
// (NLP, search, notification) per the documented sony/gobreaker wraps the raw
// HTTP/SDK transport one layer below this package; this layer is the
// domain-level breaker whose state the rest of the system reasons about.
package dependency

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/internal/clock"
)

// State is one of the three circuit breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// minSamples is the minimum number of calls observed in the current
// window before a failure rate is trusted to trip the breaker — a
// breaker seeing 1 failure out of 1 call should not open on noise.
const minSamples = 5

// CircuitBreaker guards calls to a single named external dependency.
type CircuitBreaker struct {
	name             string
	failureThreshold float64 // failure rate in [0,1] that trips the breaker
	recoveryTimeout  time.Duration
	halfOpenTrials   int
	clock            clock.Clock
	logger           *logrus.Logger

	mu             sync.Mutex
	state          State
	successes      int
	failures       int
	openedAt       time.Time
	halfOpenCalls  int
	halfOpenErrors int
}

// NewCircuitBreaker constructs a breaker in the closed state.
// failureThreshold is a rate in [0,1]; halfOpenTrials bounds how many
// calls are allowed through while probing recovery.
func NewCircuitBreaker(name string, failureThreshold float64, recoveryTimeout time.Duration, halfOpenTrials int, clk clock.Clock, logger *logrus.Logger) *CircuitBreaker {
	if halfOpenTrials <= 0 {
		halfOpenTrials = 3
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		halfOpenTrials:   halfOpenTrials,
		clock:            clk,
		logger:           logger,
		state:            StateClosed,
	}
}

// State returns the breaker's current state, transitioning open->half-open
// if the recovery timeout has elapsed.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecover()
	return b.state
}

func (b *CircuitBreaker) maybeRecover() {
	if b.state == StateOpen && b.clock.Now().Sub(b.openedAt) >= b.recoveryTimeout {
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		b.halfOpenErrors = 0
		b.logger.WithField("breaker", b.name).Info("circuit breaker: open -> half-open")
	}
}

// Allow reports whether a call should be permitted, without executing it.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecover()

	switch b.state {
	case StateOpen:
		return false
	case StateHalfOpen:
		return b.halfOpenCalls < b.halfOpenTrials
	default:
		return true
	}
}

// Execute runs fn if the breaker allows it, recording the outcome.
// Returns CircuitOpenError without calling fn if the breaker is open.
func (b *CircuitBreaker) Execute(fn func() error) error {
	if !b.Allow() {
		return apperrors.NewCircuitOpenError(b.name)
	}

	err := fn()
	b.record(err == nil)
	return err
}

func (b *CircuitBreaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.halfOpenCalls++
		if !success {
			b.halfOpenErrors++
		}
		if b.halfOpenCalls >= b.halfOpenTrials {
			if b.halfOpenErrors == 0 {
				b.reset()
				b.logger.WithField("breaker", b.name).Info("circuit breaker: half-open -> closed")
			} else {
				b.trip()
			}
		}
	default:
		if success {
			b.successes++
		} else {
			b.failures++
		}
		total := b.successes + b.failures
		if total >= minSamples {
			rate := float64(b.failures) / float64(total)
			if rate >= b.failureThreshold {
				b.trip()
			}
		}
	}
}

func (b *CircuitBreaker) trip() {
	b.state = StateOpen
	b.openedAt = b.clock.Now()
	b.successes = 0
	b.failures = 0
	b.logger.WithField("breaker", b.name).Warn("circuit breaker: tripped open")
}

func (b *CircuitBreaker) reset() {
	b.state = StateClosed
	b.successes = 0
	b.failures = 0
	b.halfOpenCalls = 0
	b.halfOpenErrors = 0
}

// Name returns the breaker's name.
func (b *CircuitBreaker) Name() string { return b.name }
