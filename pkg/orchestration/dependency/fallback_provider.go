package dependency

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// FallbackProvider[T] wraps a primary operation with a secondary,
// degraded-mode implementation used when the primary fails or its
// circuit breaker is open. It never returns the primary's error to the
// caller if a fallback is configured — callers instead observe a
// degraded result plus usage metrics.
type FallbackProvider[T any] struct {
	name     string
	primary  func(ctx context.Context) (T, error)
	fallback func(ctx context.Context) (T, error)
	breaker  *CircuitBreaker
	logger   *logrus.Logger

	primaryHits  int64
	fallbackHits int64
	failures     int64
}

// NewFallbackProvider constructs a provider. breaker may be nil, in which
// case the primary is always attempted.
func NewFallbackProvider[T any](name string, primary, fallback func(ctx context.Context) (T, error), breaker *CircuitBreaker, logger *logrus.Logger) *FallbackProvider[T] {
	if logger == nil {
		logger = logrus.New()
	}
	return &FallbackProvider[T]{name: name, primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

// Get runs the primary (if its breaker allows it), falling back on any
// error or an open breaker.
func (p *FallbackProvider[T]) Get(ctx context.Context) (T, bool, error) {
	if p.breaker == nil || p.breaker.Allow() {
		var result T
		var err error
		if p.breaker != nil {
			err = p.breaker.Execute(func() error {
				var innerErr error
				result, innerErr = p.primary(ctx)
				return innerErr
			})
		} else {
			result, err = p.primary(ctx)
		}

		if err == nil {
			atomic.AddInt64(&p.primaryHits, 1)
			return result, false, nil
		}
		atomic.AddInt64(&p.failures, 1)
		p.logger.WithError(err).WithField("provider", p.name).Warn("fallback provider: primary failed, degrading")
	}

	if p.fallback == nil {
		var zero T
		return zero, true, ErrNoFallbackAvailable
	}

	result, err := p.fallback(ctx)
	if err != nil {
		var zero T
		return zero, true, err
	}
	atomic.AddInt64(&p.fallbackHits, 1)
	return result, true, nil
}

// Metrics is a snapshot of usage counters.
type Metrics struct {
	PrimaryHits  int64
	FallbackHits int64
	Failures     int64
}

// Metrics returns a snapshot of this provider's usage counters.
func (p *FallbackProvider[T]) Metrics() Metrics {
	return Metrics{
		PrimaryHits:  atomic.LoadInt64(&p.primaryHits),
		FallbackHits: atomic.LoadInt64(&p.fallbackHits),
		Failures:     atomic.LoadInt64(&p.failures),
	}
}

// ErrNoFallbackAvailable is returned when the primary fails and no
// fallback function was configured.
var ErrNoFallbackAvailable = errNoFallback{}

type errNoFallback struct{}

func (errNoFallback) Error() string { return "dependency: primary failed and no fallback configured" }

// DependencyManager tracks every registered FallbackProvider by name, for
// health reporting / metrics export.
type DependencyManager struct {
	mu        sync.RWMutex
	providers map[string]interface{ Metrics() Metrics }
}

// NewDependencyManager constructs an empty manager.
func NewDependencyManager() *DependencyManager {
	return &DependencyManager{providers: map[string]interface{ Metrics() Metrics }{}}
}

// Register records a provider under name for later metrics retrieval.
func (m *DependencyManager) Register(name string, p interface{ Metrics() Metrics }) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
}

// AllMetrics returns a snapshot of every registered provider's metrics.
func (m *DependencyManager) AllMetrics() map[string]Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Metrics, len(m.providers))
	for name, p := range m.providers {
		out[name] = p.Metrics()
	}
	return out
}
