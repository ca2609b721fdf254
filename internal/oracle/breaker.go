package oracle

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the availability state tracked for the oracle.
type CircuitState int

const (
	// StateClosed allows calls through (oracle considered healthy).
	StateClosed CircuitState = iota

	// StateOpen short-circuits calls straight to the fallback.
	StateOpen

	// StateHalfOpen allows one probe call to test recovery.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Allow when the oracle is considered down.
var ErrCircuitOpen = errors.New("oracle circuit open")

// BreakerConfig configures the oracle circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default 3.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before a probe
	// is allowed. Default 60 seconds.
	RecoveryTimeout time.Duration
}

// DefaultBreakerConfig returns the default breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Breaker tracks consecutive oracle failures so a dead provider does not
// impose its timeout on every experiment; once open, queries go straight
// to the fallback until the recovery window elapses.
type Breaker struct {
	mu       sync.Mutex
	config   BreakerConfig
	state    CircuitState
	failures int
	openedAt time.Time

	// now is replaceable for tests.
	now func() time.Time
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	return &Breaker{config: cfg, now: time.Now}
}

// Allow reports whether a call may proceed. When the recovery timeout has
// elapsed on an open circuit it transitions to half-open and admits a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.config.RecoveryTimeout {
			b.state = StateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess closes the circuit and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
}

// RecordFailure counts a failure; at the threshold the circuit opens.
// A failed half-open probe reopens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.config.FailureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
