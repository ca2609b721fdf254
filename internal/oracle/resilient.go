package oracle

import (
	"context"
	"log/slog"
	"time"
)

// Resilient wraps a Client with per-call timeouts, bounded retries, a
// circuit breaker and a guaranteed fallback. Its Query never returns an
// error: oracle unavailability degrades to the deterministic fallback
// response rather than surfacing to the research loop.
type Resilient struct {
	inner    Client
	fallback Client
	breaker  *Breaker
	attempts int
	delay    time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// ResilientConfig configures the resilient wrapper.
type ResilientConfig struct {
	// Client is the real oracle. Nil means fallback-only operation.
	Client Client

	// Attempts is the number of tries per query. Default 3.
	Attempts int

	// Delay is the pause between retries. Default 5 seconds.
	Delay time.Duration

	// Timeout bounds each individual attempt. Default 60 seconds.
	Timeout time.Duration

	// Breaker overrides the default circuit breaker.
	Breaker *Breaker

	// Logger for degradation events.
	Logger *slog.Logger
}

// NewResilient creates the wrapper.
func NewResilient(cfg ResilientConfig) *Resilient {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Breaker == nil {
		cfg.Breaker = NewBreaker(DefaultBreakerConfig())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resilient{
		inner:    cfg.Client,
		fallback: Fallback{},
		breaker:  cfg.Breaker,
		attempts: cfg.Attempts,
		delay:    cfg.Delay,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}
}

// Query implements Client.
func (r *Resilient) Query(ctx context.Context, prompt string, opts Options) (string, error) {
	if r.inner == nil {
		return r.fallback.Query(ctx, prompt, opts)
	}

	if err := r.breaker.Allow(); err != nil {
		r.logger.Debug("oracle circuit open, using fallback")
		return r.fallback.Query(ctx, prompt, opts)
	}

	var lastErr error
retry:
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retry
			case <-time.After(r.delay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		text, err := r.inner.Query(callCtx, prompt, opts)
		cancel()
		if err == nil {
			r.breaker.RecordSuccess()
			return text, nil
		}
		lastErr = err
		r.logger.Warn("oracle query failed", "attempt", attempt+1, "error", err)
	}

	r.breaker.RecordFailure()
	r.logger.Warn("oracle unavailable, using fallback", "error", lastErr)
	return r.fallback.Query(ctx, prompt, opts)
}
