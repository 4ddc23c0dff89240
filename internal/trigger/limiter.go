// Package trigger notifies the downstream batch job, at most once per window.
package trigger

import (
	"context"
	"log"
	"time"

	"helius-swap-ingest/internal/observability"
)

// Outcome is the result of one MaybeTrigger call.
type Outcome string

const (
	OutcomeFired      Outcome = "fired"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeFailed     Outcome = "failed"
)

// Limiter wraps a Caller with a minimum-interval gate.
type Limiter struct {
	gate    Gate
	caller  Caller
	now     func() time.Time
	timeout time.Duration
	logger  *log.Logger
}

// LimiterOptions contains configuration for creating a Limiter.
type LimiterOptions struct {
	Caller   Caller
	Gate     Gate             // Default: NewLocalGate(Interval)
	Interval time.Duration    // Default: DefaultInterval; ignored when Gate is set
	Timeout  time.Duration    // Default: DefaultTimeout
	Now      func() time.Time // Default: time.Now
	Logger   *log.Logger
}

// NewLimiter creates a new trigger limiter.
func NewLimiter(opts LimiterOptions) *Limiter {
	gate := opts.Gate
	if gate == nil {
		gate = NewLocalGate(opts.Interval)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Limiter{
		gate:    gate,
		caller:  opts.Caller,
		now:     now,
		timeout: timeout,
		logger:  logger,
	}
}

// MaybeTrigger calls the downstream job unless one was triggered within the
// current window. A failed call still consumes the window. Errors are logged
// and reported only through the returned Outcome.
func (l *Limiter) MaybeTrigger(ctx context.Context, conf Conf) Outcome {
	if !l.gate.Allow(ctx, l.now()) {
		l.logger.Printf("DAG trigger skipped for raw_id %d: triggered less than a window ago", conf.RawID)
		observability.RecordTrigger(string(OutcomeSuppressed))
		return OutcomeSuppressed
	}

	callCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.caller.Trigger(callCtx, conf); err != nil {
		l.logger.Printf("Failed to trigger DAG for raw_id %d: %v", conf.RawID, err)
		observability.RecordTrigger(string(OutcomeFailed))
		return OutcomeFailed
	}

	l.logger.Printf("Triggered DAG for raw_id %d", conf.RawID)
	observability.RecordTrigger(string(OutcomeFired))
	return OutcomeFired
}
