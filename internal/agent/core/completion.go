package core

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Completer turns an ordered message list into completion text.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, messages []Message) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// RetryPolicy bounds the attempts of a RetryCompleter.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy makes five attempts, sleeping 0.5s, 1s, 2s and 4s in between.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, InitialBackoff: 500 * time.Millisecond}

// RetryCompleter retries a Completer with exponential backoff. Every failure
// but the last is logged and followed by a sleep; the last is returned as is.
type RetryCompleter struct {
	next   Completer
	policy RetryPolicy
	bus    *Bus
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// RetryOption configures a RetryCompleter.
type RetryOption func(*RetryCompleter)

// WithRetryPolicy overrides DefaultRetryPolicy. Non-positive fields keep their defaults.
func WithRetryPolicy(p RetryPolicy) RetryOption {
	return func(r *RetryCompleter) {
		if p.MaxAttempts > 0 {
			r.policy.MaxAttempts = p.MaxAttempts
		}
		if p.InitialBackoff > 0 {
			r.policy.InitialBackoff = p.InitialBackoff
		}
	}
}

// WithRetryBus reports failed attempts as log_message events.
func WithRetryBus(bus *Bus) RetryOption {
	return func(r *RetryCompleter) { r.bus = bus }
}

// WithRetryLogger sets the zap logger for failed attempts.
func WithRetryLogger(logger *zap.Logger) RetryOption {
	return func(r *RetryCompleter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSleeper replaces the backoff sleep; tests use it to observe delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(r *RetryCompleter) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// NewRetryCompleter wraps next with the retry discipline.
func NewRetryCompleter(next Completer, opts ...RetryOption) *RetryCompleter {
	r := &RetryCompleter{
		next:   next,
		policy: DefaultRetryPolicy,
		logger: zap.NewNop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Complete calls the wrapped completer until it succeeds or attempts run out.
func (r *RetryCompleter) Complete(ctx context.Context, messages []Message) (string, error) {
	initCoreMetrics()
	delay := r.policy.InitialBackoff
	for attempt := 1; ; attempt++ {
		if completionAttempts != nil {
			completionAttempts.Add(ctx, 1)
		}
		out, err := r.next.Complete(ctx, messages)
		if err == nil {
			return out, nil
		}
		final := attempt >= r.policy.MaxAttempts
		if completionFailures != nil {
			completionFailures.Add(ctx, 1, otelmetric.WithAttributes(attribute.Bool("final", final)))
		}
		if final {
			r.logger.Error("completion failed", zap.Int("attempt", attempt), zap.Error(err))
			return "", err
		}
		r.logger.Warn("completion failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.policy.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err))
		r.bus.Log(ctx, fmt.Sprintf("completion attempt %d/%d failed: %v; retrying in %s", attempt, r.policy.MaxAttempts, err, delay))
		if serr := r.sleep(ctx, delay); serr != nil {
			return "", fmt.Errorf("completion retry interrupted: %w", serr)
		}
		delay *= 2
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
