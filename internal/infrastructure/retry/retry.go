// Package retry re-runs failed operations with exponential or linear backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

// Strategy selects how the delay grows between attempts.
type Strategy string

// Supported strategies
const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
)

// Config controls retries.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     Strategy
}

// DefaultConfig returns three exponential attempts starting at one second.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Strategy:     StrategyExponential,
	}
}

// Predicate reports whether err is worth another attempt.
type Predicate func(err error) bool

// Operation is the unit of work being retried.
type Operation func(ctx context.Context) (any, error)

// AlwaysRetry is the default predicate.
func AlwaysRetry(error) bool { return true }

// Handler runs operations with retries.
type Handler struct {
	cfg       Config
	retryable Predicate
	logger    *logging.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithPredicate sets which errors are retried.
func WithPredicate(p Predicate) Option {
	return func(h *Handler) {
		if p != nil {
			h.retryable = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// New creates a Handler.
func New(cfg Config, opts ...Option) *Handler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyExponential
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	h := &Handler{
		cfg:       cfg,
		retryable: AlwaysRetry,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.OrDefault(h.logger).Named("retry")
	return h
}

// Delay returns the sleep before the attempt that follows attempt (numbered
// from 1).
func (h *Handler) Delay(attempt int) time.Duration {
	b := h.newBackOff()
	b.Reset()
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

func (h *Handler) newBackOff() backoff.BackOff {
	if h.cfg.Strategy == StrategyLinear {
		return &linearBackOff{initial: h.cfg.InitialDelay, max: h.cfg.MaxDelay}
	}
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(h.cfg.InitialDelay),
		backoff.WithMaxInterval(h.cfg.MaxDelay),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)
}

// WithRetries runs op up to MaxAttempts times. The last failure, or the first
// failure the predicate rejects, is returned as is. Sleeps end early when ctx
// is done.
func (h *Handler) WithRetries(ctx context.Context, op Operation) (any, error) {
	attempt := 1
	operation := func() (any, error) {
		res, err := op(ctx)
		if err != nil && !h.retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, delay time.Duration) {
		h.logger.Warn("operation failed, retrying", logging.Fields{
			"attempt":     attempt,
			"maxAttempts": h.cfg.MaxAttempts,
			"delay":       delay,
			"error":       err,
		})
		attempt++
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(h.newBackOff(), uint64(h.cfg.MaxAttempts-1)),
		ctx,
	)
	return backoff.RetryNotifyWithData(operation, b, notify)
}

// linearBackOff grows the delay by the initial interval on every attempt.
type linearBackOff struct {
	initial time.Duration
	max     time.Duration
	attempt int64
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	d := b.initial * time.Duration(b.attempt)
	if b.max > 0 && d > b.max {
		d = b.max
	}
	return d
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
