// Package ratelimit implements process-local token buckets keyed by a string,
// usually "global" or a tool name.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/miguelarios/productboard-mcp-server-sub002/internal/infrastructure/logging"
)

// GlobalKey is the bucket every tool call is charged against.
const GlobalKey = "global"

// Limit is a bucket capacity refilled over a window. A non-positive
// Requests value disables limiting for the bucket.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Config holds the global limit and per-key overrides.
type Config struct {
	Global  Limit
	PerTool map[string]Limit
}

// Usage is a snapshot of one bucket.
type Usage struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

type bucket struct {
	mu         sync.Mutex
	tokens     int
	limit      int
	window     time.Duration
	lastRefill time.Time
}

// refill must be called with mu held.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed >= b.window {
		b.tokens = b.limit
		b.lastRefill = now
		return
	}
	add := int(float64(elapsed) / float64(b.window) * float64(b.limit))
	if add > 0 {
		b.tokens += add
		if b.tokens > b.limit {
			b.tokens = b.limit
		}
		b.lastRefill = now
	}
}

// Limiter hands out tokens from per-key buckets.
type Limiter struct {
	cfg     Config
	buckets sync.Map
	now     func() time.Time
	logger  *logging.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// New creates a Limiter.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = logging.OrDefault(l.logger).Named("ratelimit")
	return l
}

func (l *Limiter) limitFor(key string) Limit {
	if override, ok := l.cfg.PerTool[key]; ok {
		return override
	}
	return l.cfg.Global
}

// HasOverride reports whether key has its own limit.
func (l *Limiter) HasOverride(key string) bool {
	_, ok := l.cfg.PerTool[key]
	return ok
}

func (l *Limiter) bucket(key string) *bucket {
	if b, ok := l.buckets.Load(key); ok {
		return b.(*bucket)
	}
	limit := l.limitFor(key)
	b, _ := l.buckets.LoadOrStore(key, &bucket{
		tokens:     limit.Requests,
		limit:      limit.Requests,
		window:     limit.Window,
		lastRefill: l.now(),
	})
	return b.(*bucket)
}

// CheckLimit refills the bucket for key and takes one token. It reports
// whether a token was available.
func (l *Limiter) CheckLimit(key string) bool {
	b := l.bucket(key)
	if b.limit <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(l.now())
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// WaitForSlot blocks until a token for key is taken or ctx is done.
func (l *Limiter) WaitForSlot(ctx context.Context, key string) error {
	if l.CheckLimit(key) {
		return nil
	}

	b := l.bucket(key)
	interval := b.window / time.Duration(b.limit)
	if interval <= 0 {
		interval = time.Millisecond
	}
	l.logger.Debug("waiting for rate limit slot", logging.Fields{
		"key":      key,
		"interval": interval,
	})

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if l.CheckLimit(key) {
			return nil
		}
		timer.Reset(interval)
	}
}

// Usage returns a snapshot of the bucket for key without taking a token.
func (l *Limiter) Usage(key string) Usage {
	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit > 0 {
		b.refill(l.now())
	}
	return Usage{
		Limit:     b.limit,
		Remaining: b.tokens,
		ResetAt:   b.lastRefill.Add(b.window),
	}
}

// Release returns a token taken for key, for callers that took it but were
// then refused by a later check. The bucket never exceeds its limit.
func (l *Limiter) Release(key string) {
	b := l.bucket(key)
	if b.limit <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tokens < b.limit {
		b.tokens++
	}
}

// Reset restores the bucket for key to full capacity.
func (l *Limiter) Reset(key string) {
	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = b.limit
	b.lastRefill = l.now()
}
