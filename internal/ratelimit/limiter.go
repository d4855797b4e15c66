// Package ratelimit implements a fixed-window request counter.
//
// Time is split into windows of equal length. Each (key, window) pair owns a
// counter in a shared store; the first hit in a window sets the counter's TTL
// so it cleans itself up. Bursts of up to twice the limit are possible across
// a window boundary.
package ratelimit

import (
	"context"
	"strconv"
	"time"
)

// DefaultPrefix namespaces counter keys in a shared store.
const DefaultPrefix = "ratelimit:"

// Limiter gates requests per key using a Counter.
type Limiter struct {
	counter Counter
	prefix  string
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithPrefix sets the counter key prefix.
func WithPrefix(prefix string) Option {
	return func(l *Limiter) { l.prefix = prefix }
}

// WithClock replaces the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter over counter.
func New(counter Counter, opts ...Option) *Limiter {
	l := &Limiter{
		counter: counter,
		prefix:  DefaultPrefix,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow counts one hit for key and reports whether it is within maxRequests
// for the current window. Store errors are returned to the caller, which
// decides whether to fail open.
func (l *Limiter) Allow(
	ctx context.Context,
	key string,
	maxRequests int,
	window time.Duration,
) (bool, error) {
	counterKey := l.counterKey(key, window)

	count, err := l.counter.Incr(ctx, counterKey)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.counter.Expire(ctx, counterKey, window); err != nil {
			return false, err
		}
	}
	return count <= int64(maxRequests), nil
}

// RetryAfter returns the time left in the current window, at least one second.
func (l *Limiter) RetryAfter(window time.Duration) time.Duration {
	if window <= 0 {
		return time.Second
	}
	elapsed := time.Duration(l.now().UnixMilli()%window.Milliseconds()) * time.Millisecond
	left := window - elapsed
	if left < time.Second {
		return time.Second
	}
	return left
}

func (l *Limiter) counterKey(key string, window time.Duration) string {
	windowID := l.now().UnixMilli() / window.Milliseconds()
	return l.prefix + key + ":" + strconv.FormatInt(windowID, 10)
}
