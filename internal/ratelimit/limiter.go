// Package ratelimit bounds the request rate per key with a fixed-size quota
// over a rolling window. Counter state lives behind a small store interface
// so a single instance can use an in-process map while a scaled deployment
// shares counters through Redis.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultLimit and DefaultWindow match the deployment default of
	// 100 requests per 60 seconds.
	DefaultLimit  = 100
	DefaultWindow = 60 * time.Second
)

// Key names one bucket of quota. Equality is structural: same kind and
// value means the same bucket.
type Key struct {
	Kind  string
	Value string
}

func (k Key) String() string {
	if k.Value == "" {
		return k.Kind
	}
	return k.Kind + ":" + k.Value
}

// UserKey buckets by authenticated user id.
func UserKey(id string) Key { return Key{Kind: "user", Value: id} }

// IPKey buckets by caller network address.
func IPKey(addr string) Key { return Key{Kind: "ip", Value: addr} }

// GlobalKey is the single full-system bucket.
func GlobalKey() Key { return Key{Kind: "global"} }

// Result reports the outcome of one consume call. Denial is a normal
// outcome, not an error; RetryAfter is the time until the window resets and
// is populated on every result.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// CounterStore increments the per-key counter, starting a fresh window when
// none is active, and reports the new count plus the time until the window
// resets. Increments must be atomic: two concurrent calls may never observe
// the same count.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int64, reset time.Duration, err error)
}

// Limiter enforces a fixed quota per key.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
}

// New builds a Limiter. Limit and window must be positive.
func New(store CounterStore, limit int, window time.Duration) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	if limit <= 0 {
		return nil, errors.New("ratelimit: limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("ratelimit: window must be positive")
	}
	return &Limiter{store: store, limit: limit, window: window}, nil
}

// Limit reports the configured quota.
func (l *Limiter) Limit() int { return l.limit }

// Window reports the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Consume counts one request against the key's bucket. The error return is
// reserved for store failures; quota exhaustion is reported via the result.
func (l *Limiter) Consume(ctx context.Context, key Key) (Result, error) {
	count, reset, err := l.store.Increment(ctx, key.String(), l.window)
	if err != nil {
		return Result{}, err
	}
	if reset <= 0 {
		reset = l.window
	}
	res := Result{
		Limit:      l.limit,
		RetryAfter: reset,
	}
	if count > int64(l.limit) {
		return res, nil
	}
	res.Allowed = true
	res.Remaining = l.limit - int(count)
	return res, nil
}
