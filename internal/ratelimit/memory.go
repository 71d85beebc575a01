package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	count  int64
	start  time.Time
	window time.Duration
}

// MemoryStore keeps fixed-window counters in a mutexed map. Suitable for a
// single gateway instance; use RedisStore when counters must be shared.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
}

var _ CounterStore = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewMemoryStore builds an empty in-process counter store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment implements CounterStore. The count and the reset time come from
// the same critical section, so concurrent callers at the quota boundary
// observe strictly increasing counts.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.Sub(e.start) >= e.window {
		e = &windowEntry{start: now, window: window}
		s.entries[key] = e
	}
	e.count++
	reset := e.window - now.Sub(e.start)
	return e.count, reset, nil
}

// Sweep drops buckets whose window has elapsed.
func (s *MemoryStore) Sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if now.Sub(e.start) >= e.window {
			delete(s.entries, key)
		}
	}
}

// StartJanitor sweeps stale buckets periodically until ctx is done.
func (s *MemoryStore) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}
