package token

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocations is the in-process revocation list used when the gateway
// runs as a single instance. Entries expire lazily on lookup and are garbage
// collected by the janitor.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations builds an empty in-memory revocation list.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke implements RevocationStore. The check and the insert share one
// critical section, so concurrent calls for the same id agree on which one
// revoked it first.
func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) (bool, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if expiry, ok := m.entries[tokenID]; ok && now.Before(expiry) {
		return true, nil
	}
	m.entries[tokenID] = now.Add(ttl)
	return false, nil
}

// IsRevoked implements RevocationStore.
func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.entries[tokenID]
	if !ok {
		return false, nil
	}
	if m.now().After(expiry) {
		delete(m.entries, tokenID)
		return false, nil
	}
	return true, nil
}

// Sweep drops entries whose underlying token has expired.
func (m *MemoryRevocations) Sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, expiry := range m.entries {
		if now.After(expiry) {
			delete(m.entries, id)
		}
	}
}

// StartJanitor sweeps expired entries periodically until ctx is done.
func (m *MemoryRevocations) StartJanitor(ctx context.Context, every time.Duration) {
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
				m.Sweep()
			}
		}
	}()
}
