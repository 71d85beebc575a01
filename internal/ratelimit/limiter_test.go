package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestConsumeWithinQuota(t *testing.T) {
	limiter, err := New(NewMemoryStore(), 5, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	key := UserKey("u-1")

	for i := 1; i <= 5; i++ {
		res, err := limiter.Consume(ctx, key)
		if err != nil {
			t.Fatalf("Consume %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d should be allowed", i)
		}
		if res.Remaining != 5-i {
			t.Fatalf("call %d: expected remaining %d, got %d", i, 5-i, res.Remaining)
		}
		if res.Limit != 5 {
			t.Fatalf("unexpected limit: %d", res.Limit)
		}
	}

	res, err := limiter.Consume(ctx, key)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if res.Allowed {
		t.Fatal("6th call in the window must be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("denied result must report zero remaining, got %d", res.Remaining)
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("denied result must carry a positive retry-after, got %v", res.RetryAfter)
	}
}

func TestConsumeWindowRollover(t *testing.T) {
	current := time.Now()
	store := NewMemoryStore(WithClock(func() time.Time { return current }))
	limiter, err := New(store, 2, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	key := IPKey("10.0.0.1")

	for i := 0; i < 2; i++ {
		if res, _ := limiter.Consume(ctx, key); !res.Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if res, _ := limiter.Consume(ctx, key); res.Allowed {
		t.Fatal("quota should be exhausted")
	}

	current = current.Add(61 * time.Second)

	res, err := limiter.Consume(ctx, key)
	if err != nil {
		t.Fatalf("Consume after rollover: %v", err)
	}
	if !res.Allowed {
		t.Fatal("a new window must admit requests again")
	}
	if res.Remaining != 1 {
		t.Fatalf("counter must restart at one, got remaining %d", res.Remaining)
	}
}

func TestConsumeKeysAreIndependent(t *testing.T) {
	limiter, err := New(NewMemoryStore(), 1, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if res, _ := limiter.Consume(ctx, UserKey("a")); !res.Allowed {
		t.Fatal("first call for key a should be allowed")
	}
	if res, _ := limiter.Consume(ctx, UserKey("a")); res.Allowed {
		t.Fatal("second call for key a should be denied")
	}
	if res, _ := limiter.Consume(ctx, UserKey("b")); !res.Allowed {
		t.Fatal("key b owns its own bucket")
	}
}

func TestConsumeConcurrentExactEnforcement(t *testing.T) {
	const limit = 50
	limiter, err := New(NewMemoryStore(), limit, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	key := GlobalKey()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < limit*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := limiter.Consume(ctx, key)
			if err != nil {
				t.Errorf("Consume: %v", err)
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Fatalf("expected exactly %d admissions, got %d", limit, allowed)
	}
}

func TestKeyString(t *testing.T) {
	cases := []struct {
		key  Key
		want string
	}{
		{UserKey("42"), "user:42"},
		{IPKey("10.1.2.3"), "ip:10.1.2.3"},
		{GlobalKey(), "global"},
	}
	for _, tc := range cases {
		if got := tc.key.String(); got != tc.want {
			t.Fatalf("Key.String() = %q, want %q", got, tc.want)
		}
	}
	if UserKey("42") != UserKey("42") {
		t.Fatal("equal keys must name the same bucket")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	current := time.Now()
	store := NewMemoryStore(WithClock(func() time.Time { return current }))

	if _, _, err := store.Increment(context.Background(), "k", time.Minute); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	current = current.Add(2 * time.Minute)
	store.Sweep()

	count, _, err := store.Increment(context.Background(), "k", time.Minute)
	if err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a fresh window after sweep, got count %d", count)
	}
}
