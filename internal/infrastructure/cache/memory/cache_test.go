package memory

import (
	"context"
	"testing"
	"time"
)

func TestCachePutGetRoundTrip(t *testing.T) {
	cache := New()
	ctx := context.Background()

	if err := cache.Put(ctx, "k1", []byte(`{"answer":"x"}`), time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	payload, ok, err := cache.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Get() = ok=%v err=%v, want hit", ok, err)
	}
	if string(payload) != `{"answer":"x"}` {
		t.Fatalf("payload = %q", payload)
	}

	if _, ok, _ := cache.Get(ctx, "missing"); ok {
		t.Fatalf("unknown key must miss")
	}
}

func TestCacheExpiresLazily(t *testing.T) {
	cache := New()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := base
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	if err := cache.Put(ctx, "k1", []byte("v"), 15*time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	now = base.Add(14 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "k1"); !ok {
		t.Fatalf("entry expired before its TTL")
	}

	now = base.Add(16 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "k1"); ok {
		t.Fatalf("entry survived past its TTL")
	}
	// The expired entry is dropped, not just hidden.
	if len(cache.entries) != 0 {
		t.Fatalf("expired entry still resident: %d entries", len(cache.entries))
	}
}

func TestCachePutCopiesValue(t *testing.T) {
	cache := New()
	ctx := context.Background()

	value := []byte("original")
	if err := cache.Put(ctx, "k1", value, time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	value[0] = 'X'

	payload, ok, _ := cache.Get(ctx, "k1")
	if !ok || string(payload) != "original" {
		t.Fatalf("stored payload mutated via caller slice: %q", payload)
	}
}

func TestCachePutOverwrites(t *testing.T) {
	cache := New()
	ctx := context.Background()

	_ = cache.Put(ctx, "k1", []byte("old"), time.Minute)
	_ = cache.Put(ctx, "k1", []byte("new"), time.Minute)

	payload, ok, _ := cache.Get(ctx, "k1")
	if !ok || string(payload) != "new" {
		t.Fatalf("overwrite failed, got %q", payload)
	}
}
