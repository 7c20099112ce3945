package utils

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestConcurrencyScriptsCompile(t *testing.T) {
	if concurrencyAcquireScript == nil || concurrencyReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestClaimIdempotencyKey_RejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	// Never dialed; argument validation happens first.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	cases := []struct {
		name string
		rdb  *redis.Client
		key  string
		ttl  time.Duration
	}{
		{"nil client", nil, "voice:cb:CA1:completed", time.Minute},
		{"empty key", rdb, "", time.Minute},
		{"zero ttl", rdb, "voice:cb:CA1:completed", 0},
		{"negative ttl", rdb, "voice:cb:CA1:completed", -time.Second},
	}

	for _, tc := range cases {
		fresh, err := ClaimIdempotencyKey(ctx, tc.rdb, tc.key, tc.ttl)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if fresh {
			t.Errorf("%s: fresh = true on rejected arguments", tc.name)
		}
	}
}

func TestConcurrencyCap_RejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = rdb.Close() })

	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Minute); err == nil {
		t.Errorf("nil client: expected error")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "", 1, time.Minute); err == nil {
		t.Errorf("empty key: expected error")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "k", 0, time.Minute); err == nil {
		t.Errorf("zero limit: expected error")
	}
	if _, err := AcquireConcurrencyCap(ctx, rdb, "k", 1, 0); err == nil {
		t.Errorf("zero ttl: expected error")
	}
	if err := ReleaseConcurrencyCap(ctx, nil, "k"); err == nil {
		t.Errorf("nil client release: expected error")
	}
	if err := ReleaseConcurrencyCap(ctx, rdb, ""); err == nil {
		t.Errorf("empty key release: expected error")
	}
}
