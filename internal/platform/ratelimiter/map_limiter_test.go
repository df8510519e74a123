package ratelimiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNilLimiterNeverThrottles(t *testing.T) {
	l := New(0, 1, 0)
	if l != nil {
		t.Fatal("expected nil limiter for zero rate")
	}
	if !l.Allow("alice") {
		t.Fatal("nil limiter must allow")
	}
	if err := l.Wait(context.Background(), "alice"); err != nil {
		t.Fatalf("nil limiter wait: %v", err)
	}
}

func TestAllowIsPerKey(t *testing.T) {
	l := New(0.001, 1, time.Minute)
	if !l.Allow("alice") {
		t.Fatal("first call must pass")
	}
	if l.Allow("alice") {
		t.Fatal("second call must be throttled")
	}
	if !l.Allow("bob") {
		t.Fatal("other keys have their own bucket")
	}
	if !l.Allow("  ") {
		t.Fatal("blank keys are not throttled")
	}
}

func TestWaitRespectsContext(t *testing.T) {
	l := New(0.001, 1, time.Minute)
	if err := l.Wait(context.Background(), "alice"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "alice"); err == nil {
		t.Fatal("expected wait to fail before the next token")
	}
}

func TestIdleKeysAreEvicted(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	l.Allow("stale")
	now = now.Add(2 * time.Minute)
	for i := 0; i < evictEvery; i++ {
		l.Allow("fresh")
	}
	if l.Len() != 1 {
		t.Fatalf("expected stale key evicted, have %d keys", l.Len())
	}
}

func TestWaitCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var l *MapLimiter
	if err := l.Wait(ctx, "alice"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
