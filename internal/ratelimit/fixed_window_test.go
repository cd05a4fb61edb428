package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisLimiterBlocksAfterLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := NewRedisLimiter(mr.Addr(), "", "test", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	ctx := context.Background()

	if !l.Allow(ctx, "1.2.3.4") || !l.Allow(ctx, "1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow(ctx, "1.2.3.4") {
		t.Fatal("third request should be limited")
	}
	if !l.Allow(ctx, "5.6.7.8") {
		t.Fatal("other keys are counted separately")
	}
}

func TestRedisLimiterFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := NewRedisLimiter(mr.Addr(), "", "test", 5, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	mr.Close()
	if l.Allow(context.Background(), "k") {
		t.Fatal("expected fail-closed when redis is down")
	}
}

func TestMemoryLimiterResetsPerWindow(t *testing.T) {
	l, err := NewMemoryLimiter(1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if !l.Allow(ctx, "k") {
		t.Fatal("first request should pass")
	}
	if l.Allow(ctx, "k") {
		t.Fatal("second request in same window should be limited")
	}
	now = now.Add(time.Minute)
	if !l.Allow(ctx, "k") {
		t.Fatal("new window should reset the count")
	}
}

func TestNewLimiterValidates(t *testing.T) {
	if _, err := NewMemoryLimiter(0, time.Minute); err == nil {
		t.Fatal("expected error for zero limit")
	}
	if _, err := NewRedisLimiter("", "", "", 1, time.Minute); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestRedisLimiterKeysPerClientIP(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := NewRedisLimiter(mr.Addr(), "", "authorsite:login", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	ctx := context.Background()

	if !l.Allow(ctx, "10.0.0.1") || !l.Allow(ctx, "10.0.0.2") {
		t.Fatal("first attempt from each IP should pass")
	}
	if l.Allow(ctx, "10.0.0.1") {
		t.Fatal("second attempt from the same IP should be refused")
	}
	if !l.Allow(ctx, " ") || l.Allow(ctx, "") {
		t.Fatal("requests without a client IP should share one bucket")
	}

	var ipKeys int
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "authorsite:login:10.0.0.") {
			ipKeys++
		}
	}
	if ipKeys != 2 {
		t.Fatalf("per-IP keys = %d, want 2 (%v)", ipKeys, mr.Keys())
	}
}
