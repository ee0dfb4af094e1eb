package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRateLimiterAllow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := New(rdb, 2)
	now := time.Date(2026, 2, 13, 10, 0, 30, 0, time.UTC)

	allowed, used, resetAt, err := rl.Allow(context.Background(), "10.0.0.1", now)
	if err != nil {
		t.Fatalf("allow#1: %v", err)
	}
	if !allowed || used != 1 {
		t.Fatalf("expected first call allowed with used=1, got allowed=%v used=%d", allowed, used)
	}
	if want := time.Date(2026, 2, 13, 10, 1, 0, 0, time.UTC); !resetAt.Equal(want) {
		t.Fatalf("expected reset at %s, got %s", want, resetAt)
	}

	allowed, used, _, err = rl.Allow(context.Background(), "10.0.0.1", now)
	if err != nil {
		t.Fatalf("allow#2: %v", err)
	}
	if !allowed || used != 2 {
		t.Fatalf("expected second call allowed with used=2, got allowed=%v used=%d", allowed, used)
	}

	allowed, used, _, err = rl.Allow(context.Background(), "10.0.0.1", now)
	if err != nil {
		t.Fatalf("allow#3: %v", err)
	}
	if allowed || used != 3 {
		t.Fatalf("expected third call denied with used=3, got allowed=%v used=%d", allowed, used)
	}

	allowed, _, _, err = rl.Allow(context.Background(), "10.0.0.2", now)
	if err != nil {
		t.Fatalf("allow other client: %v", err)
	}
	if !allowed {
		t.Fatalf("expected a different client to have its own window")
	}
}

func TestRateLimiterNextWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	rl := New(rdb, 1)
	now := time.Date(2026, 2, 13, 10, 0, 59, 0, time.UTC)

	if allowed, _, _, err := rl.Allow(context.Background(), "c", now); err != nil || !allowed {
		t.Fatalf("expected first call allowed, got allowed=%v err=%v", allowed, err)
	}
	if allowed, _, _, err := rl.Allow(context.Background(), "c", now); err != nil || allowed {
		t.Fatalf("expected second call denied, got allowed=%v err=%v", allowed, err)
	}
	if allowed, used, _, err := rl.Allow(context.Background(), "c", now.Add(time.Second)); err != nil || !allowed || used != 1 {
		t.Fatalf("expected fresh window, got allowed=%v used=%d err=%v", allowed, used, err)
	}
}

func TestRateLimiterRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	if _, _, _, err := New(rdb, 5).Allow(context.Background(), "c", time.Now()); err == nil {
		t.Fatalf("expected error when redis is unreachable")
	}
}
