package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestReadLimiterConfig(t *testing.T) {
	cfg := ReadLimiterConfig()
	if cfg.RequestsPerSecond != 180 {
		t.Errorf("RequestsPerSecond = %v, want 180", cfg.RequestsPerSecond)
	}
}

func TestSubmitLimiterConfig(t *testing.T) {
	cfg := SubmitLimiterConfig()
	if cfg.RequestsPerSecond != 45 {
		t.Errorf("RequestsPerSecond = %v, want 45", cfg.RequestsPerSecond)
	}
	if cfg.RequestsPerSecond >= ReadLimiterConfig().RequestsPerSecond {
		t.Error("submit queue must stay below the read queue so hop submissions can't starve balance polling")
	}
}

func TestRateLimiter_WaitBlocksPastBurst(t *testing.T) {
	rl := New(RateLimitConfig{RequestsPerSecond: 5, Burst: 1})

	ctx := context.Background()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	deadline := time.Now().Add(50 * time.Millisecond)
	ctx2, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	if err := rl.Wait(ctx2); err == nil {
		t.Error("expected second Wait within the same burst window to block past the deadline")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := New(RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	rl.Allow()

	if rl.Allow() {
		t.Fatal("expected burst exhausted before reset")
	}

	rl.Reset()
	if !rl.Allow() {
		t.Error("expected a fresh token immediately after Reset")
	}
}

func TestRateLimiter_PerMinuteLimitExceeded(t *testing.T) {
	rl := New(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1})
	if rl.PerMinuteLimitExceeded() {
		t.Error("first call should not exceed the per-minute bucket")
	}
}
