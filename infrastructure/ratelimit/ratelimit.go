// Package ratelimit provides the dual per-second/per-minute token buckets
// the Connection Layer uses to throttle reads and submissions independently
// against the chain RPC endpoint (§4.3's cooperative read/submit queues).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures a RateLimiter's per-second bucket; the
// per-minute bucket is derived from it (60x the rate, 2x the burst) so a
// caller only tunes one number per queue.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	Window            time.Duration
}

// ReadLimiterConfig is the Connection Layer's read-queue policy (§4.3):
// 180 getBalance/getLatestBlockhash/getSignatureStatuses calls per second.
func ReadLimiterConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 180, Burst: 180, Window: time.Second}
}

// SubmitLimiterConfig is the Connection Layer's submit-queue policy (§4.3):
// 45 sendTransaction calls per second, kept well under the read queue so a
// burst of hop submissions never starves balance polling.
func SubmitLimiterConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 45, Burst: 45, Window: time.Second}
}

// RateLimiter wraps two golang.org/x/time/rate limiters: a per-second bucket
// enforced by Wait, and a per-minute bucket exposed via PerMinuteLimitExceeded
// for callers that want to surface sustained throttling (e.g. an operator
// stats command) without blocking on it.
type RateLimiter struct {
	limiter   *rate.Limiter
	perMinute *rate.Limiter
	mu        sync.RWMutex
	config    RateLimitConfig
}

// New constructs a RateLimiter from cfg, defaulting RequestsPerSecond to
// 100 and Burst to 2x the rate when unset.
func New(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}

	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		perMinute: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond*60), cfg.Burst*2),
		config:    cfg,
	}
}

// Wait blocks until a token is available or ctx is done, the call chainconn
// makes before every read or submit RPC.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request could proceed right now without consuming
// a token from the per-minute bucket.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// PerMinuteLimitExceeded reports whether the sustained per-minute bucket is
// currently exhausted, for surfacing sustained throttling separately from a
// momentary per-second burst.
func (r *RateLimiter) PerMinuteLimitExceeded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.perMinute.Allow()
}

// Reset rebuilds both buckets from the limiter's original config, clearing
// any accumulated burst debt.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.Burst)
	r.perMinute = rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond*60), r.config.Burst*2)
}
