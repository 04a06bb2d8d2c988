package api

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// bucket is a token bucket refilled continuously at a fixed rate.
type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func (b *bucket) allow(now time.Time) bool {
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RateLimiter tracks one token bucket per client address.
type RateLimiter struct {
	cfg     RateLimiterConfig
	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

// NewRateLimiter creates a rate limiter from cfg.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 10
	}
	return &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		swept:   time.Now(),
	}
}

// allowClient checks and consumes a token for the client address.
func (rl *RateLimiter) allowClient(addr string) bool {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Drop buckets idle for over ten minutes so the map stays bounded.
	if now.Sub(rl.swept) > time.Minute {
		for key, b := range rl.buckets {
			if now.Sub(b.lastRefill) > 10*time.Minute {
				delete(rl.buckets, key)
			}
		}
		rl.swept = now
	}

	b, ok := rl.buckets[addr]
	if !ok {
		b = &bucket{
			tokens:     float64(rl.cfg.BurstSize),
			capacity:   float64(rl.cfg.BurstSize),
			refillRate: float64(rl.cfg.RequestsPerMinute) / 60.0,
			lastRefill: now,
		}
		rl.buckets[addr] = b
	}
	return b.allow(now)
}

// Middleware rejects requests over the per-client rate with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !rl.allowClient(host) {
			respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
