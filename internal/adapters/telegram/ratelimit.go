package telegram

import (
	"sync"
	"time"
)

// RateLimitConfig holds per-chat rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	MessagesPerMinute int  `yaml:"messages_per_minute"` // Max commands per minute (default: 30)
	BurstSize         int  `yaml:"burst_size"`          // Burst allowance (default: 10)
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled:           true,
		MessagesPerMinute: 30,
		BurstSize:         10,
	}
}

// RateLimiter implements per-chat token bucket rate limiting
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[int64]*tokenBucket
	mu      sync.Mutex
	now     func() time.Time
}

// tokenBucket tracks rate limits for a single chat
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
	rate       float64 // tokens per second
	maxBurst   int
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[int64]*tokenBucket),
		now:     time.Now,
	}
}

// AllowMessage checks if a message is allowed for the given chat.
// Returns true if allowed, false if rate limited.
func (r *RateLimiter) AllowMessage(chatID int64) bool {
	if !r.config.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.getOrCreateBucket(chatID)
	bucket.refill(r.now())

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

// Cleanup removes buckets that haven't been used recently and returns how
// many were dropped. The scheduler calls it periodically.
func (r *RateLimiter) Cleanup(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxAge)
	removed := 0
	for chatID, bucket := range r.buckets {
		if bucket.lastRefill.Before(cutoff) {
			delete(r.buckets, chatID)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked chats.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

func (r *RateLimiter) getOrCreateBucket(chatID int64) *tokenBucket {
	bucket, exists := r.buckets[chatID]
	if !exists {
		maxBurst := r.config.MessagesPerMinute
		if r.config.BurstSize > 0 && r.config.BurstSize < maxBurst {
			maxBurst = r.config.BurstSize
		}

		bucket = &tokenBucket{
			tokens:     float64(maxBurst), // Start with burst capacity
			lastRefill: r.now(),
			rate:       float64(r.config.MessagesPerMinute) / 60.0,
			maxBurst:   maxBurst,
		}
		r.buckets[chatID] = bucket
	}
	return bucket
}

// refill adds tokens based on elapsed time
func (b *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now

	b.tokens += elapsed * b.rate
	if b.tokens > float64(b.maxBurst) {
		b.tokens = float64(b.maxBurst)
	}
}
