package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type bucket struct {
	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

// RateLimiter is a per-caller token bucket keyed by user id when
// authenticated, falling back to the client IP.
type RateLimiter struct {
	mu            sync.RWMutex
	buckets       map[string]*bucket
	maxTokens     int
	refillRate    time.Duration
	logger        *zap.Logger
	cleanupTicker *time.Ticker
}

type Config struct {
	MaxRequestsPerMinute int
	Logger               *zap.Logger
}

func New(cfg Config) *RateLimiter {
	if cfg.MaxRequestsPerMinute == 0 {
		cfg.MaxRequestsPerMinute = 60
	}

	rl := &RateLimiter{
		buckets:       make(map[string]*bucket),
		maxTokens:     cfg.MaxRequestsPerMinute,
		refillRate:    time.Minute / time.Duration(cfg.MaxRequestsPerMinute),
		logger:        cfg.Logger,
		cleanupTicker: time.NewTicker(5 * time.Minute),
	}

	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if userID := c.Get("X-User-ID"); userID != "" {
			key = userID
		}

		if !rl.allow(key) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		b, exists = rl.buckets[key]
		if !exists {
			b = &bucket{tokens: rl.maxTokens, lastRefill: time.Now()}
			rl.buckets[key] = b
		}
		rl.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	refill := int(now.Sub(b.lastRefill) / rl.refillRate)
	if refill > 0 {
		b.tokens += refill
		if b.tokens > rl.maxTokens {
			b.tokens = rl.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	for range rl.cleanupTicker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, b := range rl.buckets {
			b.mu.Lock()
			if now.Sub(b.lastRefill) > 10*time.Minute {
				delete(rl.buckets, key)
			}
			b.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
}
