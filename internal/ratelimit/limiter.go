package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/cache"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"golang.org/x/time/rate"
)

// idleTTL is how long an unused bucket is kept before it refills from scratch
const idleTTL = 10 * time.Minute

// KeyedLimiter hands out one token bucket per key, kept in the shared cache
type KeyedLimiter struct {
	cache cache.Cache
	limit rate.Limit
	burst int
	mu    sync.Mutex
}

// NewPollLimiter throttles the renewal status poll per portal session
func NewPollLimiter(cfg *config.Configuration, c cache.Cache) *KeyedLimiter {
	return NewKeyedLimiter(c, rate.Limit(cfg.RateLimit.PollPerSecond), cfg.RateLimit.PollBurst)
}

func NewKeyedLimiter(c cache.Cache, limit rate.Limit, burst int) *KeyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		cache: c,
		limit: limit,
		burst: burst,
	}
}

// Allow reports whether one more request for key may proceed now.
// A non-positive limit disables throttling.
func (l *KeyedLimiter) Allow(ctx context.Context, key string) bool {
	if l.limit <= 0 {
		return true
	}
	return l.get(ctx, key).Allow()
}

func (l *KeyedLimiter) get(ctx context.Context, key string) *rate.Limiter {
	cacheKey := cache.GenerateKey(cache.PrefixPollLimiter, key)

	l.mu.Lock()
	defer l.mu.Unlock()

	if cached, ok := l.cache.Get(ctx, cacheKey); ok {
		if limiter, ok := cached.(*rate.Limiter); ok {
			return limiter
		}
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	l.cache.Set(ctx, cacheKey, limiter, idleTTL)
	return limiter
}
