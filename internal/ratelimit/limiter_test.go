package ratelimit

import (
	"context"
	"testing"

	"github.com/resellerdesk/resellerdesk/internal/cache"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestKeyedLimiter(t *testing.T) {
	ctx := context.Background()
	c := cache.NewInMemoryCache(config.GetDefaultConfig())

	limiter := NewKeyedLimiter(c, 0.001, 2)

	assert.True(t, limiter.Allow(ctx, "tenant_1:cli_1"))
	assert.True(t, limiter.Allow(ctx, "tenant_1:cli_1"))
	assert.False(t, limiter.Allow(ctx, "tenant_1:cli_1"))

	// buckets are independent per key
	assert.True(t, limiter.Allow(ctx, "tenant_1:cli_2"))
}

func TestKeyedLimiter_Disabled(t *testing.T) {
	limiter := NewKeyedLimiter(cache.NewInMemoryCache(config.GetDefaultConfig()), 0, 1)
	for i := 0; i < 10; i++ {
		assert.True(t, limiter.Allow(context.Background(), "k"))
	}
}
