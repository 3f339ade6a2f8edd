package cache

import (
	"context"
	"testing"
	"time"

	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	c := NewInMemoryCache(cfg)

	key := GenerateKey(PrefixGatewayCredential, "tenant_1")
	assert.Equal(t, "gateway_credential:v1::tenant_1", key)

	c.Set(ctx, key, "token", time.Minute)
	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "token", v)

	c.Set(ctx, GenerateKey(PrefixGatewayCredential, "tenant_2"), "other", 0)
	c.DeleteByPrefix(ctx, PrefixGatewayCredential)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
}

func TestInMemoryCache_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg)

	c.Set(ctx, "k", "v", time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
