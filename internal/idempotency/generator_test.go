package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerator(t *testing.T) {
	g := NewGenerator()

	params := map[string]interface{}{"payment_record_id": "pr_1", "template": "renewal_confirmed"}
	key := g.GenerateKey(ScopeClientNotification, params)

	assert.True(t, strings.HasPrefix(key, string(ScopeClientNotification)+"-"))
	assert.Equal(t, key, g.GenerateKey(ScopeClientNotification, map[string]interface{}{
		"template":          "renewal_confirmed",
		"payment_record_id": "pr_1",
	}))
	assert.True(t, g.ValidateKey(ScopeClientNotification, params, key))

	assert.NotEqual(t, key, g.GenerateKey(ScopeCreditsSync, params))
	assert.NotEqual(t, key, g.GenerateKey(ScopeClientNotification, map[string]interface{}{"payment_record_id": "pr_2", "template": "renewal_confirmed"}))
}
