package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSaramaConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	assert.Nil(t, GetSaramaConfig(cfg))

	cfg.Kafka.UseSASL = true
	cfg.Kafka.TLS = true
	cfg.Kafka.ClientID = "resellerdesk"
	cfg.Kafka.SASLUser = "user"
	cfg.Kafka.SASLPassword = "pass"

	sc := GetSaramaConfig(cfg)
	require.NotNil(t, sc)
	assert.True(t, sc.Net.SASL.Enable)
	assert.True(t, sc.Net.TLS.Enable)
	assert.Equal(t, sarama.SASLMechanism(sarama.SASLTypePlaintext), sc.Net.SASL.Mechanism)
	assert.Equal(t, "resellerdesk", sc.ClientID)
	assert.True(t, sc.Producer.Return.Successes)
}
