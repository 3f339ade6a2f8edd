package internal

import (
	"fmt"
	"time"

	"github.com/Shopify/sarama"
	"github.com/resellerdesk/resellerdesk/internal/config"
	"github.com/resellerdesk/resellerdesk/internal/pubsub/kafka"
	"github.com/samber/lo"
)

// TestKafkaConnection lists topics on the configured brokers using the same
// client settings as the notification publisher
func TestKafkaConnection() error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is not configured")
	}

	saramaConfig := kafka.GetSaramaConfig(cfg)
	if saramaConfig == nil {
		saramaConfig = sarama.NewConfig()
	}
	saramaConfig.Net.DialTimeout = 10 * time.Second
	saramaConfig.Net.ReadTimeout = 10 * time.Second
	saramaConfig.Net.WriteTimeout = 10 * time.Second

	client, err := sarama.NewClient(cfg.Kafka.Brokers, saramaConfig)
	if err != nil {
		return fmt.Errorf("error creating client: %w", err)
	}
	defer client.Close()

	topics, err := client.Topics()
	if err != nil {
		return fmt.Errorf("error listing topics: %w", err)
	}

	fmt.Printf("Successfully connected! Available topics: %v\n", topics)
	for _, topic := range []string{cfg.Notifications.ClientTopic, cfg.Notifications.CreditsTopic} {
		if !lo.Contains(topics, topic) {
			fmt.Printf("Warning: notification topic %s does not exist yet\n", topic)
		}
	}
	return nil
}
