package cdc

import (
	"strings"

	"github.com/Shopify/sarama"
	"github.com/tidepool-org/go-common/events"
)

func GetConfig() (*events.CloudEventsConfig, error) {
	config := events.NewConfig()
	err := config.LoadFromEnv()
	return config, err
}

// TopicName prefixes a topic owned by the worker. These topics use '-' as a separator,
// the connector topics use '.'.
func TopicName(config *events.CloudEventsConfig, topic string) string {
	prefix := config.KafkaTopicPrefix
	if strings.HasSuffix(prefix, ".") {
		prefix = strings.TrimSuffix(prefix, ".") + "-"
	}
	return prefix + topic
}

// NewSyncProducer connects a producer to the brokers of config
func NewSyncProducer(config *events.CloudEventsConfig) (sarama.SyncProducer, error) {
	saramaConfig := config.SaramaConfig
	if saramaConfig == nil {
		saramaConfig = sarama.NewConfig()
	}
	// Required by the sync producer
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Return.Successes = true

	return sarama.NewSyncProducer(config.KafkaBrokers, saramaConfig)
}
