package cdc

import (
	"errors"
	"time"

	"github.com/Shopify/sarama"
	"github.com/avast/retry-go"
	"github.com/tidepool-org/go-common/events"
)

var (
	DefaultAttempts  = uint(5000)
	DefaultDelay     = 1 * time.Minute
	DefaultDelayType = retry.FixedDelay
)

// ErrPermanent marks handler errors which redelivery cannot fix
var ErrPermanent = errors.New("permanent error")

type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
}

type RetryingConsumer struct {
	attempts  uint
	delay     time.Duration
	delayType retry.DelayTypeFunc
	delegate  events.MessageConsumer
}

func NewRetryingConsumer(delegate events.MessageConsumer, config RetryConfig) events.MessageConsumer {
	consumer := &RetryingConsumer{
		attempts:  DefaultAttempts,
		delay:     DefaultDelay,
		delayType: DefaultDelayType,
		delegate:  delegate,
	}
	if config.Attempts > 0 {
		consumer.attempts = config.Attempts
	}
	if config.Delay > 0 {
		consumer.delay = config.Delay
	}
	return consumer
}

func (r *RetryingConsumer) Initialize(config *events.CloudEventsConfig) error {
	return r.delegate.Initialize(config)
}

func (r *RetryingConsumer) HandleKafkaMessage(cm *sarama.ConsumerMessage) error {
	retryFn := func() error { return r.delegate.HandleKafkaMessage(cm) }
	return retry.Do(
		retryFn,
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.DelayType(r.delayType),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
	)
}

func IsRetryable(err error) bool {
	return !errors.Is(err, ErrPermanent)
}
