package queuedata

import (
	"context"
	"strconv"
	"strings"

	"github.com/Shopify/sarama"
	"github.com/tidepool-org/go-common/events"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/cdc"
	"github.com/muzima/registration-worker/queue"
)

const (
	queueDataTopic = "muzima.queue_data"
)

type QueueDataCDCConsumer struct {
	config     ModuleConfig
	logger     *zap.SugaredLogger
	dispatcher Dispatcher
}

type Params struct {
	fx.In

	Config     ModuleConfig
	Logger     *zap.SugaredLogger
	Dispatcher Dispatcher
}

func CreateConsumerGroup(p Params) (events.EventConsumer, error) {
	if !p.Config.Enabled {
		return &cdc.DisabledEventConsumer{}, nil
	}

	config, err := cdc.GetConfig()
	if err != nil {
		return nil, err
	}

	config.KafkaTopic = queueDataTopic

	return events.NewFaultTolerantConsumerGroup(config, CreateConsumer(p))
}

func CreateConsumer(p Params) events.ConsumerFactory {
	return func() (events.MessageConsumer, error) {
		delegate, err := NewQueueDataCDCConsumer(p)
		if err != nil {
			return nil, err
		}
		return cdc.NewRetryingConsumer(delegate, cdc.RetryConfig{
			Attempts: p.Config.RetryAttempts,
			Delay:    p.Config.RetryDelay,
		}), nil
	}
}

func NewQueueDataCDCConsumer(p Params) (events.MessageConsumer, error) {
	return &QueueDataCDCConsumer{
		config:     p.Config,
		logger:     p.Logger,
		dispatcher: p.Dispatcher,
	}, nil
}

func (q *QueueDataCDCConsumer) Initialize(config *events.CloudEventsConfig) error {
	return nil
}

func (q *QueueDataCDCConsumer) HandleKafkaMessage(cm *sarama.ConsumerMessage) error {
	if cm == nil {
		return nil
	}

	return q.handleMessage(cm)
}

func (q *QueueDataCDCConsumer) handleMessage(cm *sarama.ConsumerMessage) error {
	q.logger.Debugw("handling kafka message", "offset", cm.Offset)
	event := cdc.Event[queue.Document]{
		Offset: cm.Offset,
	}
	if err := UnmarshalEvent(cm.Value, &event); err != nil {
		q.logger.Errorw("unable to unmarshal message, skipping", "offset", cm.Offset, zap.Error(err))
		return nil
	}

	return q.handleCDCEvent(event)
}

func (q *QueueDataCDCConsumer) handleCDCEvent(event cdc.Event[queue.Document]) error {
	if !event.IsCreate() {
		q.logger.Debugw("skipping event", "offset", event.Offset, "operationType", event.OperationType)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.config.Timeout)
	defer cancel()

	if _, err := q.dispatcher.Dispatch(ctx, *event.FullDocument); err != nil {
		q.logger.Errorw("unable to process cdc event", "offset", event.Offset, zap.Error(err))
		return err
	}
	return nil
}

// UnmarshalEvent decodes an extended json change event. The connector may publish it as a quoted string.
func UnmarshalEvent(value []byte, event *cdc.Event[queue.Document]) error {
	message := strings.TrimSpace(string(value))
	if strings.HasPrefix(message, `"`) {
		unquoted, err := strconv.Unquote(message)
		if err != nil {
			return err
		}
		message = unquoted
	}
	return bson.UnmarshalExtJSON([]byte(message), true, event)
}
