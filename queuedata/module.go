package queuedata

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"

	"github.com/muzima/registration-worker/cdc"
)

var Module = fx.Options(
	fx.Provide(
		NewModuleConfig,
		errorStoreProvider,
		publisherProvider,
		NewDispatcher,
	),
	fx.Provide(fx.Annotated{
		Group:  "consumers",
		Target: CreateConsumerGroup,
	}),
)

func errorStoreProvider(db *mongo.Database, lifecycle fx.Lifecycle) ErrorStore {
	store := NewMongoErrorStore(db)
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return store.EnsureIndexes(ctx)
		},
	})
	return store
}

func publisherProvider(config ModuleConfig, lifecycle fx.Lifecycle) (Publisher, error) {
	if !config.Enabled || config.OutcomesTopic == "" {
		return NoopPublisher{}, nil
	}

	eventsConfig, err := cdc.GetConfig()
	if err != nil {
		return nil, err
	}

	producer, err := cdc.NewSyncProducer(eventsConfig)
	if err != nil {
		return nil, err
	}

	publisher := NewSaramaPublisher(producer, cdc.TopicName(eventsConfig, config.OutcomesTopic), eventsConfig.KafkaConsumerGroup)
	lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}
