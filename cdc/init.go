package cdc

import (
	"context"

	"github.com/tidepool-org/go-common/events"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// AttachConsumerGroupHooks runs the consumer group for the lifetime of the application. The application
// is shut down when the group stops with an error.
func AttachConsumerGroupHooks(cg events.EventConsumer, lifecycle fx.Lifecycle, shutdowner fx.Shutdowner, logger *zap.SugaredLogger) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := cg.Start(); err != nil {
					logger.Errorw("consumer group stopped", zap.Error(err))
					if err := shutdowner.Shutdown(); err != nil {
						logger.Errorw("unable to shut down", zap.Error(err))
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return cg.Stop()
		},
	})
}
