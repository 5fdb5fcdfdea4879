package worker

import (
	"net/http"

	"github.com/tidepool-org/go-common/events"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/cdc"
	"github.com/muzima/registration-worker/payload"
	"github.com/muzima/registration-worker/queuedata"
	"github.com/muzima/registration-worker/reconcile"
)

var dependencies = fx.Provide(
	loggerProvider,
	configProvider,
	payloadConfigProvider,
	payload.NewExtractor,
	mongoClientProvider,
	mongoDatabaseProvider,
	emrClientProvider,
	masterDataProvider,
	personDirectoryProvider,
	encounterWriterProvider,
	mappingStoreProvider,
	matcherProvider,
	registrationsHandlerProvider,
	replayHandlerProvider,
	serverProvider,
)

var Modules = []fx.Option{
	dependencies,
	reconcile.Module,
	queuedata.Module,
}

func New() *fx.App {
	invokes := fx.Invoke(
		startConsumers,
		startServer,
	)
	return fx.New(append(Modules, invokes)...)
}

type Components struct {
	fx.In

	Consumers  []events.EventConsumer `group:"consumers"`
	Server     *http.Server
	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *zap.SugaredLogger
}

func startConsumers(components Components) {
	for _, consumer := range components.Consumers {
		cdc.AttachConsumerGroupHooks(consumer, components.Lifecycle, components.Shutdowner, components.Logger)
	}
}
