package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/muzima/registration-worker/emr"
	"github.com/muzima/registration-worker/mapping"
	"github.com/muzima/registration-worker/matching"
	"github.com/muzima/registration-worker/payload"
	"github.com/muzima/registration-worker/queuedata"
	"github.com/muzima/registration-worker/registrations"
	"github.com/muzima/registration-worker/replay"
)

type DependenciesConfig struct {
	EmrAddress           string          `envconfig:"RECONCILER_EMR_ADDRESS" default:"http://openmrs:8080/openmrs/ws/rest"`
	EmrSecret            string          `envconfig:"RECONCILER_EMR_SECRET"`
	EmrRequestsPerSecond int             `envconfig:"RECONCILER_EMR_REQUESTS_PER_SECOND" default:"20"`
	EmrTimeout           time.Duration   `envconfig:"RECONCILER_EMR_TIMEOUT" default:"30s"`
	MongoUri             string          `envconfig:"RECONCILER_MONGO_URI" default:"mongodb://mongo:27017"`
	MongoDatabase        string          `envconfig:"RECONCILER_MONGO_DATABASE" default:"muzima"`
	PostgresUrl          string          `envconfig:"RECONCILER_POSTGRES_URL"`
	MappingBackend       mapping.Backend `envconfig:"RECONCILER_MAPPING_BACKEND" default:"mongo"`
	HttpAddress          string          `envconfig:"RECONCILER_HTTP_ADDRESS" default:":8080"`
}

func configProvider() (DependenciesConfig, error) {
	cfg := DependenciesConfig{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}

func payloadConfigProvider() (payload.Config, error) {
	cfg := payload.Config{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}

func mongoClientProvider(config DependenciesConfig, lifecycle fx.Lifecycle) (*mongo.Client, error) {
	client, err := mongo.NewClient(options.Client().ApplyURI(config.MongoUri))
	if err != nil {
		return nil, fmt.Errorf("unable to create mongo client: %w", err)
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Connect(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})
	return client, nil
}

func mongoDatabaseProvider(config DependenciesConfig, client *mongo.Client) *mongo.Database {
	return client.Database(config.MongoDatabase)
}

func emrClientProvider(config DependenciesConfig) (*emr.Client, error) {
	return emr.NewClient(emr.ClientConfig{
		Address:           config.EmrAddress,
		Secret:            config.EmrSecret,
		RequestsPerSecond: config.EmrRequestsPerSecond,
		Timeout:           config.EmrTimeout,
	})
}

func masterDataProvider(client *emr.Client) emr.MasterData {
	return client
}

func personDirectoryProvider(client *emr.Client) emr.PersonDirectory {
	return client
}

func encounterWriterProvider(client *emr.Client) emr.EncounterWriter {
	return client
}

// mappingStoreProvider selects the mapping store backend. The postgres pool is created only for the postgres backend.
func mappingStoreProvider(config DependenciesConfig, db *mongo.Database, lifecycle fx.Lifecycle, logger *zap.SugaredLogger) (mapping.Store, error) {
	switch config.MappingBackend {
	case mapping.BackendMongo:
		store := mapping.NewMongoStore(db)
		lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return store.EnsureIndexes(ctx)
			},
		})
		return store, nil
	case mapping.BackendPostgres:
		if config.PostgresUrl == "" {
			return nil, fmt.Errorf("RECONCILER_POSTGRES_URL is required for the %s mapping backend", config.MappingBackend)
		}
		pool, err := pgxpool.New(context.Background(), config.PostgresUrl)
		if err != nil {
			return nil, fmt.Errorf("unable to create postgres pool: %w", err)
		}
		store := mapping.NewPostgresStore(pool)
		lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				logger.Infow("migrating mapping store", "backend", config.MappingBackend)
				return store.Migrate(ctx)
			},
			OnStop: func(ctx context.Context) error {
				pool.Close()
				return nil
			},
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown mapping backend %q", config.MappingBackend)
	}
}

func matcherProvider(directory emr.PersonDirectory) matching.Matcher {
	return matching.NewMatcher(directory)
}

func registrationsHandlerProvider(store mapping.Store, directory emr.PersonDirectory, logger *zap.SugaredLogger) *registrations.Handler {
	return registrations.NewHandler(registrations.NewService(store, directory), logger)
}

func replayHandlerProvider(errors queuedata.ErrorStore, dispatcher queuedata.Dispatcher, logger *zap.SugaredLogger) (*replay.Handler, error) {
	config, err := replay.NewConfig()
	if err != nil {
		return nil, err
	}
	return replay.NewHandler(replay.NewReplayer(config, logger, errors, dispatcher), logger), nil
}
