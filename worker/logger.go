package worker

import (
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerConfig struct {
	Level string `envconfig:"RECONCILER_LOG_LEVEL" default:"debug"`
}

func loggerProvider() (*zap.SugaredLogger, error) {
	cfg := LoggerConfig{}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar().Named("reconciliation-worker"), nil
}
