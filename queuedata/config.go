package queuedata

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type ModuleConfig struct {
	Enabled       bool          `envconfig:"RECONCILER_QUEUE_ENABLED" default:"true"`
	OutcomesTopic string        `envconfig:"RECONCILER_OUTCOMES_TOPIC" default:"queue-data-outcomes"`
	Timeout       time.Duration `envconfig:"RECONCILER_SUBMISSION_TIMEOUT" default:"30s"`
	RetryAttempts uint          `envconfig:"RECONCILER_RETRY_ATTEMPTS" default:"5000"`
	RetryDelay    time.Duration `envconfig:"RECONCILER_RETRY_DELAY" default:"1m"`
}

func NewModuleConfig() (ModuleConfig, error) {
	cfg := ModuleConfig{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}
