package replay

import (
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/ratelimit"
)

type Config struct {
	ReplaysPerSecond uint  `envconfig:"RECONCILER_REPLAYS_PER_SECOND_LIMIT" default:"15"`
	Threadiness      int64 `envconfig:"RECONCILER_REPLAY_THREADINESS" default:"4"`
	BatchSize        int64 `envconfig:"RECONCILER_REPLAY_BATCH_SIZE" default:"500"`
}

func NewConfig() (Config, error) {
	cfg := Config{}
	err := envconfig.Process("", &cfg)
	return cfg, err
}

type RateLimiter struct {
	rl ratelimit.Limiter
}

func NewRateLimiter(cfg Config) *RateLimiter {
	rl := ratelimit.NewUnlimited()
	if cfg.ReplaysPerSecond > 0 {
		rl = ratelimit.New(int(cfg.ReplaysPerSecond))
	}
	return &RateLimiter{rl: rl}
}

// WaitOrContinue blocks if the rate limit is exceeded
func (r *RateLimiter) WaitOrContinue() {
	r.rl.Take()
}
