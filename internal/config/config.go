package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	RetryConfigPath   string `env:"RETRY_CONFIG_PATH,required=true"`
	GatewayBaseURL    string `env:"GATEWAY_BASE_URL"`
	GatewayName       string `env:"GATEWAY_NAME,default=simulator"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=16"`
	SweepIntervalSec  int    `env:"SWEEP_INTERVAL_SEC,default=60"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1, got %d", c.WorkerConcurrency)
	}
	if c.SweepIntervalSec < 1 {
		return fmt.Errorf("SWEEP_INTERVAL_SEC must be at least 1, got %d", c.SweepIntervalSec)
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be a valid port, got %d", c.APIPort)
	}
	return nil
}
