// Package config loads the YAML configuration consumed by
// cmd/limiters-demo. The library packages (semaphore, tokenbucket) never depend
// on this package directly — they take functional options — keeping
// config-file parsing an outer, swappable concern.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of the demo's YAML file.
type Config struct {
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Semaphore  SemaphoreConfig  `yaml:"semaphore"`
	TokenBucket TokenBucketConfig `yaml:"token_bucket"`
}

type RedisConfig struct {
	URL                string `yaml:"url"`
	ConnectionPoolSize int    `yaml:"connection_pool_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SemaphoreConfig struct {
	Name     string        `yaml:"name"`
	Capacity int           `yaml:"capacity"`
	MaxSleep time.Duration `yaml:"max_sleep"`
	Expiry   time.Duration `yaml:"expiry"`
}

type TokenBucketConfig struct {
	Name            string        `yaml:"name"`
	Capacity        int           `yaml:"capacity"`
	RefillFrequency time.Duration `yaml:"refill_frequency"`
	RefillAmount    int           `yaml:"refill_amount"`
	MaxSleep        time.Duration `yaml:"max_sleep"`
}

// Load reads and validates the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if envURL := os.Getenv("LIMITERS_REDIS_URL"); envURL != "" {
		cfg.Redis.URL = envURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the ambient fields Load can't delegate to the limiter
// constructors (those validate their own options when the demo builds a
// Semaphore/TokenBucket from this config).
func (c *Config) Validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	return nil
}
