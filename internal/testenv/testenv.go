// Package testenv reads the connection strings integration tests run
// against.
package testenv

import (
	"testing"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DatabaseURL string `envconfig:"TEST_DATABASE_URL"`
	RedisURL    string `envconfig:"TEST_REDIS_URL"`
}

func Load() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// Require loads the config and skips t when the given URL is unset.
func Require(t *testing.T, pick func(Config) string) Config {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to read test environment: %v", err)
	}
	if pick(cfg) == "" {
		t.Skip("integration backend not configured")
	}
	return cfg
}
