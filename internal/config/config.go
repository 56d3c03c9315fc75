package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	Port           int           `env:"PORT,default=8080"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	SessionSecret  string        `env:"SESSION_SECRET,default=dev-secret-change-me"`
	SessionTTL     time.Duration `env:"SESSION_TTL,default=24h"`
	CORSOrigin     string        `env:"CORS_ORIGIN,default=http://localhost:5173"`
	LogLevel       string        `env:"LOG_LEVEL,default=INFO"`
	RateLimitRPS   float64       `env:"RATE_LIMIT_RPS,default=0"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST,default=20"`
}

// Configured reports whether both backend connection strings are set.
// Without them the room runs local-only and conversations are unavailable.
func (c Config) Configured() bool {
	return c.DatabaseURL != "" && c.RedisURL != ""
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

type Flags struct {
	EnvFile     string
	MigrateOnly bool
}

func ParseFlags(args []string) (Flags, error) {
	var f Flags
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags.StringVar(&f.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.BoolVar(&f.MigrateOnly, "migrate-only", false, "run database migrations and exit")
	if err := flags.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Load reads envFile, if present, into the process environment and then
// decodes the environment. Variables already set win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return FromEnviron(os.Environ())
}

func FromEnviron(environ []string) (Config, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}
