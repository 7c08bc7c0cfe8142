package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Port             string `validate:"required,numeric"`
	AppEnv           string `validate:"required"`
	DatabaseURL      string `validate:"required"`
	StoreDriver      string `validate:"oneof=memory file sqlite postgres redis"`
	RedisPrefix      string
	SnapshotPath     string
	SnapshotInterval time.Duration `validate:"gt=0"`
	VisitCooldown    time.Duration `validate:"gt=0"`
	JWTSecret        string
}

// Load reads the environment (and a .env file when present) and validates
// the result.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	snapshotInterval, err := getDuration("SNAPSHOT_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cooldown, err := getDuration("VISIT_COOLDOWN", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		AppEnv:           getEnv("APP_ENV", "local"),
		DatabaseURL:      getEnv("DATABASE_URL", "file:views.db"),
		StoreDriver:      getEnv("STORE_DRIVER", ""),
		RedisPrefix:      getEnv("REDIS_PREFIX", "views:"),
		SnapshotPath:     getEnv("SNAPSHOT_PATH", ""),
		SnapshotInterval: snapshotInterval,
		VisitCooldown:    cooldown,
		JWTSecret:        getEnv("JWT_SECRET", ""),
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DetectDriver(cfg.DatabaseURL)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DetectDriver guesses the store driver from a database URL.
func DetectDriver(dbURL string) string {
	switch {
	case dbURL == DriverMemory:
		return DriverMemory
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(dbURL, "redis://"), strings.HasPrefix(dbURL, "rediss://"):
		return DriverRedis
	case strings.HasSuffix(dbURL, ".json"):
		return DriverFile
	default:
		return DriverSQLite
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
