// Package repository opens the visitor store selected by configuration.
package repository

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/file"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/postgres"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/redis"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/portfolio-views/pkg/config"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

// Open returns the store for cfg.StoreDriver. Schema creation failures are
// returned to the caller, which usually treats them as fatal.
func Open(cfg *config.Config, logger *zap.Logger) (ports.VisitorStore, error) {
	driver := cfg.StoreDriver
	if driver == "" {
		driver = config.DetectDriver(cfg.DatabaseURL)
	}

	var (
		store ports.VisitorStore
		err   error
	)
	switch driver {
	case config.DriverMemory:
		store = memory.NewMemoryRepository()
	case config.DriverFile:
		store, err = file.NewFileRepository(filePath(cfg.DatabaseURL), logger)
	case config.DriverSQLite:
		store, err = sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	case config.DriverPostgres:
		store, err = postgres.NewPostgresRepository(cfg.DatabaseURL)
	case config.DriverRedis:
		store, err = redis.NewRedisRepository(cfg.DatabaseURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return store, nil
}

// filePath turns "file:///abs/visitors.json", "file:visitors.json" or a bare
// path into a filesystem path.
func filePath(dbURL string) string {
	if p, ok := strings.CutPrefix(dbURL, "file://"); ok {
		return p
	}
	return strings.TrimPrefix(dbURL, "file:")
}
