package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/handler"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository"
	"github.com/wadjakorntonsri/portfolio-views/pkg/config"
	"github.com/wadjakorntonsri/portfolio-views/pkg/core/services"
	applog "github.com/wadjakorntonsri/portfolio-views/pkg/logger"
)

var mux http.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := applog.New(cfg.AppEnv)
	if err != nil {
		logger = zap.NewNop()
	}

	// Note: On Vercel the filesystem is ephemeral, so DATABASE_URL should
	// point at Turso (libsql://), Postgres or Redis.
	store, err := repository.Open(cfg, logger)
	if err != nil {
		panic(err)
	}

	tracker := services.NewVisitTracker(store,
		services.WithCooldown(cfg.VisitCooldown),
		services.WithLogger(logger),
	)
	mux = handler.NewRouter(cfg, tracker, services.NewSnapshotService(store, logger), logger)
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
