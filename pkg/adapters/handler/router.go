package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/config"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, service ports.VisitService, snapshots ports.SnapshotService, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := NewHTTPHandler(service, logger)
	mw := NewMiddleware(cfg.JWTSecret, logger)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /api/views", h.Views)
	mux.HandleFunc("POST /api/views", h.RecordView)
	mux.HandleFunc("GET /api/stats", h.Stats)

	// Admin Routes, only when a signing secret is configured
	if cfg.JWTSecret != "" && snapshots != nil {
		ah := NewAdminHandler(snapshots, logger)
		adminMux := http.NewServeMux()
		adminMux.HandleFunc("GET /api/admin/snapshot", ah.ExportSnapshot)
		adminMux.HandleFunc("POST /api/admin/snapshot", ah.ImportSnapshot)
		mux.Handle("/api/admin/", mw.AuthMiddleware(adminMux))
	}

	return mw.RequestID(mw.AccessLog(mw.Recover(mux)))
}
