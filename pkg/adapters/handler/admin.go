package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
	"github.com/wadjakorntonsri/portfolio-views/pkg/core/services"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

const maxSnapshotBody = 10 << 20

type AdminHandler struct {
	snapshots ports.SnapshotService
	logger    *zap.Logger
}

func NewAdminHandler(snapshots ports.SnapshotService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{snapshots: snapshots, logger: logger}
}

// Export the store as a backup snapshot
func (h *AdminHandler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Export(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="visitors.json"`)
	writeJSON(w, http.StatusOK, snap)
}

// Replace the store contents with an uploaded snapshot
func (h *AdminHandler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxSnapshotBody)

	var snap domain.Snapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.snapshots.Import(r.Context(), &snap); err != nil {
		if errors.Is(err, services.ErrInvalidSnapshot) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("snapshot imported via admin api",
		zap.String("request_id", RequestIDFromContext(r.Context())),
		zap.String("admin", SubjectFromContext(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}
