package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

// isoMillis matches JavaScript's Date.prototype.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type HTTPHandler struct {
	service ports.VisitService
	logger  *zap.Logger
}

func NewHTTPHandler(service ports.VisitService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{service: service, logger: logger}
}

// ViewsResponse payload
type ViewsResponse struct {
	Views       int64 `json:"views"`
	Incremented *bool `json:"incremented,omitempty"`
}

// StatsResponse payload
type StatsResponse struct {
	TotalViews     int64   `json:"totalViews"`
	UniqueVisitors int64   `json:"uniqueVisitors"`
	LastVisit      *string `json:"lastVisit"`
}

// Get current view count
func (h *HTTPHandler) Views(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.GetTotalViewCount(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ViewsResponse{Views: views})
}

// Record a view for the calling client
func (h *HTTPHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	counted, err := h.service.RecordVisit(r.Context(), ClientIP(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views, err := h.service.GetTotalViewCount(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ViewsResponse{Views: views, Incremented: &counted})
}

// Get aggregate stats
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := StatsResponse{
		TotalViews:     stats.TotalViews,
		UniqueVisitors: stats.UniqueVisitors,
	}
	if stats.LastVisit != nil {
		s := stats.LastVisit.UTC().Format(isoMillis)
		resp.LastVisit = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClientIP resolves the visitor address: the first X-Forwarded-For entry,
// then X-Real-IP, then the socket address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeServiceError(w, r, h.logger, err)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyIP):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		// Storage failures and anything unexpected
		logger.Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Bool("storage", domain.IsStorageError(err)),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}
