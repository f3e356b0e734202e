package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/fieldsync/pkg/api"
)

// Pinger checks that the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger *slog.Logger
	db     Pinger
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, db Pinger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		db:     db,
	}
}

// Health обрабатывает GET /api/v1/health
// Клиентский connectivity prober считает сервер доступным только при 200
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", slog.Any("error", err))
		writeJSON(h.logger, w, http.StatusServiceUnavailable, api.HealthResponse{Status: "unavailable"})
		return
	}

	writeJSON(h.logger, w, http.StatusOK, api.HealthResponse{Status: "ok"})
}
