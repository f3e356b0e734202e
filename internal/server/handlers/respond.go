package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/fieldsync/pkg/api"
)

// writeJSON отвечает JSON-телом с заданным статусом
func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func writeError(logger *slog.Logger, w http.ResponseWriter, status int, code, message string) {
	writeJSON(logger, w, status, api.ErrorResponse{Error: code, Message: message})
}
