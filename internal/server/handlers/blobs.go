package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/iudanet/fieldsync/internal/server/jwt"
	"github.com/iudanet/fieldsync/pkg/api"
)

// MaxBlobSize ограничивает размер одного вложения
const MaxBlobSize = 32 << 20

// BlobStore определяет интерфейс хранилища вложений
type BlobStore interface {
	PutBlob(ctx context.Context, name, owner string, data []byte) (string, error)
}

// BlobsHandler accepts attachment uploads
type BlobsHandler struct {
	logger *slog.Logger
	store  BlobStore
}

// NewBlobsHandler creates a new blobs handler
func NewBlobsHandler(logger *slog.Logger, store BlobStore) *BlobsHandler {
	return &BlobsHandler{logger: logger, store: store}
}

// Upload обрабатывает POST /api/v1/blobs?name=...
// Тело запроса - содержимое файла
func (h *BlobsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(h.logger, w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBlobSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(h.logger, w, http.StatusRequestEntityTooLarge, "too_large", "attachment is too large")
			return
		}
		writeError(h.logger, w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}

	owner, _ := jwt.SubjectFromContext(r.Context())

	ref, err := h.store.PutBlob(r.Context(), name, owner, data)
	if err != nil {
		h.logger.Error("Failed to store blob", "name", name, "error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal", "failed to store attachment")
		return
	}

	h.logger.Debug("Blob stored", "ref", ref, "size", len(data), "owner", owner)
	writeJSON(h.logger, w, http.StatusCreated, api.BlobResponse{Ref: ref, Size: int64(len(data))})
}
