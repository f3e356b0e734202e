package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/fieldsync/internal/metrics"
	"github.com/iudanet/fieldsync/internal/server/jwt"
	"github.com/iudanet/fieldsync/internal/server/storage"
	"github.com/iudanet/fieldsync/internal/validation"
	"github.com/iudanet/fieldsync/pkg/api"
)

//go:generate moq -out field_store_mock.go . FieldStore

// maxFieldBody ограничивает размер тела PUT
const maxFieldBody = 1 << 20

// FieldStore определяет интерфейс хранилища полей
type FieldStore interface {
	GetField(ctx context.Context, entityID, fieldID string) (*storage.Field, error)
	PutField(ctx context.Context, entityID, fieldID, value, updatedBy string, expected int64) (storage.WriteResult, error)
}

// FieldsHandler serves reads and conditional writes of single fields
type FieldsHandler struct {
	logger  *slog.Logger
	store   FieldStore
	gates   *validation.Registry
	metrics *metrics.Server
}

// NewFieldsHandler creates a new fields handler. gates and m may be nil.
func NewFieldsHandler(logger *slog.Logger, store FieldStore, gates *validation.Registry, m *metrics.Server) *FieldsHandler {
	return &FieldsHandler{
		logger:  logger,
		store:   store,
		gates:   gates,
		metrics: m,
	}
}

// Get обрабатывает GET /api/v1/entities/{entity}/fields/{field}
// Несуществующее поле отдается с версией 0 и пустым значением
func (h *FieldsHandler) Get(w http.ResponseWriter, r *http.Request) {
	entityID, fieldID := r.PathValue("entity"), r.PathValue("field")
	if err := validation.ValidateKey(entityID, fieldID); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	field, err := h.store.GetField(r.Context(), entityID, fieldID)
	switch {
	case errors.Is(err, storage.ErrFieldNotFound):
		field = &storage.Field{EntityID: entityID, FieldID: fieldID}
	case err != nil:
		h.logger.Error("Failed to read field",
			"entity_id", entityID,
			"field_id", fieldID,
			"error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal", "failed to read field")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, api.FieldResponse{
		EntityID:  field.EntityID,
		FieldID:   field.FieldID,
		Value:     field.Value,
		Version:   field.Version,
		UpdatedBy: field.UpdatedBy,
		UpdatedAt: field.UpdatedAt,
	})
}

// Put обрабатывает PUT /api/v1/entities/{entity}/fields/{field}
// Запись применяется только если version в запросе равна текущей
func (h *FieldsHandler) Put(w http.ResponseWriter, r *http.Request) {
	entityID, fieldID := r.PathValue("entity"), r.PathValue("field")
	if err := validation.ValidateKey(entityID, fieldID); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	var req api.PutFieldRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFieldBody)).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Version < 0 {
		writeError(h.logger, w, http.StatusBadRequest, "bad_request", "version must not be negative")
		return
	}

	if res := h.gates.For(fieldID).Check(req.Value); !res.Accepted() {
		h.metrics.ObserveWrite("rejected")
		reasons := make([]api.Reason, 0, len(res.Reasons))
		for _, reason := range res.Reasons {
			reasons = append(reasons, api.Reason{Code: reason.Code, Message: reason.Message})
		}
		writeJSON(h.logger, w, http.StatusUnprocessableEntity, api.ValidationResponse{
			Error:   "validation failed",
			Reasons: reasons,
		})
		return
	}

	subject, _ := jwt.SubjectFromContext(r.Context())

	res, err := h.store.PutField(r.Context(), entityID, fieldID, req.Value, subject, req.Version)
	if errors.Is(err, storage.ErrVersionMismatch) {
		h.metrics.ObserveWrite("conflict")
		h.logger.Info("Version mismatch",
			"entity_id", entityID,
			"field_id", fieldID,
			"expected", req.Version,
			"current", res.Field.Version,
			"operation_id", req.OperationID)
		writeJSON(h.logger, w, http.StatusConflict, api.ConflictResponse{
			Error:   "version mismatch",
			Value:   res.Field.Value,
			Version: res.Field.Version,
		})
		return
	}
	if err != nil {
		h.metrics.ObserveWrite("error")
		h.logger.Error("Failed to write field",
			"entity_id", entityID,
			"field_id", fieldID,
			"error", err)
		writeError(h.logger, w, http.StatusInternalServerError, "internal", "failed to write field")
		return
	}

	h.metrics.ObserveWrite("applied")
	h.logger.Debug("Field written",
		"entity_id", entityID,
		"field_id", fieldID,
		"version", res.Field.Version,
		"subject", subject,
		"operation_id", req.OperationID)

	observed := res.Observed
	writeJSON(h.logger, w, http.StatusOK, api.PutFieldResponse{
		ObservedVersion: &observed,
		Value:           res.Field.Value,
		Version:         res.Field.Version,
	})
}
