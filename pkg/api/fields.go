// Package api holds the JSON wire types shared by the client and the
// reference store server.
package api

import "time"

// FieldResponse представляет текущее состояние поля на сервере
type FieldResponse struct {
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	EntityID  string    `json:"entity_id"`
	FieldID   string    `json:"field_id"`
	Value     string    `json:"value"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	Version   int64     `json:"version"` // 0, если поле ещё не создано
}

// PutFieldRequest представляет условную запись значения поля
type PutFieldRequest struct {
	Value       string `json:"value"`
	OperationID string `json:"operation_id,omitempty"`
	Version     int64  `json:"version"` // версия, на которую опирается запись
}

// PutFieldResponse представляет ответ на успешную запись
type PutFieldResponse struct {
	ObservedVersion *int64 `json:"observed_version,omitempty"` // версия до записи
	Value           string `json:"value"`
	Version         int64  `json:"version"` // новая версия
}

// ConflictResponse возвращается с 409, когда версия на сервере другая
type ConflictResponse struct {
	Error   string `json:"error"`
	Value   string `json:"value"`
	Version int64  `json:"version"`
}

// Reason описывает одну причину отказа валидации
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResponse возвращается с 422
type ValidationResponse struct {
	Error   string   `json:"error"`
	Reasons []Reason `json:"reasons"`
}

// HealthResponse представляет ответ health endpoint
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}

// BlobResponse возвращается после загрузки вложения
type BlobResponse struct {
	Ref  string `json:"ref"`
	Size int64  `json:"size"`
}
