package models

import (
	"time"

	"github.com/google/uuid"
)

// FieldKey идентифицирует одно редактируемое поле сущности.
type FieldKey struct {
	EntityID string `json:"entity_id"`
	FieldID  string `json:"field_id"`
}

// String returns the key as "entity/field".
func (k FieldKey) String() string {
	return k.EntityID + "/" + k.FieldID
}

// EditableField is the current (optimistic) value of a field together with
// the last version confirmed by the remote store.
type EditableField struct {
	EntityID string `json:"entity_id"`
	FieldID  string `json:"field_id"`
	Value    string `json:"value"`
	Version  int64  `json:"version"` // Version 0 означает, что поле ещё не сохранялось
}

// Key returns the identity of the field.
func (f EditableField) Key() FieldKey {
	return FieldKey{EntityID: f.EntityID, FieldID: f.FieldID}
}

// SaveOperation is one attempted write. It is never mutated; a newer edit
// produces a new operation instead.
type SaveOperation struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	EntityID  string    `json:"entity_id"`
	FieldID   string    `json:"field_id"`
	Value     string    `json:"value"`
	Version   int64     `json:"version"` // Version версия, на которую опирается запись
	Attempt   int       `json:"attempt"`
	Seq       uint64    `json:"seq"` // Seq номер правки, из которой построена операция
}

// NewSaveOperation creates an operation for the field value with a fresh ID.
func NewSaveOperation(field EditableField, attempt int, seq uint64, now time.Time) SaveOperation {
	return SaveOperation{
		ID:        uuid.New().String(),
		EntityID:  field.EntityID,
		FieldID:   field.FieldID,
		Value:     field.Value,
		Version:   field.Version,
		Attempt:   attempt,
		Seq:       seq,
		CreatedAt: now,
	}
}

// Key returns the identity of the field the operation writes.
func (op SaveOperation) Key() FieldKey {
	return FieldKey{EntityID: op.EntityID, FieldID: op.FieldID}
}

// DraftRecord is an edit that could not reach the remote store and was
// persisted locally.
type DraftRecord struct {
	SavedLocallyAt time.Time `json:"saved_locally_at"`
	EntityID       string    `json:"entity_id"`
	FieldID        string    `json:"field_id"`
	Value          string    `json:"value"`
	Version        int64     `json:"version"`
}

// Key returns the identity of the field the draft belongs to.
func (d DraftRecord) Key() FieldKey {
	return FieldKey{EntityID: d.EntityID, FieldID: d.FieldID}
}

// ConflictToken records a mismatch between the version assumed at submit
// time and the version reported by the store. Observed is nil when the store
// reported no version at all.
type ConflictToken struct {
	Observed *int64 `json:"observed,omitempty"`
	Expected int64  `json:"expected"`
}

// RetryState is attached to a session while it is retrying a failed save.
type RetryState struct {
	NextEligibleAt time.Time `json:"next_eligible_at"`
	LastError      error     `json:"-"`
	Attempt        int       `json:"attempt"`
}
