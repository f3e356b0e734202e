package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldKey_String(t *testing.T) {
	key := FieldKey{EntityID: "order-1", FieldID: "title"}
	assert.Equal(t, "order-1/title", key.String())
}

func TestNewSaveOperation(t *testing.T) {
	now := time.Now()
	field := EditableField{EntityID: "order-1", FieldID: "title", Value: "ABC", Version: 4}

	op := NewSaveOperation(field, 2, 7, now)

	_, err := uuid.Parse(op.ID)
	require.NoError(t, err)
	assert.Equal(t, field.Key(), op.Key())
	assert.Equal(t, "ABC", op.Value)
	assert.Equal(t, int64(4), op.Version)
	assert.Equal(t, 2, op.Attempt)
	assert.Equal(t, uint64(7), op.Seq)
	assert.Equal(t, now, op.CreatedAt)

	// Каждая операция получает собственный ID
	other := NewSaveOperation(field, 2, 7, now)
	assert.NotEqual(t, op.ID, other.ID)
}

func TestState_Classification(t *testing.T) {
	tests := []struct {
		state    State
		name     string
		settled  bool
		terminal bool
	}{
		{name: "idle", state: StateIdle, settled: true, terminal: true},
		{name: "editing", state: StateEditing},
		{name: "validating", state: StateValidating},
		{name: "scheduled", state: StateScheduled},
		{name: "saving", state: StateSaving},
		{name: "saved", state: StateSaved, settled: true, terminal: true},
		{name: "conflict", state: StateConflict, settled: true},
		{name: "error", state: StateError, settled: true},
		{name: "offline", state: StateOffline, settled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.state.String())
			assert.Equal(t, tt.settled, tt.state.Settled())
			assert.Equal(t, tt.terminal, tt.state.Terminal())
		})
	}

	assert.Equal(t, "unknown", State(42).String())
}
