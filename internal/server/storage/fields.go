package storage

import (
	"context"
	"time"
)

// Field is the stored state of one field.
type Field struct {
	UpdatedAt time.Time
	EntityID  string
	FieldID   string
	Value     string
	UpdatedBy string
	Version   int64
}

// WriteResult describes a conditional write. Observed is the version held
// before the write; Field is the state after it, or the current state when
// the write was refused.
type WriteResult struct {
	Field    Field
	Observed int64
}

// FieldStorage defines interface for field persistence
type FieldStorage interface {
	// GetField returns the field or ErrFieldNotFound
	GetField(ctx context.Context, entityID, fieldID string) (*Field, error)

	// PutField writes value only when the stored version equals expected
	// (0 for a field that does not exist yet). On mismatch it returns
	// ErrVersionMismatch together with the current state.
	PutField(ctx context.Context, entityID, fieldID, value, updatedBy string, expected int64) (WriteResult, error)

	// ListFields returns every field of an entity ordered by field ID
	ListFields(ctx context.Context, entityID string) ([]*Field, error)
}

// Blob is a stored attachment.
type Blob struct {
	CreatedAt time.Time
	Ref       string
	Name      string
	Owner     string
	Data      []byte
}

// BlobStorage defines interface for attachment persistence
type BlobStorage interface {
	// PutBlob stores data and returns its reference
	PutBlob(ctx context.Context, name, owner string, data []byte) (string, error)

	// GetBlob returns the blob or ErrBlobNotFound
	GetBlob(ctx context.Context, ref string) (*Blob, error)
}
