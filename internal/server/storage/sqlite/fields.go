package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/fieldsync/internal/server/storage"
)

// GetField returns the stored field or storage.ErrFieldNotFound
func (s *Storage) GetField(ctx context.Context, entityID, fieldID string) (*storage.Field, error) {
	query := `
		SELECT entity_id, field_id, value, version, updated_by, updated_at
		FROM fields
		WHERE entity_id = ? AND field_id = ?
	`

	field, err := scanField(s.db.QueryRowContext(ctx, query, entityID, fieldID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrFieldNotFound
		}
		return nil, fmt.Errorf("failed to get field: %w", err)
	}

	return field, nil
}

// PutField performs a conditional write inside a transaction
func (s *Storage) PutField(ctx context.Context, entityID, fieldID, value, updatedBy string, expected int64) (storage.WriteResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.WriteResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := scanField(tx.QueryRowContext(ctx, `
		SELECT entity_id, field_id, value, version, updated_by, updated_at
		FROM fields
		WHERE entity_id = ? AND field_id = ?
	`, entityID, fieldID))

	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Поля ещё нет: версия 0
		current = &storage.Field{EntityID: entityID, FieldID: fieldID}
	case err != nil:
		return storage.WriteResult{}, fmt.Errorf("failed to read current field: %w", err)
	}

	if current.Version != expected {
		return storage.WriteResult{Field: *current, Observed: current.Version}, storage.ErrVersionMismatch
	}

	now := time.Now()
	next := storage.Field{
		EntityID:  entityID,
		FieldID:   fieldID,
		Value:     value,
		Version:   current.Version + 1,
		UpdatedBy: updatedBy,
		UpdatedAt: time.Unix(now.Unix(), 0),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fields (entity_id, field_id, value, version, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_id, field_id) DO UPDATE SET
			value = excluded.value,
			version = excluded.version,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`, next.EntityID, next.FieldID, next.Value, next.Version, next.UpdatedBy, now.Unix())
	if err != nil {
		return storage.WriteResult{}, fmt.Errorf("failed to write field: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.WriteResult{}, fmt.Errorf("failed to commit field write: %w", err)
	}

	return storage.WriteResult{Field: next, Observed: current.Version}, nil
}

// ListFields returns every field of an entity ordered by field ID
func (s *Storage) ListFields(ctx context.Context, entityID string) ([]*storage.Field, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, field_id, value, version, updated_by, updated_at
		FROM fields
		WHERE entity_id = ?
		ORDER BY field_id ASC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fields: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var fields []*storage.Field
	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, field)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return fields, nil
}

// scanner покрывает *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanField(row scanner) (*storage.Field, error) {
	field := &storage.Field{}
	var updatedAt int64

	if err := row.Scan(
		&field.EntityID,
		&field.FieldID,
		&field.Value,
		&field.Version,
		&field.UpdatedBy,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	field.UpdatedAt = unixToTime(updatedAt)
	return field, nil
}

func unixToTime(timestamp int64) time.Time {
	return time.Unix(timestamp, 0)
}
