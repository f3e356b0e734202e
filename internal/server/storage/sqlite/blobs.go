package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/fieldsync/internal/server/storage"
)

// PutBlob stores an attachment and returns its reference
func (s *Storage) PutBlob(ctx context.Context, name, owner string, data []byte) (string, error) {
	ref := uuid.New().String()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (ref, name, owner, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ref, name, owner, data, time.Now().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to insert blob: %w", err)
	}

	return ref, nil
}

// GetBlob returns the attachment or storage.ErrBlobNotFound
func (s *Storage) GetBlob(ctx context.Context, ref string) (*storage.Blob, error) {
	blob := &storage.Blob{}
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT ref, name, owner, data, created_at
		FROM blobs
		WHERE ref = ?
	`, ref).Scan(&blob.Ref, &blob.Name, &blob.Owner, &blob.Data, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}

	blob.CreatedAt = unixToTime(createdAt)
	return blob, nil
}
