// Package drafts persists edits that could not reach the remote store so
// they survive process restarts.
package drafts

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/syncerr"
	"github.com/iudanet/fieldsync/internal/validation"
)

const keyPrefix = "draft:"

// Key returns the storage key of a draft: draft:{entityId}:{fieldId}.
func Key(entityID, fieldID string) string {
	return keyPrefix + entityID + ":" + fieldID
}

func entityPrefix(entityID string) string {
	return keyPrefix + entityID + ":"
}

// envelope хранит черновик вместе с контрольной суммой, чтобы обнаруживать
// обрезанные или повреждённые записи
type envelope struct {
	Sum   string          `json:"sum"`
	Draft json.RawMessage `json:"draft"`
}

var errChecksum = errors.New("checksum mismatch")

// Store keeps DraftRecords in a storage.KV. Unreadable entries are reported
// as absent; write failures are returned as *syncerr.StorageError.
type Store struct {
	kv     storage.KV
	logger *slog.Logger
	now    func() time.Time
}

// New creates a draft store over kv.
func New(kv storage.KV, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger,
		now:    time.Now,
	}
}

// Save persists draft, replacing any previous draft for the same field.
func (s *Store) Save(ctx context.Context, draft models.DraftRecord) error {
	key := Key(draft.EntityID, draft.FieldID)

	// ':' в идентификаторе сделал бы ключ неоднозначным
	if err := validation.ValidateKey(draft.EntityID, draft.FieldID); err != nil {
		return &syncerr.StorageError{Op: "save", Key: key, Err: err}
	}

	if draft.SavedLocallyAt.IsZero() {
		draft.SavedLocallyAt = s.now()
	}

	data, err := encode(draft)
	if err != nil {
		return &syncerr.StorageError{Op: "save", Key: key, Err: err}
	}

	if err := s.kv.Set(ctx, key, data); err != nil {
		return &syncerr.StorageError{Op: "save", Key: key, Err: err}
	}

	s.logger.Debug("Draft saved", "key", key, "version", draft.Version)
	return nil
}

// Load returns the draft for a field. Missing, unreadable and corrupted
// entries all report false.
func (s *Store) Load(ctx context.Context, entityID, fieldID string) (models.DraftRecord, bool) {
	key := Key(entityID, fieldID)
	if validation.ValidateKey(entityID, fieldID) != nil {
		return models.DraftRecord{}, false
	}

	data, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("Failed to read draft, treating as absent", "key", key, "error", err)
		}
		return models.DraftRecord{}, false
	}

	draft, err := decode(data)
	if err != nil || draft.EntityID != entityID || draft.FieldID != fieldID {
		s.logger.Warn("Corrupted draft, treating as absent", "key", key, "error", err)
		return models.DraftRecord{}, false
	}

	return draft, true
}

// Delete removes the draft for a field.
func (s *Store) Delete(ctx context.Context, entityID, fieldID string) error {
	key := Key(entityID, fieldID)
	if err := s.kv.Delete(ctx, key); err != nil {
		return &syncerr.StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// LoadAll returns every readable draft of an entity, ordered by field ID.
// When the underlying storage fails part-way, the drafts read so far are returned.
func (s *Store) LoadAll(ctx context.Context, entityID string) []models.DraftRecord {
	if validation.ValidateIdentifier("entity", entityID) != nil {
		return nil
	}

	var result []models.DraftRecord

	err := s.kv.Scan(ctx, entityPrefix(entityID), func(key string, value []byte) error {
		draft, err := decode(value)
		if err != nil || draft.EntityID != entityID || Key(draft.EntityID, draft.FieldID) != key {
			s.logger.Warn("Corrupted draft, skipping", "key", key, "error", err)
			return nil
		}
		result = append(result, draft)
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to scan drafts", "entity_id", entityID, "error", err)
	}

	return result
}

// Entities returns the IDs of entities that have at least one draft, sorted.
func (s *Store) Entities(ctx context.Context) []string {
	seen := make(map[string]bool)
	var result []string

	err := s.kv.Scan(ctx, keyPrefix, func(key string, _ []byte) error {
		rest := strings.TrimPrefix(key, keyPrefix)
		entityID, _, ok := strings.Cut(rest, ":")
		if ok && !seen[entityID] {
			seen[entityID] = true
			result = append(result, entityID)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to scan drafts", "error", err)
	}

	// Порядок ключей не совпадает с порядком ID: "e10:" < "e1:"
	slices.Sort(result)
	return result
}

func encode(draft models.DraftRecord) ([]byte, error) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draft: %w", err)
	}

	sum := blake2b.Sum256(payload)
	return json.Marshal(envelope{Sum: hex.EncodeToString(sum[:]), Draft: payload})
}

func decode(data []byte) (models.DraftRecord, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.DraftRecord{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	sum := blake2b.Sum256(env.Draft)
	if hex.EncodeToString(sum[:]) != env.Sum {
		return models.DraftRecord{}, errChecksum
	}

	var draft models.DraftRecord
	if err := json.Unmarshal(env.Draft, &draft); err != nil {
		return models.DraftRecord{}, fmt.Errorf("failed to unmarshal draft: %w", err)
	}

	return draft, nil
}
