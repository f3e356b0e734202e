// Package syncerr defines the error taxonomy of the edit synchronization
// engine and the classification used to route failures.
package syncerr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/iudanet/fieldsync/internal/models"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNetwork
	KindConflict
	KindPermission
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindConflict:
		return "conflict"
	case KindPermission:
		return "permission"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Reason is a single structured validation failure.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationError is returned when a value is not eligible to be saved,
// either by the local gate or by the store.
type ValidationError struct {
	Field   string
	Reasons []Reason
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		msgs = append(msgs, r.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, strings.Join(msgs, "; "))
}

// NetworkError wraps a transient transport failure.
type NetworkError struct {
	Err error
	Op  string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConflictError is returned when the store holds a different version than
// the one the write was based on.
type ConflictError struct {
	LocalValue    string
	RemoteValue   string
	Token         models.ConflictToken
	RemoteVersion int64
}

func (e *ConflictError) Error() string {
	if e.Token.Observed == nil {
		return fmt.Sprintf("version conflict: expected %d, store reported no version", e.Token.Expected)
	}
	return fmt.Sprintf("version conflict: expected %d, observed %d", e.Token.Expected, *e.Token.Observed)
}

// PermissionError is returned when the store refuses the write.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return "permission denied: " + e.Message
}

// StorageError is returned by the offline draft store.
type StorageError struct {
	Err error
	Op  string
	Key string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("draft storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Classify returns the kind of err. Deadline errors and net.Error values
// count as network failures.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var (
		validationErr *ValidationError
		networkErr    *NetworkError
		conflictErr   *ConflictError
		permissionErr *PermissionError
		storageErr    *StorageError
		netErr        net.Error
	)

	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &conflictErr):
		return KindConflict
	case errors.As(err, &permissionErr):
		return KindPermission
	case errors.As(err, &storageErr):
		return KindStorage
	case errors.As(err, &networkErr):
		return KindNetwork
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// Retryable reports whether err may be resolved by trying again.
// Failures nobody classified are treated as transient.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindNetwork, KindUnknown:
		return err != nil && !errors.Is(err, context.Canceled)
	default:
		return false
	}
}
