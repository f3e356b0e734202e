package storage

import "errors"

// Common client storage errors
var (
	// ErrNotFound indicates that key was not found
	ErrNotFound = errors.New("key not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
