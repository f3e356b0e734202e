package storage

import "errors"

// Common storage errors
var (
	// ErrFieldNotFound indicates that the field has never been written
	ErrFieldNotFound = errors.New("field not found")

	// ErrVersionMismatch indicates that a conditional write was based on a stale version
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrBlobNotFound indicates that the blob reference is unknown
	ErrBlobNotFound = errors.New("blob not found")
)
