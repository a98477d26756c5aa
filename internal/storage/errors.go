package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for common storage failures. Use errors.Is to check.
var (
	// ErrNotFound is returned when the requested key does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrKeyExists is returned when Put targets an existing key and
	// Overwrite is false.
	ErrKeyExists = errors.New("object already exists")

	// ErrTooLarge is returned when the data exceeds PutOptions.MaxSize.
	ErrTooLarge = errors.New("object exceeds maximum size")

	// ErrInvalidKey is returned when a key is empty or contains path
	// traversal sequences.
	ErrInvalidKey = errors.New("invalid object key")

	// ErrAccessDenied is returned when the storage backend rejects the
	// request for authorization reasons.
	ErrAccessDenied = errors.New("access denied")
)

// StorageError wraps a storage failure with operation and key context.
type StorageError struct {
	Op  string // Operation being performed: "put", "get", "delete", "url", "exists"
	Key string // Object key involved
	Err error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// newError constructs a StorageError for the given operation.
func newError(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsKeyExists reports whether err indicates a key conflict.
func IsKeyExists(err error) bool {
	return errors.Is(err, ErrKeyExists)
}

// IsTooLarge reports whether err indicates a size limit violation.
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}
