package store

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes storage errors.
type ErrorKind string

const (
	// KindCorruptionDetected indicates a checksum mismatch. Load recovers
	// from it silently when the backup is valid; it is only reported by Verify.
	KindCorruptionDetected ErrorKind = "CORRUPTION_DETECTED"

	// KindCorruptionUnrecoverable indicates both primary and backup failed
	// validation. The caller must offer a destructive reset.
	KindCorruptionUnrecoverable ErrorKind = "CORRUPTION_UNRECOVERABLE"

	// KindSchemaTooNew indicates a stored document written by a newer build.
	KindSchemaTooNew ErrorKind = "SCHEMA_TOO_NEW"

	// KindBackendFailure indicates the backend itself failed to read or write.
	KindBackendFailure ErrorKind = "BACKEND_FAILURE"
)

// ErrSchemaTooNew is returned by Migrate for documents from a newer build.
var ErrSchemaTooNew = errors.New("schema version newer than supported")

// StorageError is returned by Store operations.
type StorageError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func newStorageError(kind ErrorKind, message string, err error) *StorageError {
	return &StorageError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a storage error, or "" for other errors.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsCorruptionUnrecoverable reports whether err requires a destructive reset.
func IsCorruptionUnrecoverable(err error) bool {
	return KindOf(err) == KindCorruptionUnrecoverable
}
