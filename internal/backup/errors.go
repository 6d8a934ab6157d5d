package backup

import (
	"errors"
	"fmt"
)

// ImportErrorKind classifies an import rejection.
type ImportErrorKind string

const (
	// KindSchemaTooNew means the candidate was written by a newer build.
	// Such documents are refused, never coerced.
	KindSchemaTooNew ImportErrorKind = "SCHEMA_TOO_NEW"

	// KindValidationFailed means the candidate is malformed.
	KindValidationFailed ImportErrorKind = "VALIDATION_FAILED"
)

// ImportError is returned for every rejected candidate. Reason is meant
// for the person choosing the file.
type ImportError struct {
	Kind   ImportErrorKind
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import rejected: %s: %s", e.Kind, e.Reason)
}

func (e *ImportError) Unwrap() error { return e.Err }

func rejected(kind ImportErrorKind, err error, format string, args ...any) *ImportError {
	return &ImportError{Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the import error kind of err, or "" if err is not an
// ImportError.
func KindOf(err error) ImportErrorKind {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ""
}

// IsSchemaTooNew reports whether err rejects a newer-version document.
func IsSchemaTooNew(err error) bool {
	return KindOf(err) == KindSchemaTooNew
}
