package secondary

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a write carries a stale version token.
// The caller must re-fetch and retry; nothing was written.
var ErrVersionConflict = errors.New("version conflict")

// TransientError marks a collaborator failure worth retrying
// (overloaded, rate-limited, temporary network failure).
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err (or anything it wraps) is transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
