package storage

import (
	"errors"
	"fmt"
)

// NotFoundError wraps a lookup failure (missing ref, blob, or commit). It is
// the "recoverable signal" the spec's error taxonomy (§7) calls out:
// callers test for it with IsNotFound rather than treating it as fatal.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("storage: not found: %s", e.What) }

// IsNotFound reports whether err (or one it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func notFound(what string) error { return &NotFoundError{What: what} }
