package identity

import (
	"fmt"

	"github.com/nodeforge/heartwood/crypto"
)

// ErrorKind enumerates the structural/cryptographic failure modes a
// document can hit (spec.md §7).
type ErrorKind int

const (
	ErrJSON ErrorKind = iota
	ErrDelegates
	ErrThreshold
	ErrSignature
	ErrTrailers
	ErrCommit
	ErrVersion
)

// Error is the typed error identity operations return.
type Error struct {
	Kind ErrorKind
	Msg  string
	Key  crypto.PublicKey
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrSignature:
		return fmt.Sprintf("identity: invalid signature for %s: %v", e.Key, e.Err)
	case ErrJSON:
		return fmt.Sprintf("identity: invalid json: %v", e.Err)
	case ErrTrailers:
		return fmt.Sprintf("identity: invalid commit trailers: %s", e.Msg)
	case ErrCommit:
		return fmt.Sprintf("identity: invalid commit: %s", e.Msg)
	case ErrVersion:
		return fmt.Sprintf("identity: invalid version: %s", e.Msg)
	case ErrThreshold:
		return fmt.Sprintf("identity: invalid threshold: %s", e.Msg)
	default:
		return fmt.Sprintf("identity: invalid delegates: %s", e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }
