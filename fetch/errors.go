// Package fetch implements the multi-stage, verify-before-commit fetch
// protocol that replicates a repository from a remote peer (spec.md §4.G).
package fetch

import (
	"fmt"

	"github.com/nodeforge/heartwood/crypto"
)

// ErrorKind enumerates the protocol- and policy-level failure modes a fetch
// or session can hit (spec.md §7, "Protocol" and "Policy" taxonomies).
type ErrorKind int

const (
	ErrHandshake ErrorKind = iota
	ErrWrongVersion
	ErrInvalidTimestamp
	ErrSessionNotFound
	ErrVerification
	ErrMisbehavior
	ErrTimeout
	ErrReplicateSelf
	ErrBlocked
	ErrMissingIdentity
	ErrLimit
)

// Error is the typed error fetch and session operations return.
type Error struct {
	Kind ErrorKind
	Peer crypto.PublicKey
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrHandshake:
		return fmt.Sprintf("fetch: handshake with %s failed: %s", e.Peer, e.Msg)
	case ErrWrongVersion:
		return fmt.Sprintf("fetch: %s speaks an incompatible protocol version: %s", e.Peer, e.Msg)
	case ErrInvalidTimestamp:
		return fmt.Sprintf("fetch: invalid timestamp from %s: %s", e.Peer, e.Msg)
	case ErrSessionNotFound:
		return fmt.Sprintf("fetch: no session for %s", e.Peer)
	case ErrVerification:
		return fmt.Sprintf("fetch: verification failed for %s: %s", e.Peer, e.Msg)
	case ErrMisbehavior:
		return fmt.Sprintf("fetch: %s misbehaved: %s", e.Peer, e.Msg)
	case ErrTimeout:
		return fmt.Sprintf("fetch: timed out waiting for %s", e.Peer)
	case ErrReplicateSelf:
		return "fetch: cannot replicate from the local peer"
	case ErrBlocked:
		return fmt.Sprintf("fetch: %s is blocked by policy", e.Peer)
	case ErrMissingIdentity:
		return fmt.Sprintf("fetch: %s has no identity document", e.Peer)
	case ErrLimit:
		return fmt.Sprintf("fetch: %s exceeded the fetch byte limit", e.Peer)
	default:
		return fmt.Sprintf("fetch: error for %s: %s", e.Peer, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }
