package storage

import (
	"encoding/hex"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
)

// Oid is a git object id: a 20-byte SHA-1 hash that content-addresses
// blobs, trees, commits, and (by extension) identity documents and change
// entries.
type Oid [20]byte

// ZeroOid is the all-zero oid, used as a sentinel for "no parent".
var ZeroOid Oid

// OidFromHash converts a go-git plumbing.Hash into an Oid.
func OidFromHash(h plumbing.Hash) Oid {
	var o Oid
	copy(o[:], h[:])
	return o
}

// Hash converts an Oid back into a go-git plumbing.Hash.
func (o Oid) Hash() plumbing.Hash {
	var h plumbing.Hash
	copy(h[:], o[:])
	return h
}

// ParseOid parses a 40-character hex string into an Oid.
func ParseOid(s string) (Oid, error) {
	var o Oid
	b, err := hex.DecodeString(s)
	if err != nil {
		return o, fmt.Errorf("storage: parse oid: %w", err)
	}
	if len(b) != len(o) {
		return o, fmt.Errorf("storage: oid must be %d bytes, got %d", len(o), len(b))
	}
	copy(o[:], b)
	return o, nil
}

func (o Oid) String() string { return hex.EncodeToString(o[:]) }

// IsZero reports whether o is the all-zero sentinel oid.
func (o Oid) IsZero() bool { return o == ZeroOid }
