// Package cob implements the collaborative-object change graph: a DAG of
// signed, content-addressed entries that converges to a single value by
// deterministic evaluation (spec.md §4.E).
package cob

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/nodeforge/heartwood/canonical"
	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/storage"
)

// TypeName identifies a collaborative object kind, e.g. "xyz.radicle.issue".
type TypeName string

// ObjectID identifies one collaborative object: the oid of its root entry.
type ObjectID = storage.Oid

// ExtendedSignature is a signature over an entry's content and parent set,
// binding the author to exactly this point in the graph.
type ExtendedSignature struct {
	Key crypto.PublicKey
	Sig crypto.Signature
}

// Entry is one content-addressed node in a change graph.
type Entry struct {
	ID        storage.Oid
	Parents   []storage.Oid
	Typename  TypeName
	Payload   []byte
	Author    crypto.PublicKey
	Signature crypto.Signature
	Timestamp int64
}

// entryContent is the canonical, hashable shape of an entry, excluding its
// own id (which is derived from this content) but including everything an
// author's signature must cover.
type entryContent struct {
	Parents   []string `json:"parents"`
	Typename  string   `json:"typename"`
	Payload   []byte   `json:"payload"`
	Author    string   `json:"author"`
	Timestamp int64    `json:"timestamp"`
}

func (e Entry) content() entryContent {
	parents := make([]string, len(e.Parents))
	for i, p := range e.Parents {
		parents[i] = p.String()
	}
	sort.Strings(parents)
	return entryContent{
		Parents:   parents,
		Typename:  string(e.Typename),
		Payload:   e.Payload,
		Author:    e.Author.Hex(),
		Timestamp: e.Timestamp,
	}
}

// contentHash returns the deterministic hash of e's content, the bytes an
// entry's id and its author's signature both commit to.
func (e Entry) contentHash() ([32]byte, error) {
	raw, err := canonical.Marshal(e.content())
	if err != nil {
		return [32]byte{}, fmt.Errorf("cob: encode entry content: %w", err)
	}
	return sha256.Sum256(raw), nil
}

// NewEntry builds and signs a new change entry. The resulting entry's id
// commits to its parents, typename, payload, author, and timestamp (I5).
func NewEntry(parents []storage.Oid, typename TypeName, payload []byte, timestamp int64, signer crypto.Signer) (Entry, error) {
	e := Entry{
		Parents:   append([]storage.Oid(nil), parents...),
		Typename:  typename,
		Payload:   payload,
		Author:    signer.PublicKey(),
		Timestamp: timestamp,
	}
	hash, err := e.contentHash()
	if err != nil {
		return Entry{}, err
	}
	e.ID = storage.Oid(sha256To20(hash))
	e.Signature = signer.Sign(hash[:])
	return e, nil
}

// sha256To20 truncates a 32-byte hash down to the 20-byte Oid width used
// throughout storage, matching the git object-id size.
func sha256To20(h [32]byte) [20]byte {
	var out [20]byte
	copy(out[:], h[:20])
	return out
}

// Verify checks I5 (the entry's id hashes its content) and that its
// signature verifies under its author key.
func (e Entry) Verify() error {
	hash, err := e.contentHash()
	if err != nil {
		return err
	}
	wantID := storage.Oid(sha256To20(hash))
	if e.ID != wantID {
		return fmt.Errorf("cob: entry id %s does not match content hash %s", e.ID, wantID)
	}
	if err := e.Author.Verify(hash[:], e.Signature); err != nil {
		return fmt.Errorf("cob: entry %s: invalid signature: %w", e.ID, err)
	}
	return nil
}
