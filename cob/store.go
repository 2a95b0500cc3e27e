package cob

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/nodeforge/heartwood/canonical"
	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/storage"
)

// TipRef names one author's current frontier entry for a collaborative
// object: the oid of the newest entry that author has written.
type TipRef struct {
	Oid    storage.Oid
	Author crypto.PublicKey
}

// Storage is the git storage contract the change graph needs (spec.md
// §4.E): given (typename, object_id), return the current tip set, resolve
// an entry by oid, and persist a newly authored entry under a
// content-addressed ref.
type Storage interface {
	Tips(typename TypeName, object ObjectID) ([]TipRef, error)
	Entry(typename TypeName, object ObjectID, oid storage.Oid) (Entry, error)
	Append(typename TypeName, object ObjectID, entry Entry) error
}

// wireEntry is the canonical on-disk shape of an entry.
type wireEntry struct {
	ID        string   `json:"id"`
	Parents   []string `json:"parents"`
	Typename  string   `json:"typename"`
	Payload   []byte   `json:"payload"`
	Author    string   `json:"author"`
	Signature string   `json:"signature"`
	Timestamp int64    `json:"timestamp"`
}

func toWire(e Entry) wireEntry {
	parents := make([]string, len(e.Parents))
	for i, p := range e.Parents {
		parents[i] = p.String()
	}
	return wireEntry{
		ID:        e.ID.String(),
		Parents:   parents,
		Typename:  string(e.Typename),
		Payload:   e.Payload,
		Author:    e.Author.Hex(),
		Signature: e.Signature.String(),
		Timestamp: e.Timestamp,
	}
}

func fromWire(w wireEntry) (Entry, error) {
	id, err := storage.ParseOid(w.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("cob: parse entry id: %w", err)
	}
	parents := make([]storage.Oid, len(w.Parents))
	for i, p := range w.Parents {
		oid, err := storage.ParseOid(p)
		if err != nil {
			return Entry{}, fmt.Errorf("cob: parse parent oid: %w", err)
		}
		parents[i] = oid
	}
	author, err := crypto.PublicKeyFromHex(w.Author)
	if err != nil {
		return Entry{}, fmt.Errorf("cob: parse author: %w", err)
	}
	sig, err := crypto.SignatureFromHex(w.Signature)
	if err != nil {
		return Entry{}, fmt.Errorf("cob: parse signature: %w", err)
	}
	return Entry{
		ID:        id,
		Parents:   parents,
		Typename:  TypeName(w.Typename),
		Payload:   w.Payload,
		Author:    author,
		Signature: sig,
		Timestamp: w.Timestamp,
	}, nil
}

// entryPath is the fixed path an entry's canonical JSON is written to
// within its single-file tree.
const entryPath = "entry.json"

func entryRef(typename TypeName, object ObjectID, entry storage.Oid) plumbing.ReferenceName {
	return plumbing.ReferenceName(fmt.Sprintf("refs/cobs/%s/%s/%s", typename, object, entry))
}

// GitStorage persists entries as single-blob git commits keyed by the
// entry's own content oid, one ref per entry (spec.md "persist a new entry
// under a content-addressed ref"). The per-author tip set is tracked
// alongside, since it is not itself content-addressed information.
type GitStorage struct {
	repo storage.WriteRepository

	mu   sync.Mutex
	tips map[tipKey][]TipRef
}

type tipKey struct {
	typename TypeName
	object   ObjectID
}

// NewGitStorage wraps repo as change-graph storage.
func NewGitStorage(repo storage.WriteRepository) *GitStorage {
	return &GitStorage{repo: repo, tips: make(map[tipKey][]TipRef)}
}

func (s *GitStorage) Append(typename TypeName, object ObjectID, entry Entry) error {
	data, err := canonical.Marshal(toWire(entry))
	if err != nil {
		return fmt.Errorf("cob: encode entry: %w", err)
	}
	tree, err := s.repo.WriteTree(entryPath, data)
	if err != nil {
		return fmt.Errorf("cob: write entry tree: %w", err)
	}
	ref := entryRef(typename, object, entry.ID)
	identity := storage.Identity{Name: "radicle", Email: entry.Author.Hex(), When: time.Unix(entry.Timestamp, 0).UTC()}
	if _, err := s.repo.CreateCommit(ref, tree, nil, identity, fmt.Sprintf("%s change entry", typename)); err != nil {
		return fmt.Errorf("cob: commit entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := tipKey{typename, object}
	tips := s.tips[key]
	replaced := false
	for i, t := range tips {
		if t.Author == entry.Author {
			tips[i] = TipRef{Oid: entry.ID, Author: entry.Author}
			replaced = true
			break
		}
	}
	if !replaced {
		tips = append(tips, TipRef{Oid: entry.ID, Author: entry.Author})
	}
	s.tips[key] = tips
	return nil
}

func (s *GitStorage) Tips(typename TypeName, object ObjectID) ([]TipRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tips := s.tips[tipKey{typename, object}]
	out := make([]TipRef, len(tips))
	copy(out, tips)
	return out, nil
}

func (s *GitStorage) Entry(typename TypeName, object ObjectID, oid storage.Oid) (Entry, error) {
	ref := entryRef(typename, object, oid)
	commitOid, err := s.repo.ReferenceOid(ref)
	if err != nil {
		return Entry{}, err
	}
	raw, err := s.repo.BlobAt(commitOid, entryPath)
	if err != nil {
		return Entry{}, err
	}
	var w wireEntry
	if err := json.Unmarshal(raw, &w); err != nil {
		return Entry{}, fmt.Errorf("cob: decode entry: %w", err)
	}
	return fromWire(w)
}

// MemoryStorage is an in-memory Storage used in tests and by callers that
// do not need git-backed persistence (e.g. a local working set before it is
// flushed to a repository).
type MemoryStorage struct {
	mu      sync.Mutex
	entries map[storage.Oid]Entry
	tips    map[tipKey][]TipRef
}

// NewMemoryStorage returns an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[storage.Oid]Entry), tips: make(map[tipKey][]TipRef)}
}

func (s *MemoryStorage) Append(typename TypeName, object ObjectID, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.ID] = entry
	key := tipKey{typename, object}
	tips := s.tips[key]
	for i, t := range tips {
		if t.Author == entry.Author {
			tips[i] = TipRef{Oid: entry.ID, Author: entry.Author}
			s.tips[key] = tips
			return nil
		}
	}
	s.tips[key] = append(tips, TipRef{Oid: entry.ID, Author: entry.Author})
	return nil
}

func (s *MemoryStorage) Tips(typename TypeName, object ObjectID) ([]TipRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tips := s.tips[tipKey{typename, object}]
	out := make([]TipRef, len(tips))
	copy(out, tips)
	return out, nil
}

func (s *MemoryStorage) Entry(_ TypeName, _ ObjectID, oid storage.Oid) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[oid]
	if !ok {
		return Entry{}, fmt.Errorf("cob: entry %s not found", oid)
	}
	return e, nil
}
