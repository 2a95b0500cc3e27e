package identity

import (
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"

	"github.com/nodeforge/heartwood/storage"
)

// RID is a Repository Id: the multibase encoding of a repository's genesis
// identity commit oid, printed as "rad:<multibase>" (spec.md §6).
type RID string

// RIDFromGenesis derives the RID for a repository whose genesis identity
// commit is oid.
func RIDFromGenesis(oid storage.Oid) (RID, error) {
	enc, err := multibase.Encode(multibase.Base58BTC, oid[:])
	if err != nil {
		return "", fmt.Errorf("identity: encode rid: %w", err)
	}
	return RID("rad:" + enc), nil
}

// Oid decodes the RID back into the genesis identity commit oid.
func (r RID) Oid() (storage.Oid, error) {
	const prefix = "rad:"
	s := string(r)
	if !strings.HasPrefix(s, prefix) {
		return storage.Oid{}, fmt.Errorf("identity: %q is not a valid rid", s)
	}
	_, data, err := multibase.Decode(s[len(prefix):])
	if err != nil {
		return storage.Oid{}, fmt.Errorf("identity: decode rid: %w", err)
	}
	return storage.ParseOid(fmt.Sprintf("%x", data))
}

func (r RID) String() string { return string(r) }

// Genesis walks the identity ancestry from oid back to the root (parentless)
// commit and returns the RID derived from it.
func Genesis(oid storage.Oid, repo storage.ReadRepository) (RID, error) {
	cur := oid
	for {
		commit, err := repo.Commit(cur)
		if err != nil {
			return "", err
		}
		if len(commit.Parents) == 0 {
			return RIDFromGenesis(cur)
		}
		cur = commit.Parents[0]
	}
}
