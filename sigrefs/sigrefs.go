// Package sigrefs implements signed references: a peer's cryptographically
// attested snapshot of its own ref set, the unit of replication (spec.md
// §4.F).
package sigrefs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nodeforge/heartwood/canonical"
	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/identity"
	"github.com/nodeforge/heartwood/storage"
)

// Path is where the sigrefs blob is stored within the sigrefs branch.
const Path = "refs.json"

// Sigrefs is one peer's signed snapshot of its ref set.
type Sigrefs struct {
	Refs      map[string]storage.Oid
	Signature crypto.Signature
}

// refsJSON is the canonical wire shape signed over: ref names in sorted
// order, each mapped to its hex oid.
type refsJSON struct {
	Refs map[string]string `json:"refs"`
}

// MarshalJSON renders Sigrefs as hex-encoded refs and signature, for
// diagnostic and HTTP read-only endpoints (not used for the signed
// canonical encoding, which always goes through canonicalBytes).
func (s Sigrefs) MarshalJSON() ([]byte, error) {
	refs := make(map[string]string, len(s.Refs))
	for name, oid := range s.Refs {
		refs[name] = oid.String()
	}
	return json.Marshal(struct {
		Refs      map[string]string `json:"refs"`
		Signature string            `json:"signature"`
	}{Refs: refs, Signature: s.Signature.String()})
}

func canonicalBytes(refs map[string]storage.Oid) ([]byte, error) {
	wire := refsJSON{Refs: make(map[string]string, len(refs))}
	for name, oid := range refs {
		wire.Refs[name] = oid.String()
	}
	raw, err := canonical.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("sigrefs: encode: %w", err)
	}
	return raw, nil
}

// Collect gathers the peer's own refs (identity branch, COB tips, data
// branches) from repo into the ref→oid map that gets signed.
func Collect(repo ReadWalkRepository, peer crypto.PublicKey) (map[string]storage.Oid, error) {
	return repo.WalkRefs(peer)
}

// ReadWalkRepository is the minimal storage surface Collect needs: the
// ability to enumerate every ref a peer owns. A production git backend
// implements this by listing refs under the peer's namespace; tests can
// provide a map-backed fake directly.
type ReadWalkRepository interface {
	WalkRefs(peer crypto.PublicKey) (map[string]storage.Oid, error)
}

// Build signs refs with signer and returns the resulting Sigrefs value.
func Build(refs map[string]storage.Oid, signer crypto.Signer) (Sigrefs, error) {
	raw, err := canonicalBytes(refs)
	if err != nil {
		return Sigrefs{}, err
	}
	return Sigrefs{Refs: refs, Signature: signer.Sign(raw)}, nil
}

// Store writes s to peer's sigrefs branch in repo.
func Store(s Sigrefs, peer crypto.PublicKey, repo storage.WriteRepository, author storage.Identity) (storage.Oid, error) {
	raw, err := canonicalBytes(s.Refs)
	if err != nil {
		return storage.Oid{}, err
	}
	tree, err := repo.WriteTree(Path, raw)
	if err != nil {
		return storage.Oid{}, fmt.Errorf("sigrefs: write tree: %w", err)
	}
	ref := storage.SigrefsRef(peer)
	message := fmt.Sprintf("sig: %s %s\n", peer.Hex(), s.Signature)
	oid, err := repo.CreateCommit(ref, tree, nil, author, message)
	if err != nil {
		return storage.Oid{}, fmt.Errorf("sigrefs: create commit: %w", err)
	}
	return oid, nil
}

// Load resolves and parses peer's sigrefs branch in repo, without verifying
// it; use Verify to check I4 and the signature.
func Load(peer crypto.PublicKey, repo storage.ReadRepository) (Sigrefs, error) {
	oid, err := repo.ReferenceOid(storage.SigrefsRef(peer))
	if err != nil {
		return Sigrefs{}, err
	}
	return LoadAt(oid, repo)
}

// LoadAt parses the sigrefs blob and trailer signature at a specific
// sigrefs commit.
func LoadAt(oid storage.Oid, repo storage.ReadRepository) (Sigrefs, error) {
	raw, err := repo.BlobAt(oid, Path)
	if err != nil {
		return Sigrefs{}, err
	}
	var wire refsJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Sigrefs{}, fmt.Errorf("sigrefs: decode: %w", err)
	}
	refs := make(map[string]storage.Oid, len(wire.Refs))
	for name, hex := range wire.Refs {
		oid, err := storage.ParseOid(hex)
		if err != nil {
			return Sigrefs{}, fmt.Errorf("sigrefs: parse ref oid for %s: %w", name, err)
		}
		refs[name] = oid
	}
	commit, err := repo.Commit(oid)
	if err != nil {
		return Sigrefs{}, err
	}
	sig, err := parseSignatureTrailer(commit.Message)
	if err != nil {
		return Sigrefs{}, err
	}
	return Sigrefs{Refs: refs, Signature: sig}, nil
}

// VerifySignature checks only that s's signature verifies under peer's
// key, without checking ref presence in storage. The fetch protocol uses
// this during its special-refs stage, before the referenced ref data has
// necessarily been pulled (spec.md §4.G Stage 1: "each ref claimed maps to
// an oid present in storage, or is to be fetched in the current
// exchange").
func VerifySignature(s Sigrefs, peer crypto.PublicKey) error {
	raw, err := canonicalBytes(s.Refs)
	if err != nil {
		return err
	}
	if err := peer.Verify(raw, s.Signature); err != nil {
		return fmt.Errorf("sigrefs: %w", err)
	}
	return nil
}

// Verify checks that s's signature verifies under peer's key and that
// every ref it claims is actually present in storage (I4). Use this for a
// sigrefs snapshot that is expected to already be fully settled locally;
// use VerifySignature during an in-progress fetch exchange.
func Verify(s Sigrefs, peer crypto.PublicKey, repo storage.ReadRepository) error {
	if err := VerifySignature(s, peer); err != nil {
		return err
	}
	names := make([]string, 0, len(s.Refs))
	for name := range s.Refs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		oid := s.Refs[name]
		if !repo.HasObject(oid) {
			return fmt.Errorf("sigrefs: ref %s claims oid %s not present in storage", name, oid)
		}
	}
	return nil
}

// Permitted checks that peer is allowed to publish for this repository
// under its identity document: true for any peer when the document is
// public, and for delegates and allow-list members when it is private, i.e.
// a sigrefs publisher must be one the repository is visible to.
func Permitted(peer crypto.PublicKey, doc identity.Doc[identity.Verified]) bool {
	return doc.IsVisibleTo(peer)
}

// parseSignatureTrailer extracts the single "sig: <pubkey> <signature>"
// trailer a sigrefs commit carries.
func parseSignatureTrailer(message string) (crypto.Signature, error) {
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) != "sig" {
			continue
		}
		fields := strings.Fields(value)
		if len(fields) != 2 {
			return crypto.Signature{}, fmt.Errorf("sigrefs: malformed sig trailer %q", line)
		}
		return crypto.SignatureFromHex(fields[1])
	}
	return crypto.Signature{}, fmt.Errorf("sigrefs: missing sig trailer")
}
