package identity

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/storage"
)

// DocAt is a verified document snapshot: the commit and blob it was read
// from, the parsed document, and the trailer signatures that were
// cryptographically validated against the blob oid.
type DocAt struct {
	Commit storage.Oid
	Blob   storage.Oid
	Doc    Doc[Verified]
	Sigs   map[crypto.PublicKey]crypto.Signature
}

// Sign signs a verified document, returning its blob oid and the signature
// over that oid.
func Sign(doc Doc[Verified], signer crypto.Signer) (blobOid storage.Oid, sig crypto.Signature, err error) {
	oid, _, err := doc.Encode()
	if err != nil {
		return storage.Oid{}, crypto.Signature{}, err
	}
	return storage.Oid(oid), signer.Sign(oid[:]), nil
}

// commitTime returns the timestamp to stamp commits with, honoring the
// HEARTWOOD_COMMIT_TIME override used for deterministic tests (the
// RAD_COMMIT_TIME analogue named in SPEC_FULL.md).
func commitTime() time.Time {
	if v := os.Getenv("HEARTWOOD_COMMIT_TIME"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(ts, 0).UTC()
		}
	}
	return time.Now().UTC()
}

func authorIdentity(remote crypto.PublicKey) storage.Identity {
	return storage.Identity{Name: "radicle", Email: remote.ToHuman(), When: commitTime()}
}

// Init writes the canonical blob into a fresh tree and commits it on the
// identity ref for remote, with one "sig:" trailer per provided signature
// (spec.md §4.D Init).
func Init(doc Doc[Verified], remote crypto.PublicKey, signatures map[crypto.PublicKey]crypto.Signature, repo storage.WriteRepository) (storage.Oid, error) {
	_, raw, err := doc.Encode()
	if err != nil {
		return storage.Oid{}, err
	}
	tree, err := repo.WriteTree(Path, raw)
	if err != nil {
		return storage.Oid{}, fmt.Errorf("identity: write tree: %w", err)
	}
	msg := FormatCommitMessage("Initialize Radicle", signatures)
	ref := storage.IdentityRef(remote)
	oid, err := repo.CreateCommit(ref, tree, nil, authorIdentity(remote), msg)
	if err != nil {
		return storage.Oid{}, fmt.Errorf("identity: create commit: %w", err)
	}
	return oid, nil
}

// Update writes a new document version as a child of the current identity
// commit (spec.md §4.D Update).
func Update(doc Doc[Verified], remote crypto.PublicKey, title string, signatures map[crypto.PublicKey]crypto.Signature, repo storage.WriteRepository) (storage.Oid, error) {
	_, raw, err := doc.Encode()
	if err != nil {
		return storage.Oid{}, err
	}
	tree, err := repo.WriteTree(Path, raw)
	if err != nil {
		return storage.Oid{}, fmt.Errorf("identity: write tree: %w", err)
	}
	ref := storage.IdentityRef(remote)
	head, err := repo.ReferenceOid(ref)
	if err != nil {
		return storage.Oid{}, fmt.Errorf("identity: resolve current head: %w", err)
	}
	msg := FormatCommitMessage(title, signatures)
	oid, err := repo.CreateCommit(ref, tree, []storage.Oid{head}, authorIdentity(remote), msg)
	if err != nil {
		return storage.Oid{}, fmt.Errorf("identity: create commit: %w", err)
	}
	return oid, nil
}

// LoadAt reads and structurally/cryptographically verifies the document at
// commit oid: it parses the blob, verifies I1, parses the commit's trailers
// (any malformed trailer is fatal), and checks each trailer signature
// against the blob oid. It does not check the threshold against an
// ancestor's delegate set; use VerifyChain for that (spec.md I3).
func LoadAt(oid storage.Oid, repo storage.ReadRepository) (*DocAt, error) {
	blob, err := repo.BlobAt(oid, Path)
	if err != nil {
		return nil, err
	}
	unverified, err := FromJSON(blob)
	if err != nil {
		return nil, err
	}
	doc, err := unverified.Verify()
	if err != nil {
		return nil, err
	}
	blobHash := gitBlobHash(blob)

	commit, err := repo.Commit(oid)
	if err != nil {
		return nil, err
	}
	sigs, err := ParseSignatures(commit.Message)
	if err != nil {
		return nil, err
	}
	for pk, sig := range sigs {
		if err := pk.Verify(blobHash[:], sig); err != nil {
			return nil, &Error{Kind: ErrSignature, Key: pk, Err: err}
		}
	}
	return &DocAt{Commit: oid, Blob: storage.Oid(blobHash), Doc: doc, Sigs: sigs}, nil
}

// VerifyChain walks the identity commit ancestry from the genesis commit up
// to oid, enforcing I3: every commit must carry at least `threshold` valid
// signatures from the delegates named in the *parent* commit's document (the
// root validates against its own delegates, since it is self-attesting). It
// returns the verified snapshot at oid.
func VerifyChain(oid storage.Oid, repo storage.ReadRepository) (*DocAt, error) {
	chain, err := collectChain(oid, repo)
	if err != nil {
		return nil, err
	}
	var parent *DocAt
	for _, at := range chain {
		authority := at // root is self-attesting
		if parent != nil {
			authority = parent
		}
		if err := checkThreshold(at, authority.Doc); err != nil {
			return nil, err
		}
		parent = at
	}
	return chain[len(chain)-1], nil
}

// collectChain loads every commit from the genesis (first-parent root) of
// the identity branch up to and including oid, in ancestor-first order.
func collectChain(oid storage.Oid, repo storage.ReadRepository) ([]*DocAt, error) {
	var reversed []*DocAt
	cur := oid
	for {
		at, err := LoadAt(cur, repo)
		if err != nil {
			return nil, err
		}
		reversed = append(reversed, at)
		commit, err := repo.Commit(cur)
		if err != nil {
			return nil, err
		}
		if len(commit.Parents) == 0 {
			break
		}
		// The identity branch is a single line of succession; only the
		// first parent is followed.
		cur = commit.Parents[0]
	}
	chain := make([]*DocAt, len(reversed))
	for i, at := range reversed {
		chain[len(reversed)-1-i] = at
	}
	return chain, nil
}

// checkThreshold verifies that at carries enough valid signatures from
// authority's delegates to meet authority's threshold.
func checkThreshold(at *DocAt, authority Doc[Verified]) error {
	count := 0
	for pk := range at.Sigs {
		if authority.IsDelegate(pk) {
			count++
		}
	}
	if count < authority.Threshold {
		return &Error{Kind: ErrThreshold, Msg: fmt.Sprintf("commit %s has %d valid delegate signatures, need %d", at.Commit, count, authority.Threshold)}
	}
	return nil
}

// Head resolves the identity branch head oid for remote.
func Head(remote crypto.PublicKey, repo storage.ReadRepository) (storage.Oid, error) {
	return repo.ReferenceOid(storage.IdentityRef(remote))
}

// Load resolves and fully verifies (chain + threshold) the identity
// document for remote.
func Load(remote crypto.PublicKey, repo storage.ReadRepository) (*DocAt, error) {
	oid, err := Head(remote, repo)
	if err != nil {
		return nil, err
	}
	return VerifyChain(oid, repo)
}

// CanonicalHead resolves the repository-wide canonical identity commit.
func CanonicalHead(repo storage.ReadRepository) (storage.Oid, error) {
	return repo.ReferenceOid(storage.CanonicalIdentityRef())
}

// Canonical resolves and fully verifies the repository's canonical
// identity document.
func Canonical(repo storage.ReadRepository) (*DocAt, error) {
	oid, err := CanonicalHead(repo)
	if err != nil {
		return nil, err
	}
	return VerifyChain(oid, repo)
}
