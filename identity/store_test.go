package identity

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/storage"
)

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	backend, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return storage.FromBackend(backend, nil)
}

func TestInitLoadRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	delegateSigner := crypto.SignerFromSeed(seedOf(0x01))
	delegate := delegateSigner.PublicKey()

	unverified, err := Initial(Project{Name: "heartwood", DefaultBranch: "main"}, crypto.DIDFromPublicKey(delegate), PublicVisibility())
	if err != nil {
		t.Fatal(err)
	}
	doc, err := unverified.Verify()
	if err != nil {
		t.Fatal(err)
	}
	blobOid, _, err := doc.Encode()
	if err != nil {
		t.Fatal(err)
	}
	sig := delegateSigner.Sign(blobOid[:])

	oid, err := Init(doc, delegate, map[crypto.PublicKey]crypto.Signature{delegate: sig}, repo)
	if err != nil {
		t.Fatal(err)
	}
	at, err := Load(delegate, repo)
	if err != nil {
		t.Fatal(err)
	}
	if at.Commit != oid {
		t.Fatalf("Load().Commit = %v, want %v", at.Commit, oid)
	}
	if len(at.Doc.Delegates) != 1 || at.Doc.Delegates[0] != crypto.DIDFromPublicKey(delegate) {
		t.Fatalf("Load().Doc.Delegates = %v", at.Doc.Delegates)
	}

	rid, err := Genesis(oid, repo)
	if err != nil {
		t.Fatal(err)
	}
	if rid.String()[:4] != "rad:" {
		t.Fatalf("RID = %q, want rad: prefix", rid)
	}
	back, err := rid.Oid()
	if err != nil {
		t.Fatal(err)
	}
	if back != oid {
		t.Fatalf("RID round trip = %v, want %v", back, oid)
	}
}

// Concrete scenario 3: three delegates, threshold 2. A commit signed by only
// one delegate is rejected by VerifyChain; by two, accepted.
func TestThresholdEnforcement(t *testing.T) {
	repo := newTestRepo(t)
	signers := make([]crypto.Signer, 3)
	dids := make([]crypto.DID, 3)
	for i := range signers {
		signers[i] = crypto.SignerFromSeed(seedOf(byte(i + 1)))
		dids[i] = crypto.DIDFromPublicKey(signers[i].PublicKey())
	}
	remote := signers[0].PublicKey()

	unverified := New(map[string]Payload{}, dids, 2, PublicVisibility())
	doc, err := unverified.Verify()
	if err != nil {
		t.Fatal(err)
	}
	blobOid, _, err := doc.Encode()
	if err != nil {
		t.Fatal(err)
	}

	oneSig := map[crypto.PublicKey]crypto.Signature{
		signers[0].PublicKey(): signers[0].Sign(blobOid[:]),
	}
	oid, err := Init(doc, remote, oneSig, repo)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyChain(oid, repo); err == nil {
		t.Fatal("expected threshold error for single signature, got nil")
	}

	twoSigs := map[crypto.PublicKey]crypto.Signature{
		signers[0].PublicKey(): signers[0].Sign(blobOid[:]),
		signers[1].PublicKey(): signers[1].Sign(blobOid[:]),
	}
	repo2 := newTestRepo(t)
	oid2, err := Init(doc, remote, twoSigs, repo2)
	if err != nil {
		t.Fatal(err)
	}
	at, err := VerifyChain(oid2, repo2)
	if err != nil {
		t.Fatalf("expected two signatures to satisfy threshold, got %v", err)
	}
	if at.Doc.Threshold != 2 {
		t.Fatalf("Threshold = %d, want 2", at.Doc.Threshold)
	}

	// Rescind one delegate, leaving threshold=2 over 2 delegates: still
	// signable by the remaining two.
	updated := at.Doc
	removed, err := updated.Rescind(signers[2].PublicKey())
	if err != nil || !removed {
		t.Fatalf("Rescind(signers[2]) = %v, %v", removed, err)
	}
	updatedBlob, _, err := updated.Encode()
	if err != nil {
		t.Fatal(err)
	}
	updateSigs := map[crypto.PublicKey]crypto.Signature{
		signers[0].PublicKey(): signers[0].Sign(updatedBlob[:]),
		signers[1].PublicKey(): signers[1].Sign(updatedBlob[:]),
	}
	updateOid, err := Update(updated, remote, "Rescind delegate", updateSigs, repo2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyChain(updateOid, repo2); err != nil {
		t.Fatalf("expected update to satisfy threshold against root authority, got %v", err)
	}

	// Rescinding a second delegate from the post-update document (2
	// delegates, threshold 2) must fail at the document level.
	final := updated
	if _, err := final.Rescind(signers[1].PublicKey()); err == nil {
		t.Fatal("expected second rescind to fail, got nil")
	}
}

func TestUpdateRequiresExistingHead(t *testing.T) {
	repo := newTestRepo(t)
	signer := crypto.SignerFromSeed(seedOf(0x09))
	doc, err := New(map[string]Payload{}, []crypto.DID{crypto.DIDFromPublicKey(signer.PublicKey())}, 1, PublicVisibility()).Verify()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Update(doc, signer.PublicKey(), "Update", nil, repo); err == nil {
		t.Fatal("expected error updating a repository with no existing identity head")
	}
}

func TestCommitTimeOverride(t *testing.T) {
	t.Setenv("HEARTWOOD_COMMIT_TIME", "1700000000")
	got := commitTime()
	want := time.Unix(1700000000, 0).UTC()
	if !got.Equal(want) {
		t.Fatalf("commitTime() = %v, want %v", got, want)
	}
}
