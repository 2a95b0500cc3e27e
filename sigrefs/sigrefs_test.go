package sigrefs

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

func seedSigner(t *testing.T, b byte) crypto.Signer {
	t.Helper()
	var seed [32]byte
	for i := range seed {
		seed[i] = b
	}
	return crypto.SignerFromSeed(seed)
}

func TestBuildStoreLoadVerifyRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	signer := seedSigner(t, 0x01)
	peer := signer.PublicKey()

	blobOid, err := repo.WriteTree("radicle.json", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	headOid, err := repo.CreateCommit(storage.IdentityRef(peer), blobOid, nil, storage.Identity{Name: "radicle", Email: peer.Hex(), When: time.Unix(0, 0)}, "Initialize\n")
	if err != nil {
		t.Fatal(err)
	}
	refs := map[string]storage.Oid{
		string(storage.IdentityRef(peer)): headOid,
	}

	built, err := Build(refs, signer)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Store(built, peer, repo, storage.Identity{Name: "radicle", Email: peer.Hex(), When: time.Unix(1, 0)}); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(peer, repo)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(loaded, peer, repo); err != nil {
		t.Fatalf("Verify() = %v, want nil", err)
	}
}

// I4: a sigrefs blob mentioning a ref not actually present in storage is
// rejected.
func TestVerifyRejectsUnresolvableRef(t *testing.T) {
	repo := newTestRepo(t)
	signer := seedSigner(t, 0x01)
	peer := signer.PublicKey()

	ghost := storage.Oid{0xde, 0xad}
	refs := map[string]storage.Oid{"refs/heads/main": ghost}
	built, err := Build(refs, signer)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(built, peer, repo); err == nil {
		t.Fatal("expected error for unresolvable ref, got nil")
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	repo := newTestRepo(t)
	signer := seedSigner(t, 0x01)
	other := seedSigner(t, 0x02).PublicKey()

	refs := map[string]storage.Oid{}
	built, err := Build(refs, signer)
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(built, other, repo); err == nil {
		t.Fatal("expected error for wrong signer, got nil")
	}
}
