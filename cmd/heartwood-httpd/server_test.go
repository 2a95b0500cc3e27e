package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/sirupsen/logrus"

	hwcrypto "github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/identity"
	"github.com/nodeforge/heartwood/storage"
)

func newTestRepo(t *testing.T) *storage.Repository {
	t.Helper()
	backend, err := git.Init(memory.NewStorage(), nil)
	if err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return storage.FromBackend(backend, log)
}

func seedSigner(t *testing.T, b byte) hwcrypto.Signer {
	t.Helper()
	var seed [32]byte
	for i := range seed {
		seed[i] = b
	}
	return hwcrypto.SignerFromSeed(seed)
}

func seedCanonicalIdentity(t *testing.T, repo *storage.Repository, signer hwcrypto.Signer) {
	t.Helper()
	local := signer.PublicKey()
	doc, err := identity.Initial(identity.Project{Name: "proj", DefaultBranch: "main"}, hwcrypto.DIDFromPublicKey(local), identity.PublicVisibility())
	if err != nil {
		t.Fatal(err)
	}
	verified, err := doc.Verify()
	if err != nil {
		t.Fatal(err)
	}
	blobOid, sig, err := identity.Sign(verified, signer)
	if err != nil {
		t.Fatal(err)
	}
	_ = blobOid
	oid, err := identity.Init(verified, local, map[hwcrypto.PublicKey]hwcrypto.Signature{local: sig}, repo)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.SetReference(storage.CanonicalIdentityRef(), oid); err != nil {
		t.Fatal(err)
	}
}

func TestHandleCanonicalIdentityNotFound(t *testing.T) {
	repo := newTestRepo(t)
	srv := NewServer(repo, logrus.New())
	req := httptest.NewRequest(http.MethodGet, "/identity/canonical", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Code = %d, want 404", rr.Code)
	}
}

func TestHandleCanonicalIdentitySuccess(t *testing.T) {
	repo := newTestRepo(t)
	signer := seedSigner(t, 0x01)
	seedCanonicalIdentity(t, repo, signer)

	srv := NewServer(repo, logrus.New())
	req := httptest.NewRequest(http.MethodGet, "/identity/canonical", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Code = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandleIdentityBadPeer(t *testing.T) {
	repo := newTestRepo(t)
	srv := NewServer(repo, logrus.New())
	req := httptest.NewRequest(http.MethodGet, "/identity/not-hex", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Code = %d, want 400", rr.Code)
	}
}

func TestHandleSigrefsNotFound(t *testing.T) {
	repo := newTestRepo(t)
	signer := seedSigner(t, 0x02)
	srv := NewServer(repo, logrus.New())
	req := httptest.NewRequest(http.MethodGet, "/sigrefs/"+signer.PublicKey().Hex(), nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Code = %d, want 404", rr.Code)
	}
}
