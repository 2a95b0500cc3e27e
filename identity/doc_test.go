package identity

import (
	"testing"

	"github.com/nodeforge/heartwood/crypto"
)

func seededDID(t *testing.T, b byte) crypto.DID {
	t.Helper()
	var seed [32]byte
	for i := range seed {
		seed[i] = b
	}
	return crypto.DIDFromPublicKey(crypto.SignerFromSeed(seed).PublicKey())
}

// Doc validation: threshold > |delegates| is rejected.
func TestVerifyRejectsThresholdAboveDelegateCount(t *testing.T) {
	d1 := seededDID(t, 0x01)
	doc := New(map[string]Payload{}, []crypto.DID{d1}, 2, PublicVisibility())
	if _, err := doc.Verify(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Doc validation: |delegates| = 0 is rejected.
func TestVerifyRejectsEmptyDelegates(t *testing.T) {
	doc := New(map[string]Payload{}, nil, 1, PublicVisibility())
	if _, err := doc.Verify(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Doc validation: threshold = 0 is rejected.
func TestVerifyRejectsZeroThreshold(t *testing.T) {
	d1 := seededDID(t, 0x01)
	doc := New(map[string]Payload{}, []crypto.DID{d1}, 0, PublicVisibility())
	if _, err := doc.Verify(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Doc validation: duplicate delegates are rejected.
func TestVerifyRejectsDuplicateDelegates(t *testing.T) {
	d1 := seededDID(t, 0x01)
	doc := New(map[string]Payload{}, []crypto.DID{d1, d1}, 1, PublicVisibility())
	if _, err := doc.Verify(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d1 := seededDID(t, 0x01)
	unverified, err := Initial(Project{Name: "heartwood", DefaultBranch: "main"}, d1, PublicVisibility())
	if err != nil {
		t.Fatal(err)
	}
	doc, err := unverified.Verify()
	if err != nil {
		t.Fatal(err)
	}
	_, bytes, err := doc.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := FromJSON(bytes)
	if err != nil {
		t.Fatal(err)
	}
	reverified, err := decoded.Verify()
	if err != nil {
		t.Fatal(err)
	}
	_, again, err := reverified.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(bytes) != string(again) {
		t.Fatalf("encode(decode(encode(d))) != encode(d):\n%s\n%s", bytes, again)
	}
}

// Concrete scenario 6: private doc with allow-list {D1} is visible to D1 and
// to delegates, but not to any other key.
func TestVisibilityAllowListAndDelegates(t *testing.T) {
	delegate := crypto.SignerFromSeed(seedOf(0x01)).PublicKey()
	allowed := crypto.SignerFromSeed(seedOf(0x02)).PublicKey()
	outsider := crypto.SignerFromSeed(seedOf(0x03)).PublicKey()

	unverified := New(
		map[string]Payload{},
		[]crypto.DID{crypto.DIDFromPublicKey(delegate)},
		1,
		PrivateVisibility(crypto.DIDFromPublicKey(allowed)),
	)
	doc, err := unverified.Verify()
	if err != nil {
		t.Fatal(err)
	}
	if !doc.IsVisibleTo(allowed) {
		t.Error("IsVisibleTo(allowed) = false, want true")
	}
	if !doc.IsVisibleTo(delegate) {
		t.Error("IsVisibleTo(delegate) = false, want true")
	}
	if doc.IsVisibleTo(outsider) {
		t.Error("IsVisibleTo(outsider) = true, want false")
	}
}

func seedOf(b byte) [32]byte {
	var seed [32]byte
	for i := range seed {
		seed[i] = b
	}
	return seed
}
