package crypto

import "testing"

func TestSignerFromSeedDIDEncoding(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = 0xff
	}
	signer := SignerFromSeed(seed)

	got := signer.PublicKey().ToHuman()
	want := "z6MknSLrJoTcukLrE435hVNQT4JUhbvWLX4kUzqkEStBU8Vi"
	if got != want {
		t.Fatalf("ToHuman() = %q, want %q", got, want)
	}
}

func TestDIDRoundTrip(t *testing.T) {
	signer, err := GenerateSigner()
	if err != nil {
		t.Fatal(err)
	}
	did := DIDFromPublicKey(signer.PublicKey())
	got, err := did.PublicKey()
	if err != nil {
		t.Fatal(err)
	}
	if got != signer.PublicKey() {
		t.Fatalf("round trip mismatch: got %x, want %x", got, signer.PublicKey())
	}
}

func TestSignVerify(t *testing.T) {
	signer, err := GenerateSigner()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("hello heartwood")
	sig := signer.Sign(msg)
	if err := signer.PublicKey().Verify(msg, sig); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := signer.PublicKey().Verify([]byte("tampered"), sig); err == nil {
		t.Fatal("expected verification failure for tampered message")
	}
}

func TestSSHFingerprint(t *testing.T) {
	signer, err := GenerateSigner()
	if err != nil {
		t.Fatal(err)
	}
	fp, err := signer.PublicKey().SSHFingerprint()
	if err != nil {
		t.Fatal(err)
	}
	if len(fp) == 0 {
		t.Fatal("expected non-empty fingerprint")
	}
}
