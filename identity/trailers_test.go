package identity

import (
	"strings"
	"testing"

	"github.com/nodeforge/heartwood/crypto"
)

func TestFormatParseSignaturesRoundTrip(t *testing.T) {
	s1 := crypto.SignerFromSeed(seedOf(0x01))
	s2 := crypto.SignerFromSeed(seedOf(0x02))
	sigs := map[crypto.PublicKey]crypto.Signature{
		s1.PublicKey(): s1.Sign([]byte("blob")),
		s2.PublicKey(): s2.Sign([]byte("blob")),
	}
	msg := FormatCommitMessage("Initialize Radicle", sigs)
	if !strings.HasPrefix(msg, "Initialize Radicle\n\n") {
		t.Fatalf("message does not start with title + blank line: %q", msg)
	}
	parsed, err := ParseSignatures(msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 2 {
		t.Fatalf("ParseSignatures() = %d entries, want 2", len(parsed))
	}
	for pk, sig := range sigs {
		got, ok := parsed[pk]
		if !ok || got != sig {
			t.Fatalf("parsed[%s] = %v, %v, want %v, true", pk, got, ok, sig)
		}
	}
}

// Per the spec's resolved Open Question, any malformed trailer is fatal even
// when enough well-formed ones already satisfy a threshold.
func TestParseSignaturesMalformedTrailerIsFatal(t *testing.T) {
	s1 := crypto.SignerFromSeed(seedOf(0x01))
	good := "sig: " + s1.PublicKey().Hex() + " " + s1.Sign([]byte("blob")).String()
	msg := "Initialize Radicle\n\n" + good + "\nsig: not-a-trailer\n"
	if _, err := ParseSignatures(msg); err == nil {
		t.Fatal("expected error for malformed trailer, got nil")
	}
}

func TestParseSignaturesIgnoresNonTrailerLines(t *testing.T) {
	msg := "Initialize Radicle\n\nSome unrelated body text.\n"
	sigs, err := ParseSignatures(msg)
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 0 {
		t.Fatalf("ParseSignatures() = %v, want empty", sigs)
	}
}
