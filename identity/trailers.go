package identity

import (
	"fmt"
	"strings"

	"github.com/nodeforge/heartwood/crypto"
)

// SignatureTrailer is the commit-message trailer key carrying one
// delegate's signature over the identity blob oid (spec.md §6):
// "sig: <pubkey> <signature>".
const SignatureTrailer = "sig"

// ParseSignatures extracts every "sig: <pubkey> <signature>" trailer from a
// commit message. Per the spec's resolved Open Question, any malformed
// trailer is fatal even when enough well-formed ones are already present to
// satisfy the threshold.
func ParseSignatures(message string) (map[crypto.PublicKey]crypto.Signature, error) {
	out := make(map[crypto.PublicKey]crypto.Signature)
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(key) != SignatureTrailer {
			continue
		}
		fields := strings.Fields(value)
		if len(fields) != 2 {
			return nil, &Error{Kind: ErrTrailers, Msg: fmt.Sprintf("malformed trailer line %q", line)}
		}
		pk, err := crypto.PublicKeyFromHex(fields[0])
		if err != nil {
			return nil, &Error{Kind: ErrTrailers, Msg: fmt.Sprintf("malformed public key in trailer: %v", err)}
		}
		sig, err := crypto.SignatureFromHex(fields[1])
		if err != nil {
			return nil, &Error{Kind: ErrTrailers, Msg: fmt.Sprintf("malformed signature in trailer: %v", err)}
		}
		out[pk] = sig
	}
	return out, nil
}

// FormatCommitMessage builds the free-form title + signature-trailer body
// for an identity commit (spec.md §6).
func FormatCommitMessage(title string, signatures map[crypto.PublicKey]crypto.Signature) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(title))
	keys := sortedKeys(signatures)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s %s\n", SignatureTrailer, k.Hex(), signatures[k])
	}
	return b.String()
}

func sortedKeys(sigs map[crypto.PublicKey]crypto.Signature) []crypto.PublicKey {
	keys := make([]crypto.PublicKey, 0, len(sigs))
	for k := range sigs {
		keys = append(keys, k)
	}
	// Deterministic ordering by hex string keeps commit messages stable
	// across runs with the same signer set.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j].Hex() < keys[j-1].Hex(); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
