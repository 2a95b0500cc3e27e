// Package crypto provides the Ed25519 signing primitives, DID-key encoding,
// and SSH fingerprint formatting that the identity, sigrefs, and fetch
// packages build on.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multicodec"
	"golang.org/x/crypto/ssh"
)

// ErrInvalidSignature is returned when a signature fails to verify.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// PublicKeyLen is the byte length of an Ed25519 public key.
const PublicKeyLen = ed25519.PublicKeySize

// PublicKey is a node's Ed25519 public key. One key identifies one peer.
type PublicKey [PublicKeyLen]byte

// PrivateKey is an Ed25519 private key, used only for local signing.
type PrivateKey []byte

// Signature is a detached Ed25519 signature over message bytes.
type Signature [ed25519.SignatureSize]byte

// ParsePublicKey reads a raw 32-byte Ed25519 public key.
func ParsePublicKey(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeyLen {
		return pk, fmt.Errorf("crypto: public key must be %d bytes, got %d", PublicKeyLen, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// Bytes returns the raw key bytes.
func (pk PublicKey) Bytes() []byte { return pk[:] }

func (pk PublicKey) String() string { return pk.ToHuman() }

// Verify checks a detached signature against msg.
func (pk PublicKey) Verify(msg []byte, sig Signature) error {
	if !ed25519.Verify(ed25519.PublicKey(pk[:]), msg, sig[:]) {
		return ErrInvalidSignature
	}
	return nil
}

// multicodecEd25519PubPrefix is the multicodec varint prefix for an Ed25519
// public key, as used by the did:key method (0xed, varint-encoded).
var multicodecEd25519PubPrefix = []byte{0xed, 0x01}

// ToHuman encodes the public key as the multibase base58btc encoding of
// (multicodec Ed25519 prefix || key bytes) — the payload half of a did:key
// identifier, without the "did:key:" scheme prefix.
func (pk PublicKey) ToHuman() string {
	buf := make([]byte, 0, len(multicodecEd25519PubPrefix)+PublicKeyLen)
	buf = append(buf, multicodecEd25519PubPrefix...)
	buf = append(buf, pk[:]...)
	enc, err := multibase.Encode(multibase.Base58BTC, buf)
	if err != nil {
		// multibase.Encode only fails for unknown encodings; Base58BTC is
		// always valid, so this can't happen.
		panic(err)
	}
	return enc
}

// SSHFingerprint returns the SHA256 SSH fingerprint of the public key, in
// the same form as `ssh-keygen -lf`.
func (pk PublicKey) SSHFingerprint() (string, error) {
	sshPub, err := ssh.NewPublicKey(ed25519PublicKeyForSSH(pk))
	if err != nil {
		return "", fmt.Errorf("crypto: ssh public key: %w", err)
	}
	return ssh.FingerprintSHA256(sshPub), nil
}

func ed25519PublicKeyForSSH(pk PublicKey) ed25519.PublicKey {
	cp := make(ed25519.PublicKey, PublicKeyLen)
	copy(cp, pk[:])
	return cp
}

// DID is the did:key form of a public key, used as the identifier stored in
// identity documents (delegates, visibility allow-lists).
type DID string

// DIDFromPublicKey converts a public key to its did:key form.
func DIDFromPublicKey(pk PublicKey) DID { return DID("did:key:" + pk.ToHuman()) }

// PublicKey decodes a did:key DID back into a public key.
func (d DID) PublicKey() (PublicKey, error) {
	const prefix = "did:key:"
	s := string(d)
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return PublicKey{}, fmt.Errorf("crypto: %q is not a did:key identifier", s)
	}
	_, data, err := multibase.Decode(s[len(prefix):])
	if err != nil {
		return PublicKey{}, fmt.Errorf("crypto: decode multibase: %w", err)
	}
	if len(data) != len(multicodecEd25519PubPrefix)+PublicKeyLen {
		return PublicKey{}, fmt.Errorf("crypto: unexpected did:key payload length %d", len(data))
	}
	if data[0] != multicodecEd25519PubPrefix[0] || data[1] != multicodecEd25519PubPrefix[1] {
		return PublicKey{}, fmt.Errorf("crypto: did:key multicodec is not %s (0x%x)", multicodec.Ed25519Pub, multicodecEd25519PubPrefix)
	}
	return ParsePublicKey(data[len(multicodecEd25519PubPrefix):])
}

func (d DID) String() string { return string(d) }

// Signer signs messages with a local private key. The private key is never
// transmitted; only the resulting signature leaves the process.
type Signer interface {
	PublicKey() PublicKey
	Sign(msg []byte) Signature
}

// ed25519Signer is the default in-process Signer backed by a raw keypair.
type ed25519Signer struct {
	pub  PublicKey
	priv ed25519.PrivateKey
}

// GenerateSigner creates a new random Ed25519 signer.
func GenerateSigner() (Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	pk, err := ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &ed25519Signer{pub: pk, priv: priv}, nil
}

// NewSigner builds a Signer from an existing 64-byte Ed25519 seed-expanded
// private key.
func NewSigner(priv ed25519.PrivateKey) (Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("crypto: private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("crypto: could not derive public key")
	}
	pk, err := ParsePublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &ed25519Signer{pub: pk, priv: priv}, nil
}

// SignerFromSeed derives a deterministic signer from a 32-byte seed. Used
// by tests that need reproducible keys (e.g. the canonical example in
// spec.md §8).
func SignerFromSeed(seed [32]byte) Signer {
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	pk, err := ParsePublicKey(pub)
	if err != nil {
		panic(err) // ed25519 always derives a PublicKeyLen-sized key
	}
	return &ed25519Signer{pub: pk, priv: priv}
}

func (s *ed25519Signer) PublicKey() PublicKey { return s.pub }

func (s *ed25519Signer) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(s.priv, msg))
	return sig
}

// SignatureFromHex parses a hex-encoded signature, as found in commit
// trailers.
func SignatureFromHex(s string) (Signature, error) {
	var sig Signature
	b, err := hex.DecodeString(s)
	if err != nil {
		return sig, fmt.Errorf("crypto: decode signature hex: %w", err)
	}
	if len(b) != len(sig) {
		return sig, fmt.Errorf("crypto: signature must be %d bytes, got %d", len(sig), len(b))
	}
	copy(sig[:], b)
	return sig, nil
}

func (sig Signature) String() string { return hex.EncodeToString(sig[:]) }

// PublicKeyFromHex parses a hex-encoded public key, as found in commit
// trailers alongside a signature.
func PublicKeyFromHex(s string) (PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("crypto: decode public key hex: %w", err)
	}
	return ParsePublicKey(b)
}

func (pk PublicKey) Hex() string { return hex.EncodeToString(pk[:]) }
