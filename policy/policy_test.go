package policy

import (
	"testing"

	"github.com/nodeforge/heartwood/crypto"
)

func seedKey(t *testing.T, b byte) crypto.PublicKey {
	t.Helper()
	var seed [32]byte
	for i := range seed {
		seed[i] = b
	}
	return crypto.SignerFromSeed(seed).PublicKey()
}

func TestAllScopeAllowsAnyDelegate(t *testing.T) {
	p := New(All)
	peer := seedKey(t, 0x01)
	if !p.Allows(peer, true) {
		t.Error("Allows(delegate) = false under All scope, want true")
	}
	if p.Allows(peer, false) {
		t.Error("Allows(non-delegate) = true under All scope, want false")
	}
}

func TestTrustedScopeRequiresExplicitTracking(t *testing.T) {
	tracked := seedKey(t, 0x01)
	untracked := seedKey(t, 0x02)
	p := New(Trusted, tracked)
	if !p.Allows(tracked, true) {
		t.Error("Allows(tracked delegate) = false under Trusted scope, want true")
	}
	if p.Allows(untracked, true) {
		t.Error("Allows(untracked delegate) = true under Trusted scope, want false")
	}
}

func TestBlockListAlwaysWins(t *testing.T) {
	peer := seedKey(t, 0x01)
	p := New(All)
	p.Blocked.Block(peer)
	if p.Allows(peer, true) {
		t.Error("Allows(blocked delegate) = true, want false")
	}
	p.Blocked.Unblock(peer)
	if !p.Allows(peer, true) {
		t.Error("Allows(unblocked delegate) = false, want true")
	}
}
