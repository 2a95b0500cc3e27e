package fetch

import (
	"testing"
	"time"

	"github.com/nodeforge/heartwood/crypto"
)

func seededPeer(t *testing.T, b byte) crypto.PublicKey {
	t.Helper()
	var seed [32]byte
	for i := range seed {
		seed[i] = b
	}
	return crypto.SignerFromSeed(seed).PublicKey()
}

// Concrete scenario 5: a pong of the wrong length is Misbehavior and
// disconnects the session.
func TestReceivePongWrongLengthIsMisbehavior(t *testing.T) {
	s := NewSession(seededPeer(t, 0x01), true)
	now := time.Unix(0, 0)
	s.Negotiate("session-1", now)
	if err := s.SendPing(42, now); err != nil {
		t.Fatal(err)
	}
	err := s.ReceivePong(7, now.Add(time.Second))
	if err == nil {
		t.Fatal("expected misbehavior error, got nil")
	}
	if s.State.Kind != Disconnected || s.State.Reason != "Misbehavior" {
		t.Fatalf("State = %+v, want Disconnected/Misbehavior", s.State)
	}
}

func TestReceivePongCorrectLengthStaysNegotiated(t *testing.T) {
	s := NewSession(seededPeer(t, 0x01), true)
	now := time.Unix(0, 0)
	s.Negotiate("session-1", now)
	if err := s.SendPing(42, now); err != nil {
		t.Fatal(err)
	}
	if err := s.ReceivePong(42, now.Add(time.Second)); err != nil {
		t.Fatalf("ReceivePong() = %v, want nil", err)
	}
	if s.State.Kind != Negotiated {
		t.Fatalf("State.Kind = %v, want Negotiated", s.State.Kind)
	}
}

func TestNegotiateResetsAttempts(t *testing.T) {
	s := NewSession(seededPeer(t, 0x01), true)
	now := time.Unix(0, 0)
	s.Disconnect("Timeout", now)
	s.Disconnect("Timeout", now)
	if s.Attempts != 2 {
		t.Fatalf("Attempts = %d, want 2", s.Attempts)
	}
	s.Negotiate("session-2", now)
	if s.Attempts != 0 {
		t.Fatalf("Attempts = %d, want 0 after negotiate", s.Attempts)
	}
}

func TestBackoffGrowsExponentiallyAndCaps(t *testing.T) {
	s := NewSession(seededPeer(t, 0x01), true)
	if s.Backoff() != 0 {
		t.Fatalf("Backoff() with 0 attempts = %v, want 0", s.Backoff())
	}
	s.Attempts = 1
	first := s.Backoff()
	s.Attempts = 2
	second := s.Backoff()
	if second <= first {
		t.Fatalf("Backoff() did not grow: %v then %v", first, second)
	}
	s.Attempts = 100
	if s.Backoff() != backoffCap {
		t.Fatalf("Backoff() at high attempts = %v, want cap %v", s.Backoff(), backoffCap)
	}
}

func TestShouldReconnectRequiresPersistentAndElapsedBackoff(t *testing.T) {
	s := NewSession(seededPeer(t, 0x01), true)
	now := time.Unix(1000, 0)
	s.Disconnect("Timeout", now)
	if s.ShouldReconnect(now) {
		t.Fatal("ShouldReconnect() = true immediately after disconnect, want false")
	}
	if !s.ShouldReconnect(now.Add(s.Backoff() + time.Second)) {
		t.Fatal("ShouldReconnect() = false after backoff elapsed, want true")
	}

	nonPersistent := NewSession(seededPeer(t, 0x02), false)
	nonPersistent.Disconnect("Timeout", now)
	if nonPersistent.ShouldReconnect(now.Add(time.Hour)) {
		t.Fatal("ShouldReconnect() = true for non-persistent session, want false")
	}
}
