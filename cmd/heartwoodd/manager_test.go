package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/fetch"
)

func seededPeer(t *testing.T, b byte) crypto.PublicKey {
	t.Helper()
	var seed [32]byte
	for i := range seed {
		seed[i] = b
	}
	return crypto.SignerFromSeed(seed).PublicKey()
}

func TestTickNegotiatesInitialSession(t *testing.T) {
	peer := seededPeer(t, 0x01)
	dialed := 0
	m := NewSessionManager([]crypto.PublicKey{peer}, func(ctx context.Context, p crypto.PublicKey) error {
		dialed++
		return nil
	}, logrus.New())

	m.tick(context.Background(), time.Unix(0, 0))

	if dialed != 1 {
		t.Fatalf("dialed = %d, want 1", dialed)
	}
	s, ok := m.Session(peer)
	if !ok || s.State.Kind != fetch.Negotiated {
		t.Fatalf("session state = %+v, want Negotiated", s.State)
	}
}

func TestTickDisconnectsOnDialFailure(t *testing.T) {
	peer := seededPeer(t, 0x02)
	m := NewSessionManager([]crypto.PublicKey{peer}, func(ctx context.Context, p crypto.PublicKey) error {
		return errors.New("unreachable")
	}, logrus.New())

	m.tick(context.Background(), time.Unix(0, 0))

	s, ok := m.Session(peer)
	if !ok || s.State.Kind != fetch.Disconnected {
		t.Fatalf("session state = %+v, want Disconnected", s.State)
	}
}

func TestTickSkipsSessionNotYetDue(t *testing.T) {
	peer := seededPeer(t, 0x03)
	dialed := 0
	m := NewSessionManager([]crypto.PublicKey{peer}, func(ctx context.Context, p crypto.PublicKey) error {
		dialed++
		return errors.New("unreachable")
	}, logrus.New())

	now := time.Unix(1000, 0)
	m.tick(context.Background(), now)                             // first attempt: Initial -> dial -> Disconnected, Attempts=1
	m.tick(context.Background(), now.Add(500*time.Millisecond)) // backoff is 1s; too soon to retry

	if dialed != 1 {
		t.Fatalf("dialed = %d, want 1 (second tick too soon to retry)", dialed)
	}
}
