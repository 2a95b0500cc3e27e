package main

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/fetch"
)

// Dialer attempts to negotiate a session with peer. The concrete network
// handshake (libp2p/QUIC/TCP transport, wire framing) is out of the core's
// scope (spec.md Non-goals); main.go wires in whatever dialer fits the
// deployment.
type Dialer func(ctx context.Context, peer crypto.PublicKey) error

// SessionManager drives the reconnect loop for a fixed set of persistent
// peers, applying fetch.Session's backoff/misbehavior state machine
// (spec.md §4.G "Session lifecycle").
type SessionManager struct {
	dial   Dialer
	log    logrus.FieldLogger
	mu     sync.Mutex
	byPeer map[crypto.PublicKey]*fetch.Session
}

// NewSessionManager creates a manager tracking one persistent session per
// peer in peers.
func NewSessionManager(peers []crypto.PublicKey, dial Dialer, log logrus.FieldLogger) *SessionManager {
	m := &SessionManager{dial: dial, log: log, byPeer: make(map[crypto.PublicKey]*fetch.Session, len(peers))}
	for _, p := range peers {
		m.byPeer[p] = fetch.NewSession(p, true)
	}
	return m
}

// Run ticks every interval until ctx is cancelled, attempting to (re)connect
// any session that is due per its backoff.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.tick(ctx, now)
		}
	}
}

func (m *SessionManager) tick(ctx context.Context, now time.Time) {
	m.mu.Lock()
	due := make([]*fetch.Session, 0, len(m.byPeer))
	for _, s := range m.byPeer {
		if s.State.Kind == fetch.Initial || s.ShouldReconnect(now) {
			due = append(due, s)
		}
	}
	m.mu.Unlock()

	for _, s := range due {
		log := m.log.WithField("peer", s.Peer.Hex())
		id := fetch.NewSessionID()
		if err := m.dial(ctx, s.Peer); err != nil {
			log.WithError(err).Debug("dial failed")
			s.Disconnect("Timeout", now)
			continue
		}
		s.Negotiate(id, now)
		log.WithField("session", id).Info("negotiated")
	}
}

// Session returns the current session for peer, if tracked.
func (m *SessionManager) Session(peer crypto.PublicKey) (*fetch.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byPeer[peer]
	return s, ok
}
