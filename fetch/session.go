package fetch

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nodeforge/heartwood/crypto"
)

// StateKind enumerates a session's lifecycle states (spec.md §3 "Session
// State").
type StateKind int

const (
	Initial StateKind = iota
	Negotiated
	Disconnected
)

func (k StateKind) String() string {
	switch k {
	case Initial:
		return "initial"
	case Negotiated:
		return "negotiated"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// PingState tracks an outstanding ping: the response length the remote
// must echo back exactly, per spec.md §6 "Ping carries ponglen (u16)".
type PingState struct {
	SentAt     time.Time
	WantLength uint16
}

// State is a session's current lifecycle state. Exactly one of the
// type-specific fields is meaningful, selected by Kind.
type State struct {
	Kind StateKind

	// Negotiated fields.
	ID    string
	Since time.Time
	Ping  *PingState

	// Disconnected fields.
	DisconnectedSince time.Time
	Reason            string
}

// Session is one remote peer's fetch/replication session: its lifecycle
// state, reconnection bookkeeping, and whether it should auto-reconnect.
type Session struct {
	Peer       crypto.PublicKey
	State      State
	Attempts   int
	Persistent bool
}

// NewSession creates a session in the Initial state.
func NewSession(peer crypto.PublicKey, persistent bool) *Session {
	return &Session{Peer: peer, State: State{Kind: Initial}, Persistent: persistent}
}

// NewSessionID generates a fresh correlation id for a negotiated session,
// used in logging and the State.ID field.
func NewSessionID() string {
	return uuid.New().String()
}

// Negotiate transitions the session to Negotiated, resetting the attempts
// counter on success (spec.md §4.G "Session lifecycle").
func (s *Session) Negotiate(id string, now time.Time) {
	s.State = State{Kind: Negotiated, ID: id, Since: now}
	s.Attempts = 0
}

// Disconnect transitions the session to Disconnected with reason, e.g.
// "Misbehavior" or "Timeout".
func (s *Session) Disconnect(reason string, now time.Time) {
	s.State = State{Kind: Disconnected, DisconnectedSince: now, Reason: reason}
	s.Attempts++
}

// SendPing records an outstanding ping of the given random response
// length, valid only while the session is Negotiated.
func (s *Session) SendPing(wantLength uint16, now time.Time) error {
	if s.State.Kind != Negotiated {
		return &Error{Kind: ErrSessionNotFound, Peer: s.Peer, Msg: "cannot ping a non-negotiated session"}
	}
	s.State.Ping = &PingState{SentAt: now, WantLength: wantLength}
	return nil
}

// ReceivePong checks a pong's payload length against the outstanding
// ping's requirement. A mismatch is Misbehavior and disconnects the
// session (spec.md §6, scenario 5).
func (s *Session) ReceivePong(gotLength uint16, now time.Time) error {
	if s.State.Kind != Negotiated || s.State.Ping == nil {
		return &Error{Kind: ErrSessionNotFound, Peer: s.Peer, Msg: "no outstanding ping"}
	}
	if gotLength != s.State.Ping.WantLength {
		s.Disconnect("Misbehavior", now)
		return &Error{Kind: ErrMisbehavior, Peer: s.Peer, Msg: "pong length mismatch"}
	}
	s.State.Ping = nil
	return nil
}

// Timeout disconnects a session that failed to answer a ping within the
// grace window.
func (s *Session) Timeout(now time.Time) {
	s.Disconnect("Timeout", now)
}

// backoffBase and backoffCap bound the exponential reconnection delay for
// persistent sessions.
const (
	backoffBase = time.Second
	backoffCap  = 5 * time.Minute
)

// Backoff returns how long a persistent, disconnected session should wait
// before its next reconnection attempt, growing exponentially with the
// attempts counter and capped at backoffCap.
func (s *Session) Backoff() time.Duration {
	if s.Attempts <= 0 {
		return 0
	}
	d := time.Duration(float64(backoffBase) * math.Pow(2, float64(s.Attempts-1)))
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// ShouldReconnect reports whether an auto-reconnect attempt is due: the
// session must be Persistent, Disconnected, and its backoff interval must
// have elapsed.
func (s *Session) ShouldReconnect(now time.Time) bool {
	if !s.Persistent || s.State.Kind != Disconnected {
		return false
	}
	return now.Sub(s.State.DisconnectedSince) >= s.Backoff()
}
