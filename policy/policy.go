// Package policy implements the tracking scope and blocklist that govern
// which peers a fetch is allowed to replicate (spec.md §3 "Policy").
package policy

import "github.com/nodeforge/heartwood/crypto"

// Scope is a repository's tracking scope.
type Scope int

const (
	// All replicates every delegate named in the identity document, plus
	// any explicitly seeded peer.
	All Scope = iota
	// Trusted replicates only peers explicitly tracked by the local node.
	Trusted
)

func (s Scope) String() string {
	switch s {
	case All:
		return "all"
	case Trusted:
		return "trusted"
	default:
		return "unknown"
	}
}

// BlockList is a per-node set of peers that are never replicated,
// regardless of scope.
type BlockList struct {
	blocked map[crypto.PublicKey]struct{}
}

// NewBlockList builds a BlockList containing the given peers.
func NewBlockList(peers ...crypto.PublicKey) *BlockList {
	b := &BlockList{blocked: make(map[crypto.PublicKey]struct{}, len(peers))}
	for _, p := range peers {
		b.blocked[p] = struct{}{}
	}
	return b
}

// Block adds peer to the list.
func (b *BlockList) Block(peer crypto.PublicKey) {
	if b.blocked == nil {
		b.blocked = make(map[crypto.PublicKey]struct{})
	}
	b.blocked[peer] = struct{}{}
}

// Unblock removes peer from the list.
func (b *BlockList) Unblock(peer crypto.PublicKey) {
	delete(b.blocked, peer)
}

// Blocked reports whether peer is on the list.
func (b *BlockList) Blocked(peer crypto.PublicKey) bool {
	if b == nil {
		return false
	}
	_, ok := b.blocked[peer]
	return ok
}

// Policy governs which peers a repository replicates: a tracking scope, an
// explicit tracked set (consulted only under Trusted scope), and a
// blocklist that always wins.
type Policy struct {
	Scope   Scope
	tracked map[crypto.PublicKey]struct{}
	Blocked *BlockList
}

// New builds a policy with the given scope and explicitly tracked peers
// (used when Scope is Trusted).
func New(scope Scope, tracked ...crypto.PublicKey) *Policy {
	set := make(map[crypto.PublicKey]struct{}, len(tracked))
	for _, p := range tracked {
		set[p] = struct{}{}
	}
	return &Policy{Scope: scope, tracked: set, Blocked: NewBlockList()}
}

// Track adds peer to the explicit tracked set.
func (p *Policy) Track(peer crypto.PublicKey) {
	if p.tracked == nil {
		p.tracked = make(map[crypto.PublicKey]struct{})
	}
	p.tracked[peer] = struct{}{}
}

// Allows reports whether peer should be replicated under this policy: never
// if blocked; under All scope, every delegate is allowed; under Trusted
// scope, only peers in the explicit tracked set.
func (p *Policy) Allows(peer crypto.PublicKey, isDelegate bool) bool {
	if p.Blocked.Blocked(peer) {
		return false
	}
	switch p.Scope {
	case All:
		return isDelegate
	case Trusted:
		_, ok := p.tracked[peer]
		return ok && isDelegate
	default:
		return false
	}
}
