package fetch

import (
	"context"

	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/storage"
)

// ProtocolVersion identifies a wire-compatible revision of the fetch
// protocol. Peers that disagree on this fail the handshake stage.
const ProtocolVersion = 1

// Transport is the network client the fetch protocol is run against. The
// git ref-transfer wire format itself is out of scope (spec.md §1); a real
// implementation wraps a git client library that negotiates pack transfer
// and leaves the resulting objects already present in local storage,
// returning only the ref advertisement and byte count the core needs to
// make acceptance decisions (spec.md "Concurrency core" design note: the
// network client is an injected interface so the protocol is testable
// against an in-memory transport).
type Transport interface {
	// Handshake exchanges protocol versions with remote.
	Handshake(ctx context.Context, remote crypto.PublicKey) (version int, err error)

	// FetchRefs fetches the named refs (or every ref remote advertises, if
	// refs is empty) from remote. On success the corresponding git objects
	// are already present in local storage; the returned map gives the
	// oid each ref currently resolves to on remote, and n is the number of
	// bytes transferred.
	FetchRefs(ctx context.Context, remote crypto.PublicKey, refs []string) (oids map[string]storage.Oid, n uint64, err error)
}
