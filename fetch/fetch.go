package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nodeforge/heartwood/crypto"
	"github.com/nodeforge/heartwood/identity"
	"github.com/nodeforge/heartwood/policy"
	"github.com/nodeforge/heartwood/sigrefs"
	"github.com/nodeforge/heartwood/storage"
)

// RefsAt is a caller-supplied hint telling the protocol which refs a peer
// is expected to have, so Stage 3 knows what to ask the transport for.
type RefsAt struct {
	Peer crypto.PublicKey
	Refs []string
}

// PeerOutcome is one peer's result within a FetchResult: either the ref
// tips that were accepted and swapped in, or a rejection reason.
type PeerOutcome struct {
	Accepted map[string]storage.Oid
	Rejected bool
	Reason   string
}

// FetchResult enumerates the per-peer outcomes of one fetch (spec.md
// §4.G "Result").
type FetchResult struct {
	Peers map[crypto.PublicKey]PeerOutcome
}

func newFetchResult() *FetchResult {
	return &FetchResult{Peers: make(map[crypto.PublicKey]PeerOutcome)}
}

func (r *FetchResult) accept(peer crypto.PublicKey, refs map[string]storage.Oid) {
	r.Peers[peer] = PeerOutcome{Accepted: refs}
}

func (r *FetchResult) reject(peer crypto.PublicKey, reason string) {
	r.Peers[peer] = PeerOutcome{Rejected: true, Reason: reason}
}

// Handle is the fetch protocol's entry point: a repository, the policy
// governing which peers it replicates, the local peer's own key (for the
// self-fetch guard, I8), a transport to run the exchange against, and a
// byte budget enforced across the whole fetch.
type Handle[T Transport] struct {
	Repo       storage.WriteRepository
	Policy     *policy.Policy
	Local      crypto.PublicKey
	Transport  T
	FetchLimit uint64

	// Log receives stage-level progress; nil disables logging.
	Log logrus.FieldLogger
}

func (h *Handle[T]) logger() logrus.FieldLogger {
	if h.Log == nil {
		return logrus.StandardLogger()
	}
	return h.Log
}

// verifiedPeer holds a peer's fully signature-verified special refs,
// produced by Stage 1/2 and consumed by Stage 3 onward.
type verifiedPeer struct {
	peer    crypto.PublicKey
	doc     identity.DocAt
	sigrefs sigrefs.Sigrefs
}

// Clone replicates remote into an empty repository.
func (h *Handle[T]) Clone(ctx context.Context, remote crypto.PublicKey, hints []RefsAt) (*FetchResult, error) {
	if _, err := identity.CanonicalHead(h.Repo); err == nil {
		return nil, fmt.Errorf("fetch: clone requires an empty repository")
	}
	return h.run(ctx, remote, hints)
}

// Pull replicates remote into an existing repository.
func (h *Handle[T]) Pull(ctx context.Context, remote crypto.PublicKey, hints []RefsAt) (*FetchResult, error) {
	if _, err := identity.CanonicalHead(h.Repo); err != nil {
		return nil, fmt.Errorf("fetch: pull requires an initialized repository: %w", err)
	}
	return h.run(ctx, remote, hints)
}

func (h *Handle[T]) run(ctx context.Context, remote crypto.PublicKey, hints []RefsAt) (*FetchResult, error) {
	// Stage: Guard (I8).
	if remote == h.Local {
		return nil, &Error{Kind: ErrReplicateSelf, Peer: remote}
	}

	// Stage: Handshake.
	version, err := h.Transport.Handshake(ctx, remote)
	if err != nil {
		return nil, &Error{Kind: ErrHandshake, Peer: remote, Msg: err.Error(), Err: err}
	}
	if version != ProtocolVersion {
		return nil, &Error{Kind: ErrWrongVersion, Peer: remote, Msg: fmt.Sprintf("got %d, want %d", version, ProtocolVersion)}
	}

	log := h.logger().WithField("remote", remote.Hex())
	result := newFetchResult()
	var budget uint64

	// Stage 1: special refs for the remote itself.
	log.Debug("fetch: stage 1 handshake refs")
	root, used, err := h.fetchSpecialRefs(ctx, remote)
	budget += used
	if err != nil {
		return nil, err // Stage 1 failure for the primary remote aborts the whole fetch.
	}

	// Stage 2: follow graph — replicate the remote's delegates per policy,
	// concurrently (spec.md §5 "within a stage, fetches may be concurrent").
	var mu sync.Mutex
	peers := []*verifiedPeer{root}
	group, gctx := errgroup.WithContext(ctx)
	for _, did := range root.doc.Doc.Delegates {
		did := did
		delegateKey, err := did.PublicKey()
		if err != nil {
			continue // malformed delegate id in an already-verified doc: skip, don't abort
		}
		if delegateKey == remote || delegateKey == h.Local {
			continue
		}
		if !h.Policy.Allows(delegateKey, true) {
			mu.Lock()
			result.reject(delegateKey, "blocked by policy")
			mu.Unlock()
			continue
		}
		group.Go(func() error {
			vp, used, ferr := h.fetchSpecialRefs(gctx, delegateKey)
			mu.Lock()
			defer mu.Unlock()
			if ferr != nil {
				result.reject(delegateKey, ferr.Error())
				return nil // per-peer failures never abort the fetch; discarded bytes don't count.
			}
			budget += used
			peers = append(peers, vp)
			return nil
		})
	}
	_ = group.Wait() // errors are recorded per-peer above, never returned.

	// Stage 3: ref data, budget-limited.
	hintsByPeer := make(map[crypto.PublicKey][]string, len(hints))
	for _, hint := range hints {
		hintsByPeer[hint.Peer] = hint.Refs
	}
	type fetched struct {
		vp   *verifiedPeer
		oids map[string]storage.Oid
	}
	var settled []fetched
	for _, vp := range peers {
		refNames := hintsByPeer[vp.peer]
		if len(refNames) == 0 {
			for name := range vp.sigrefs.Refs {
				refNames = append(refNames, name)
			}
		}
		if len(refNames) == 0 {
			settled = append(settled, fetched{vp: vp, oids: map[string]storage.Oid{}})
			continue
		}
		oids, n, err := h.Transport.FetchRefs(ctx, vp.peer, refNames)
		if err != nil {
			result.reject(vp.peer, err.Error())
			continue
		}
		if budget+n > h.FetchLimit {
			result.reject(vp.peer, "limit") // discarded bytes never join budget; other peers still get a fair shot.
			continue
		}
		budget += n
		settled = append(settled, fetched{vp: vp, oids: oids})
	}

	// Verification: every oid sigrefs announced must now resolve locally.
	var toSwap []fetched
	for _, f := range settled {
		ok := true
		for name, oid := range f.vp.sigrefs.Refs {
			if !h.Repo.HasObject(oid) {
				if got, fetchedHere := f.oids[name]; !fetchedHere || got != oid {
					ok = false
					break
				}
			}
		}
		if !ok {
			result.reject(f.vp.peer, "sigrefs unresolved after fetch")
			continue
		}
		toSwap = append(toSwap, f)
	}

	// Swap-in: atomically update accepted peers' refs; rejected peers are
	// left untouched (partial success).
	for _, f := range toSwap {
		accepted := make(map[string]storage.Oid, len(f.vp.sigrefs.Refs))
		for name, oid := range f.vp.sigrefs.Refs {
			if err := h.Repo.SetReference(plumbing.ReferenceName(name), oid); err != nil {
				result.reject(f.vp.peer, fmt.Sprintf("swap-in failed: %v", err))
				accepted = nil
				break
			}
			accepted[name] = oid
		}
		if accepted != nil {
			result.accept(f.vp.peer, accepted)
		}
	}

	return result, nil
}

// fetchSpecialRefs runs Stage 1 for a single peer: fetch its identity and
// sigrefs refs, verify the identity chain and the sigrefs signature.
func (h *Handle[T]) fetchSpecialRefs(ctx context.Context, peer crypto.PublicKey) (*verifiedPeer, uint64, error) {
	identityRefName := string(storage.IdentityRef(peer))
	sigrefsRefName := string(storage.SigrefsRef(peer))

	oids, n, err := h.Transport.FetchRefs(ctx, peer, []string{identityRefName, sigrefsRefName})
	if err != nil {
		return nil, 0, &Error{Kind: ErrMissingIdentity, Peer: peer, Msg: err.Error(), Err: err}
	}
	if n > h.FetchLimit {
		return nil, n, &Error{Kind: ErrLimit, Peer: peer}
	}

	identityOid, ok := oids[identityRefName]
	if !ok {
		return nil, n, &Error{Kind: ErrMissingIdentity, Peer: peer}
	}
	docAt, err := identity.VerifyChain(identityOid, h.Repo)
	if err != nil {
		return nil, n, &Error{Kind: ErrVerification, Peer: peer, Msg: err.Error(), Err: err}
	}

	var sr sigrefs.Sigrefs
	if sigrefsOid, ok := oids[sigrefsRefName]; ok {
		sr, err = sigrefs.LoadAt(sigrefsOid, h.Repo)
		if err != nil {
			return nil, n, &Error{Kind: ErrVerification, Peer: peer, Msg: err.Error(), Err: err}
		}
		if err := sigrefs.VerifySignature(sr, peer); err != nil {
			return nil, n, &Error{Kind: ErrVerification, Peer: peer, Msg: err.Error(), Err: err}
		}
	}

	return &verifiedPeer{peer: peer, doc: *docAt, sigrefs: sr}, n, nil
}
