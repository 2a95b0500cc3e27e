package storage

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/nodeforge/heartwood/crypto"
)

// Ref path layout (spec.md §6):
//
//	refs/namespaces/<peer>/refs/rad/id          identity branch for <peer>
//	refs/namespaces/<peer>/refs/rad/sigrefs     signed refs blob for <peer>
//	refs/namespaces/<peer>/refs/cobs/<type>/<object_id>   COB tip
//	refs/namespaces/<peer>/refs/heads/<branch>  data branches
const (
	identityRefSuffix = "refs/rad/id"
	sigrefsRefSuffix  = "refs/rad/sigrefs"
	cobsRefPrefix     = "refs/cobs"
	headsRefPrefix    = "refs/heads"
)

// CanonicalIdentity is the repository-wide ref naming the authoritative
// identity commit (spec.md §4.D "Canonical head").
const CanonicalIdentity = "refs/rad/id"

func namespace(peer crypto.PublicKey) string {
	return fmt.Sprintf("refs/namespaces/%s", peer.Hex())
}

// IdentityRef returns the identity branch ref for peer.
func IdentityRef(peer crypto.PublicKey) plumbing.ReferenceName {
	return plumbing.ReferenceName(fmt.Sprintf("%s/%s", namespace(peer), identityRefSuffix))
}

// SigrefsRef returns the sigrefs ref for peer.
func SigrefsRef(peer crypto.PublicKey) plumbing.ReferenceName {
	return plumbing.ReferenceName(fmt.Sprintf("%s/%s", namespace(peer), sigrefsRefSuffix))
}

// CobRef returns the tip ref for a collaborative object of the given
// typename, owned by peer.
func CobRef(peer crypto.PublicKey, typename string, objectID Oid) plumbing.ReferenceName {
	return plumbing.ReferenceName(fmt.Sprintf("%s/%s/%s/%s", namespace(peer), cobsRefPrefix, typename, objectID))
}

// HeadRef returns the ref for a data branch owned by peer.
func HeadRef(peer crypto.PublicKey, branch string) plumbing.ReferenceName {
	return plumbing.ReferenceName(fmt.Sprintf("%s/%s/%s", namespace(peer), headsRefPrefix, branch))
}

// CanonicalIdentityRef is the repository-wide authoritative identity ref.
func CanonicalIdentityRef() plumbing.ReferenceName {
	return plumbing.ReferenceName(CanonicalIdentity)
}
