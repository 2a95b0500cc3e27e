package identity

import (
	"crypto/sha1" //nolint:gosec // content-addressing uses git's SHA-1 object format, not a security boundary.
	"fmt"
)

// gitBlobHash computes the git blob object id for data: SHA-1 of
// "blob <len>\x00" followed by data, matching git2::Oid::hash_object.
func gitBlobHash(data []byte) [20]byte {
	header := fmt.Sprintf("blob %d\x00", len(data))
	h := sha1.New() //nolint:gosec
	h.Write([]byte(header))
	h.Write(data)
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}
