package streams

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"github.com/openrounds/roundsx/pkg/utils"
)

// DeriveStreamID derives the content-addressed identity of a reward stream
// from its member project ids. The input is de-duplicated and sorted before
// hashing, so the id is independent of iteration or insertion order and
// doubles as an external primary key. Each id is length-prefixed inside the
// digest; the encoding is injective, so distinct sets cannot collide whatever
// bytes the ids contain. Pure; an empty set yields the digest of zero bytes.
func DeriveStreamID(projectIDs []string) string {
	ids := utils.Dedup(projectIDs)
	sort.Strings(ids)

	h := sha256.New()
	var prefix [8]byte
	for _, id := range ids {
		binary.BigEndian.PutUint64(prefix[:], uint64(len(id)))
		h.Write(prefix[:])
		h.Write([]byte(id))
	}
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
