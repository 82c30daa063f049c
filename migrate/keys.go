package migrate

import (
	"encoding/binary"

	"github.com/IzzySoft/StoneStepsWebalizer/storage"
)

// idKey packs a bare node id the same way engine's own idKey does — the two
// packages deliberately don't share the helper (engine's is unexported),
// but the encoding is a fixed wire contract, not an implementation detail
// either package is free to change alone.
func idKey(id uint64) storage.Key {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return storage.Key(b[:])
}

// decodeID is idKey's inverse, used to read the node id an enumeration-only
// index entry's key encodes (dhosts, visits.active, ...).
func decodeID(k storage.Key) uint64 {
	if len(k) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}
