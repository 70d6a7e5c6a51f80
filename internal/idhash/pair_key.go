// Package idhash derives deterministic identifiers from ledger fields.
package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// ComputePairLockKey computes the 64-bit advisory lock key of a pair.
// Formula: first 8 bytes (big endian) of SHA256(supporter|creator).
// Collisions only make unrelated pairs serialize, never interleave.
func ComputePairLockKey(supporter, creator string) int64 {
	data := fmt.Sprintf("%s|%s", supporter, creator)

	hash := sha256.Sum256([]byte(data))
	return int64(binary.BigEndian.Uint64(hash[:8]))
}
