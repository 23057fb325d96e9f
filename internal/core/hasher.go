package core

import (
	"crypto/sha256"
	"encoding/binary"
)

const genesisHashSeed = "NavLedger:genesis:v1"

// StateHasher chains per-event state hashes:
// hash[N] = SHA-256(prev_hash || sequence || state_digest).
type StateHasher struct {
	prevHash [32]byte
}

func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: sha256.Sum256([]byte(genesisHashSeed))}
}

func (h *StateHasher) ComputeHash(sequence int64, stateDigest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])
	hasher.Write(stateDigest)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	h.prevHash = hash
	return hash
}

// PrevHash returns the current chain tip.
func (h *StateHasher) PrevHash() [32]byte {
	return h.prevHash
}

// SetPrevHash seeds the chain tip during recovery.
func (h *StateHasher) SetPrevHash(hash [32]byte) {
	h.prevHash = hash
}
