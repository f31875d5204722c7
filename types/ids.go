package types

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// All identifiers share a single 64-bit numeric space so that ring
// arithmetic works uniformly across peers, tokens and blocks.
type (
	// PeerID identifies a peer by its position on the ring-ordered
	// address space.
	PeerID uint64

	// BlockID identifies a transaction block or a commit summary block
	// by its content hash, truncated to 64 bits.
	BlockID uint64

	// TokenID identifies a token.
	TokenID uint64

	// Ticket binds a response to the request that solicited it.
	Ticket uint64

	// Time is a network timestamp in ticks.
	Time uint64
)

// GenesisBlockID is the reserved sentinel used as the Previous reference
// of a peer's first commit summary block and as the parent claim of a
// freshly minted token.
const GenesisBlockID BlockID = 0

func (p PeerID) String() string  { return fmt.Sprintf("peer:%016x", uint64(p)) }
func (b BlockID) String() string { return fmt.Sprintf("block:%016x", uint64(b)) }
func (t TokenID) String() string { return fmt.Sprintf("token:%016x", uint64(t)) }

// RingDistance returns the shorter of the two arc lengths between a and b
// on the wrapping 64-bit ring.
func RingDistance(a, b PeerID) uint64 {
	forward := uint64(b) - uint64(a)
	backward := uint64(a) - uint64(b)
	if forward < backward {
		return forward
	}
	return backward
}

// sumTruncated hashes the input and folds it into the 64-bit id space.
func sumTruncated(bz []byte) uint64 {
	h := sha256.Sum256(bz)
	return binary.BigEndian.Uint64(h[:8])
}
