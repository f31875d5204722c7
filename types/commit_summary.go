package types

import (
	"encoding/binary"
	"errors"
)

// CommitSummaryBlock is one node of a peer's personal append-only commit
// chain. A peer creates one each time it durably commits a batch of
// transaction blocks; the block is never mutated afterwards.
//
// The ID is the content hash of (Previous, Time, Committed), so a summary
// block cannot be reinterpreted without changing its identity.
type CommitSummaryBlock struct {
	ID        BlockID   `json:"id"`
	Previous  BlockID   `json:"previous"`
	Time      Time      `json:"time"`
	Committed []BlockID `json:"committed"`
}

// NewCommitSummaryBlock builds a summary block and derives its ID from the
// contents. Previous is GenesisBlockID for a peer's first commit.
func NewCommitSummaryBlock(previous BlockID, time Time, committed []BlockID) CommitSummaryBlock {
	csb := CommitSummaryBlock{
		Previous:  previous,
		Time:      time,
		Committed: committed,
	}
	csb.ID = csb.Hash()
	return csb
}

// Hash recomputes the content hash over (Previous, Time, Committed).
// Receivers can compare it against ID to detect tampering.
func (csb *CommitSummaryBlock) Hash() BlockID {
	bz := make([]byte, 16+8*len(csb.Committed))
	binary.BigEndian.PutUint64(bz[0:8], uint64(csb.Previous))
	binary.BigEndian.PutUint64(bz[8:16], uint64(csb.Time))
	for i, id := range csb.Committed {
		binary.BigEndian.PutUint64(bz[16+8*i:], uint64(id))
	}
	return BlockID(sumTruncated(bz))
}

// ValidateBasic checks internal consistency of a received summary block.
func (csb *CommitSummaryBlock) ValidateBasic() error {
	if csb.ID == GenesisBlockID {
		return errors.New("summary block id is the genesis sentinel")
	}
	if csb.ID != csb.Hash() {
		return errors.New("summary block id does not match contents")
	}
	if len(csb.Committed) == 0 {
		return errors.New("summary block commits no transaction blocks")
	}
	return nil
}
