package types

import (
	"errors"
	"fmt"
)

// MaxTokenSlots bounds how many token assertions a single transaction
// block may carry.
const MaxTokenSlots = 6

// TokenSlot is one token assertion inside a transaction block: the block
// claims ownership of Token, naming Last as the block that held it before.
// Last is GenesisBlockID for a freshly minted token.
type TokenSlot struct {
	Token TokenID `json:"token"`
	Last  BlockID `json:"last"`
	Key   uint64  `json:"key"`
}

// Block is a transaction block. Blocks are immutable once created and are
// identified by content hash, so equality of IDs implies equality of
// contents for honest peers.
type Block struct {
	ID    BlockID     `json:"id"`
	Time  Time        `json:"time"`
	Slots []TokenSlot `json:"slots"`
}

// ValidateBasic performs stateless checks on a block received from the
// network. Stateful validation against the token store is the shadow
// store's concern.
func (b *Block) ValidateBasic() error {
	if b.ID == GenesisBlockID {
		return errors.New("block id is the genesis sentinel")
	}
	if len(b.Slots) == 0 {
		return errors.New("block carries no token slots")
	}
	if len(b.Slots) > MaxTokenSlots {
		return fmt.Errorf("block carries %d token slots, max %d", len(b.Slots), MaxTokenSlots)
	}
	seen := make(map[TokenID]struct{}, len(b.Slots))
	for _, slot := range b.Slots {
		if _, ok := seen[slot.Token]; ok {
			return fmt.Errorf("duplicate token %v in block", slot.Token)
		}
		seen[slot.Token] = struct{}{}
	}
	return nil
}
