package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockValidateBasic(t *testing.T) {
	valid := Block{
		ID:   100,
		Time: 1234,
		Slots: []TokenSlot{
			{Token: 7, Last: GenesisBlockID},
			{Token: 8, Last: 90},
		},
	}
	require.NoError(t, valid.ValidateBasic())

	testCases := []struct {
		name     string
		mutate   func(*Block)
		expValid bool
	}{
		{"valid", func(b *Block) {}, true},
		{"genesis id", func(b *Block) { b.ID = GenesisBlockID }, false},
		{"no slots", func(b *Block) { b.Slots = nil }, false},
		{"too many slots", func(b *Block) {
			b.Slots = make([]TokenSlot, MaxTokenSlots+1)
			for i := range b.Slots {
				b.Slots[i] = TokenSlot{Token: TokenID(i)}
			}
		}, false},
		{"max slots", func(b *Block) {
			b.Slots = make([]TokenSlot, MaxTokenSlots)
			for i := range b.Slots {
				b.Slots[i] = TokenSlot{Token: TokenID(i)}
			}
		}, true},
		{"duplicate token", func(b *Block) {
			b.Slots = []TokenSlot{{Token: 7}, {Token: 7, Last: 90}}
		}, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			block := valid
			block.Slots = append([]TokenSlot(nil), valid.Slots...)
			tc.mutate(&block)
			err := block.ValidateBasic()
			if tc.expValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRingDistance(t *testing.T) {
	assert.EqualValues(t, 0, RingDistance(5, 5))
	assert.EqualValues(t, 3, RingDistance(5, 8))
	assert.EqualValues(t, 3, RingDistance(8, 5))

	// The short way around crosses the top of the address space.
	top := PeerID(^uint64(0))
	assert.EqualValues(t, 1, RingDistance(top, 0))
	assert.EqualValues(t, 6, RingDistance(top-2, 3))
}
