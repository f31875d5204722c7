package chainsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecsync/ecsync/types"
)

func TestShadowCreateAndConfirm(t *testing.T) {
	ss := newShadowStore()

	res := ss.apply(7, 100, types.GenesisBlockID, 1000, 1, 0, false)
	require.Equal(t, applyCreated, res)

	// Same assertion from a different peer adds a confirmation.
	res = ss.apply(7, 100, types.GenesisBlockID, 1000, 2, 0, false)
	require.Equal(t, applyConfirmed, res)

	shadow := ss.get(7)
	require.NotNil(t, shadow)
	assert.Equal(t, types.BlockID(100), shadow.Block)
	assert.Len(t, shadow.Confirmations, 2)

	// Redelivery by an already-counted peer changes nothing.
	res = ss.apply(7, 100, types.GenesisBlockID, 1000, 2, 0, false)
	require.Equal(t, applyConfirmed, res)
	assert.Len(t, shadow.Confirmations, 2)
}

func TestShadowDurablePrecedence(t *testing.T) {
	ss := newShadowStore()

	// Durable storage at time 1000 beats any assertion at time <= 1000.
	res := ss.apply(7, 100, types.GenesisBlockID, 1000, 1, 1000, true)
	require.Equal(t, applyIgnored, res)
	require.Nil(t, ss.get(7))

	res = ss.apply(7, 100, types.GenesisBlockID, 999, 1, 1000, true)
	require.Equal(t, applyIgnored, res)
	require.Nil(t, ss.get(7))

	// A strictly newer assertion is allowed in.
	res = ss.apply(7, 100, types.GenesisBlockID, 1001, 1, 1000, true)
	require.Equal(t, applyCreated, res)
	require.NotNil(t, ss.get(7))
}

// Two blocks forking from the same parent: the numerically larger id must
// win no matter which arrives first.
func TestShadowForkTieBreak(t *testing.T) {
	const parent = types.BlockID(50)

	orders := [][2]types.BlockID{{100, 200}, {200, 100}}
	for _, order := range orders {
		ss := newShadowStore()
		ss.apply(7, order[0], parent, 1000, 1, 0, false)
		ss.apply(7, order[1], parent, 1000, 2, 0, false)

		shadow := ss.get(7)
		require.NotNil(t, shadow)
		assert.Equal(t, types.BlockID(200), shadow.Block)
		assert.Equal(t, parent, shadow.Parent)
	}
}

func TestShadowForkLoserResetsNothing(t *testing.T) {
	ss := newShadowStore()
	ss.apply(7, 200, 50, 1000, 1, 0, false)
	ss.apply(7, 200, 50, 1000, 2, 0, false)

	// The losing fork must not disturb accumulated confirmations.
	res := ss.apply(7, 100, 50, 1000, 3, 0, false)
	require.Equal(t, applyIgnored, res)
	assert.Len(t, ss.get(7).Confirmations, 2)
}

func TestShadowForkWinnerResetsConfirmations(t *testing.T) {
	ss := newShadowStore()
	ss.apply(7, 100, 50, 1000, 1, 0, false)
	ss.apply(7, 100, 50, 1000, 2, 0, false)
	require.Len(t, ss.get(7).Confirmations, 2)

	res := ss.apply(7, 200, 50, 1000, 3, 0, false)
	require.Equal(t, applyReplaced, res)

	shadow := ss.get(7)
	assert.Equal(t, types.BlockID(200), shadow.Block)
	assert.Len(t, shadow.Confirmations, 1)
	_, ok := shadow.Confirmations[3]
	assert.True(t, ok)
}

// Two blocks with different parents (a reorganization): the higher
// timestamp must win regardless of arrival order.
func TestShadowReorgTieBreak(t *testing.T) {
	type assertion struct {
		block  types.BlockID
		parent types.BlockID
		time   types.Time
	}
	older := assertion{block: 300, parent: 40, time: 900}
	newer := assertion{block: 100, parent: 60, time: 1100}

	for _, order := range [][2]assertion{{older, newer}, {newer, older}} {
		ss := newShadowStore()
		ss.apply(7, order[0].block, order[0].parent, order[0].time, 1, 0, false)
		ss.apply(7, order[1].block, order[1].parent, order[1].time, 2, 0, false)

		shadow := ss.get(7)
		require.NotNil(t, shadow)
		assert.Equal(t, newer.block, shadow.Block)
		assert.Equal(t, newer.parent, shadow.Parent)
		assert.Equal(t, newer.time, shadow.Time)
		assert.Len(t, shadow.Confirmations, 1)
	}
}

func TestShadowConfirmedThreshold(t *testing.T) {
	ss := newShadowStore()
	ss.apply(1, 100, types.GenesisBlockID, 1000, 1, 0, false)
	ss.apply(1, 100, types.GenesisBlockID, 1000, 2, 0, false)
	ss.apply(2, 101, types.GenesisBlockID, 1000, 1, 0, false)

	confirmed := ss.confirmed(2)
	require.Len(t, confirmed, 1)
	assert.Equal(t, types.TokenID(1), confirmed[0])
}
