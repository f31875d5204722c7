package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/ecsync/ecsync/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(dbm.NewMemDB())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreTokenLookup(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.LookupToken(7)
	require.NoError(t, err)
	require.False(t, found)

	batch := s.NewBatch()
	require.NoError(t, batch.UpdateToken(7, 100, types.GenesisBlockID, 1234))
	require.NoError(t, batch.Commit())

	mapping, found, err := s.LookupToken(7)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.TokenMapping{Block: 100, Parent: types.GenesisBlockID, Time: 1234}, mapping)
}

func TestStoreBlockRoundTrip(t *testing.T) {
	s := newTestStore(t)

	has, err := s.HasBlock(100)
	require.NoError(t, err)
	require.False(t, has)

	got, err := s.LoadBlock(100)
	require.NoError(t, err)
	require.Nil(t, got)

	block := &types.Block{
		ID:   100,
		Time: 1234,
		Slots: []types.TokenSlot{
			{Token: 7, Last: types.GenesisBlockID, Key: 42},
			{Token: 8, Last: 90},
		},
	}
	require.NoError(t, s.SaveBlock(block))

	has, err = s.HasBlock(100)
	require.NoError(t, err)
	assert.True(t, has)

	got, err = s.LoadBlock(100)
	require.NoError(t, err)
	assert.Equal(t, block, got)
}

func TestStoreSummaryRoundTrip(t *testing.T) {
	s := newTestStore(t)

	csb := types.NewCommitSummaryBlock(types.GenesisBlockID, 1234, []types.BlockID{100, 101})
	require.NoError(t, s.SaveSummary(&csb))

	got, err := s.LoadSummary(csb.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, csb, *got)
	require.NoError(t, got.ValidateBasic())

	got, err = s.LoadSummary(csb.ID + 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreHead(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Head()
	require.NoError(t, err)
	require.False(t, ok, "fresh store has no chain head")

	require.NoError(t, s.SetHead(100))
	head, ok, err := s.Head()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.BlockID(100), head)

	require.NoError(t, s.SetHead(101))
	head, _, err = s.Head()
	require.NoError(t, err)
	assert.Equal(t, types.BlockID(101), head)
}

func TestBatchStagedWritesInvisibleUntilCommit(t *testing.T) {
	s := newTestStore(t)

	block := &types.Block{ID: 100, Time: 1, Slots: []types.TokenSlot{{Token: 7}}}

	batch := s.NewBatch()
	require.NoError(t, batch.UpdateToken(7, 100, types.GenesisBlockID, 1))
	require.NoError(t, batch.SaveBlock(block))
	assert.Equal(t, 2, batch.Size())

	_, found, err := s.LookupToken(7)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, batch.Commit())

	_, found, err = s.LookupToken(7)
	require.NoError(t, err)
	assert.True(t, found)
	has, err := s.HasBlock(100)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestBatchCloseDiscards(t *testing.T) {
	s := newTestStore(t)

	batch := s.NewBatch()
	require.NoError(t, batch.UpdateToken(7, 100, types.GenesisBlockID, 1))
	require.NoError(t, batch.Close())

	_, found, err := s.LookupToken(7)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBatchClosedErrors(t *testing.T) {
	s := newTestStore(t)

	batch := s.NewBatch()
	require.NoError(t, batch.Commit())

	assert.ErrorIs(t, batch.Commit(), ErrBatchClosed)
	assert.ErrorIs(t, batch.UpdateToken(7, 100, 0, 1), ErrBatchClosed)
	assert.ErrorIs(t, batch.SaveBlock(&types.Block{ID: 1}), ErrBatchClosed)
}

func TestKeysDistinctAcrossKeyspaces(t *testing.T) {
	// The same 64-bit id must map to different keys in every keyspace.
	assert.NotEqual(t, tokenKey(7), blockKey(7))
	assert.NotEqual(t, blockKey(7), summaryKey(7))
	assert.NotEqual(t, tokenKey(7), summaryKey(7))
	assert.NotEqual(t, tokenKey(7), chainHeadKey())
}
