package chainsync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/ecsync/ecsync/config"
	"github.com/ecsync/ecsync/internal/store"
	"github.com/ecsync/ecsync/libs/log"
	"github.com/ecsync/ecsync/types"
)

// failingDB wraps a real database but hands out batches whose commit
// always fails.
type failingDB struct {
	dbm.DB
}

func (db failingDB) NewBatch() dbm.Batch { return failingBatch{} }

type failingBatch struct{}

func (failingBatch) Set(key, value []byte) error { return nil }
func (failingBatch) Delete(key []byte) error     { return nil }
func (failingBatch) Write() error                { return errors.New("disk full") }
func (failingBatch) WriteSync() error            { return errors.New("disk full") }
func (failingBatch) Close() error                { return nil }

// A failed batch commit must leave the shadow store, the received pool
// and the orphan queue untouched, so the promotion is retried later.
func TestPromoterFailedCommitKeepsState(t *testing.T) {
	st := store.New(failingDB{dbm.NewMemDB()})
	e := NewEngine(
		log.NewTestingLogger(t),
		config.DefaultSyncConfig(),
		types.PeerID(5000),
		&fakeDirectory{},
		st,
		testNow,
		NopMetrics(),
	)

	block := makeBlock(100, testNow, 70)
	e.received[block.ID] = &block
	e.routeBlock(&block, 1000)
	e.routeBlock(&block, 2000)
	require.Len(t, e.shadows.get(70).Confirmations, 2)

	orphan := makeBlock(200, testNow, 7)
	inRange := func(key uint64) bool { return key != 7 }
	e.dir.(*fakeDirectory).responsible = inRange
	e.received[orphan.ID] = &orphan
	e.routeBlock(&orphan, 1000)
	require.Contains(t, e.orphans, types.BlockID(200))

	e.tickPromoter()

	assert.NotNil(t, e.shadows.get(70))
	assert.Len(t, e.shadows.get(70).Confirmations, 2)
	assert.Contains(t, e.received, types.BlockID(100))
	assert.Contains(t, e.orphans, types.BlockID(200))

	// And nothing leaked into durable storage.
	_, found, err := st.LookupToken(70)
	require.NoError(t, err)
	assert.False(t, found)
}
