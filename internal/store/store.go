package store

import (
	"encoding/json"
	"errors"
	"fmt"

	dbm "github.com/tendermint/tm-db"

	"github.com/ecsync/ecsync/types"
)

// Store is the durable storage for the sync engine. It holds four
// keyspaces in a single tm-db database:
//
//   - token mappings: token -> (block, parent, time)
//   - transaction blocks, by id
//   - commit summary blocks, by id (this node's own chain and cached
//     summaries served to other peers)
//   - the head pointer of this node's own commit chain
//
// All multi-key updates go through Batch so they land atomically.
type Store struct {
	db dbm.DB
}

// New creates a store on top of an opened database.
func New(db dbm.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// LookupToken returns the durable mapping for a token, if any.
func (s *Store) LookupToken(token types.TokenID) (types.TokenMapping, bool, error) {
	bz, err := s.db.Get(tokenKey(token))
	if err != nil {
		return types.TokenMapping{}, false, fmt.Errorf("lookup token %v: %w", token, err)
	}
	if bz == nil {
		return types.TokenMapping{}, false, nil
	}

	var tm types.TokenMapping
	if err := json.Unmarshal(bz, &tm); err != nil {
		return types.TokenMapping{}, false, fmt.Errorf("corrupt token record %v: %w", token, err)
	}
	return tm, true, nil
}

// HasBlock reports whether a transaction block is durably stored.
func (s *Store) HasBlock(id types.BlockID) (bool, error) {
	ok, err := s.db.Has(blockKey(id))
	if err != nil {
		return false, fmt.Errorf("has block %v: %w", id, err)
	}
	return ok, nil
}

// LoadBlock returns a durably stored transaction block, or nil if absent.
func (s *Store) LoadBlock(id types.BlockID) (*types.Block, error) {
	bz, err := s.db.Get(blockKey(id))
	if err != nil {
		return nil, fmt.Errorf("load block %v: %w", id, err)
	}
	if bz == nil {
		return nil, nil
	}

	block := new(types.Block)
	if err := json.Unmarshal(bz, block); err != nil {
		return nil, fmt.Errorf("corrupt block %v: %w", id, err)
	}
	return block, nil
}

// SaveBlock durably stores a single transaction block outside a batch.
func (s *Store) SaveBlock(block *types.Block) error {
	bz, err := json.Marshal(block)
	if err != nil {
		return err
	}
	return s.db.SetSync(blockKey(block.ID), bz)
}

// LoadSummary returns a stored commit summary block, or nil if absent.
func (s *Store) LoadSummary(id types.BlockID) (*types.CommitSummaryBlock, error) {
	bz, err := s.db.Get(summaryKey(id))
	if err != nil {
		return nil, fmt.Errorf("load summary %v: %w", id, err)
	}
	if bz == nil {
		return nil, nil
	}

	csb := new(types.CommitSummaryBlock)
	if err := json.Unmarshal(bz, csb); err != nil {
		return nil, fmt.Errorf("corrupt summary %v: %w", id, err)
	}
	return csb, nil
}

// SaveSummary durably stores a commit summary block.
func (s *Store) SaveSummary(csb *types.CommitSummaryBlock) error {
	bz, err := json.Marshal(csb)
	if err != nil {
		return err
	}
	return s.db.SetSync(summaryKey(csb.ID), bz)
}

// Head returns the head of this node's own commit chain. ok is false when
// the node has never committed.
func (s *Store) Head() (types.BlockID, bool, error) {
	bz, err := s.db.Get(chainHeadKey())
	if err != nil {
		return 0, false, fmt.Errorf("load chain head: %w", err)
	}
	if bz == nil {
		return 0, false, nil
	}

	var head types.BlockID
	if err := json.Unmarshal(bz, &head); err != nil {
		return 0, false, fmt.Errorf("corrupt chain head: %w", err)
	}
	return head, true, nil
}

// SetHead updates the head of this node's own commit chain.
func (s *Store) SetHead(id types.BlockID) error {
	bz, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.db.SetSync(chainHeadKey(), bz)
}

// NewBatch opens an atomic write batch. The caller must either Commit or
// Close it.
func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

// Batch accumulates token and block writes and commits them atomically,
// all or nothing. A failed Commit leaves the database untouched.
type Batch struct {
	batch dbm.Batch
	size  int
}

// ErrBatchClosed is returned when operating on a committed or closed batch.
var ErrBatchClosed = errors.New("batch is closed")

// UpdateToken stages a token mapping update.
func (b *Batch) UpdateToken(token types.TokenID, block, parent types.BlockID, time types.Time) error {
	if b.batch == nil {
		return ErrBatchClosed
	}
	bz, err := json.Marshal(types.TokenMapping{Block: block, Parent: parent, Time: time})
	if err != nil {
		return err
	}
	if err := b.batch.Set(tokenKey(token), bz); err != nil {
		return err
	}
	b.size++
	return nil
}

// SaveBlock stages a transaction block write.
func (b *Batch) SaveBlock(block *types.Block) error {
	if b.batch == nil {
		return ErrBatchClosed
	}
	bz, err := json.Marshal(block)
	if err != nil {
		return err
	}
	if err := b.batch.Set(blockKey(block.ID), bz); err != nil {
		return err
	}
	b.size++
	return nil
}

// Size returns the number of staged writes.
func (b *Batch) Size() int { return b.size }

// Commit writes all staged operations to disk synchronously and closes
// the batch.
func (b *Batch) Commit() error {
	if b.batch == nil {
		return ErrBatchClosed
	}
	err := b.batch.WriteSync()
	cerr := b.batch.Close()
	b.batch = nil
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return cerr
}

// Close discards the batch without writing.
func (b *Batch) Close() error {
	if b.batch == nil {
		return nil
	}
	err := b.batch.Close()
	b.batch = nil
	return err
}
