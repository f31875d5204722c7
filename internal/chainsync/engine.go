package chainsync

import (
	"sync"

	"github.com/ecsync/ecsync/config"
	"github.com/ecsync/ecsync/internal/store"
	"github.com/ecsync/ecsync/libs/log"
	"github.com/ecsync/ecsync/types"
)

// PeerDirectory is the engine's view of the peer discovery layer. The
// directory decides which peers are active and closest; the engine only
// queries it.
type PeerDirectory interface {
	// IsActive reports whether a peer is currently in the active set.
	IsActive(types.PeerID) bool

	// FindClosestActive returns up to count active peers closest to
	// target on the ring, split between above and below.
	FindClosestActive(target types.PeerID, count int) []types.PeerID

	// CommitChainHead returns the latest advertised commit-chain head
	// for a peer.
	CommitChainHead(types.PeerID) (types.BlockID, bool)

	// Responsible reports whether a key falls in this node's storage
	// responsibility range.
	Responsible(key uint64) bool
}

// Engine is the commit-chain synchronization engine. It tracks a small
// set of ring-neighbour peers, walks their commit chains backward in
// time, accumulates unconfirmed token mappings in a shadow store, and
// atomically promotes mappings once enough peers corroborate them.
//
// The engine is tick-driven: Tick advances every per-peer trace by at
// most one step and runs the batch promoter, synchronously and without
// blocking I/O. Responses arrive out-of-band through the Handle methods.
// A single mutex guards all shared state; the conflict-resolution rules
// are not decomposable into per-token locks.
type Engine struct {
	logger  log.Logger
	cfg     *config.SyncConfig
	self    types.PeerID
	dir     PeerDirectory
	store   *store.Store
	metrics *Metrics

	mtx       sync.Mutex
	roster    map[types.PeerID]*PeerChainLog
	shadows   *shadowStore
	received  map[types.BlockID]*types.Block // shared received-blocks pool
	orphans   map[types.BlockID]*types.Block // queued for storage-without-promotion
	watermark types.Time
	tickets   *ticketManager
}

// NewEngine creates a sync engine for the node identified by self. The
// watermark starts at now minus the configured target depth, so a fresh
// node aims to cover that much history.
func NewEngine(
	logger log.Logger,
	cfg *config.SyncConfig,
	self types.PeerID,
	dir PeerDirectory,
	st *store.Store,
	now types.Time,
	metrics *Metrics,
) *Engine {
	var watermark types.Time
	if uint64(now) > cfg.TargetDepth {
		watermark = now - types.Time(cfg.TargetDepth)
	}

	return &Engine{
		logger:    logger,
		cfg:       cfg,
		self:      self,
		dir:       dir,
		store:     st,
		metrics:   metrics,
		roster:    make(map[types.PeerID]*PeerChainLog),
		shadows:   newShadowStore(),
		received:  make(map[types.BlockID]*types.Block),
		orphans:   make(map[types.BlockID]*types.Block),
		watermark: watermark,
		tickets:   newTicketManager(cfg.TicketRotationTicks),
	}
}

// Tick is the engine's per-round entry point: refresh the peer roster,
// advance every trace by at most one step, and run the batch promoter.
// It returns the envelopes to transmit.
func (e *Engine) Tick(now types.Time) []types.Envelope {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	e.tickets.advance()
	e.tickPeerTracker()
	envelopes := e.tickTraces()
	e.tickPromoter()
	e.sweepPool()

	e.metrics.TrackedPeers.Set(float64(len(e.roster)))
	e.metrics.ShadowCount.Set(float64(e.shadows.len()))
	e.metrics.Watermark.Set(float64(e.watermark))
	e.metrics.ActiveTraces.Set(float64(e.activeTraces()))

	return envelopes
}

// tickPeerTracker refreshes the roster of tracked peers: drop peers that
// went inactive (their in-flight trace is discarded silently), refill
// from the closest active peers, and refresh every entry's known head.
// A short roster is degraded operation, not an error.
func (e *Engine) tickPeerTracker() {
	for id := range e.roster {
		if !e.dir.IsActive(id) {
			e.logger.Info("dropping inactive peer", "peer", id)
			delete(e.roster, id)
		}
	}

	if len(e.roster) < e.cfg.TrackedPeers {
		for _, candidate := range e.dir.FindClosestActive(e.self, e.cfg.TrackedPeers) {
			if candidate == e.self {
				continue
			}
			if _, ok := e.roster[candidate]; ok {
				continue
			}
			e.roster[candidate] = &PeerChainLog{PeerID: candidate}
			e.logger.Info("tracking peer", "peer", candidate)
			if len(e.roster) >= e.cfg.TrackedPeers {
				break
			}
		}
	}

	for id, pcl := range e.roster {
		if head, ok := e.dir.CommitChainHead(id); ok {
			pcl.KnownHead = head
		}
	}
}

// Watermark returns the timestamp boundary synchronization has reached.
func (e *Engine) Watermark() types.Time {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.watermark
}

// TrackedPeers returns the peers currently under synchronization.
func (e *Engine) TrackedPeers() []types.PeerID {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	out := make([]types.PeerID, 0, len(e.roster))
	for id := range e.roster {
		out = append(out, id)
	}
	return out
}

// ShadowCount returns the number of unconfirmed token mappings.
func (e *Engine) ShadowCount() int {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.shadows.len()
}

func (e *Engine) activeTraces() int {
	n := 0
	for _, pcl := range e.roster {
		if pcl.trace != nil {
			n++
		}
	}
	return n
}

// CreateCommitBlock appends a summary block for a batch of durably
// committed transaction blocks to this node's own commit chain and
// returns it. The new block links to the previous head, or the genesis
// sentinel for the first commit.
func (e *Engine) CreateCommitBlock(committed []types.BlockID, now types.Time) (types.CommitSummaryBlock, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	previous := types.GenesisBlockID
	if head, ok, err := e.store.Head(); err != nil {
		return types.CommitSummaryBlock{}, err
	} else if ok {
		previous = head
	}

	csb := types.NewCommitSummaryBlock(previous, now, committed)
	if err := e.store.SaveSummary(&csb); err != nil {
		return types.CommitSummaryBlock{}, err
	}
	if err := e.store.SetHead(csb.ID); err != nil {
		return types.CommitSummaryBlock{}, err
	}

	e.logger.Info("created commit block", "id", csb.ID, "blocks", len(committed))
	return csb, nil
}

// Head returns the head of this node's own commit chain, if any.
func (e *Engine) Head() (types.BlockID, bool, error) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	return e.store.Head()
}
