package chainsync

import (
	"github.com/ecsync/ecsync/types"
)

// PeerChainLog is the per-tracked-peer sync bookkeeping: the latest head
// we know for that peer, and the state of the backward walk (trace)
// through its commit chain, if one is active.
type PeerChainLog struct {
	PeerID    types.PeerID
	KnownHead types.BlockID

	// FirstCommitTime is the oldest summary-block time seen in the
	// current trace. It feeds the watermark when the trace completes.
	FirstCommitTime types.Time

	// tracingHead is the head the active trace started from;
	// lastTracedHead is the head of the last completed trace, so a new
	// trace starts only when the peer's head has moved.
	tracingHead    types.BlockID
	lastTracedHead types.BlockID

	trace traceState
}

// traceState is the per-peer state machine. The zero value (nil) is the
// idle state: no trace is active for the peer.
//
// Transitions:
//
//	idle -> waitingForCommit        query sent for the peer's head
//	waitingForCommit -> fetchingBlocks  the summary block arrived
//	fetchingBlocks -> waitingForCommit  walk continues to Previous
//	fetchingBlocks -> idle              trace bottomed out
type traceState interface {
	traceTag()
}

// traceWaitingForCommit: a summary block has been requested and not yet
// received. The request is retransmitted every retransmit interval.
type traceWaitingForCommit struct {
	RequestedID  types.BlockID
	TicksWaiting uint64
}

// traceFetchingBlocks: the summary block is known; WaitingFor holds the
// transaction-block ids it references that are still missing locally.
// The missing ids are re-requested every retransmit interval.
type traceFetchingBlocks struct {
	Commit       types.CommitSummaryBlock
	WaitingFor   map[types.BlockID]struct{}
	TicksWaiting uint64
}

func (*traceWaitingForCommit) traceTag() {}
func (*traceFetchingBlocks) traceTag()   {}
