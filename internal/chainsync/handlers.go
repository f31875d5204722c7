package chainsync

import (
	"fmt"

	"github.com/ecsync/ecsync/types"
)

// Receive dispatches one envelope from the routing layer and returns any
// envelopes to transmit in response. Unknown messages are an error;
// stale, duplicate or unverifiable responses are silently dropped.
func (e *Engine) Receive(envelope types.Envelope) ([]types.Envelope, error) {
	switch msg := envelope.Message.(type) {
	case types.QueryCommitBlockMessage:
		return e.handleQueryCommitBlock(envelope.From, msg)
	case types.CommitBlockMessage:
		return e.HandleCommitBlock(envelope.From, msg), nil
	case types.QueryBlockMessage:
		return e.handleQueryBlock(envelope.From, msg)
	case types.BlockMessage:
		e.HandleBlock(envelope.From, msg)
		return nil, nil
	default:
		return nil, fmt.Errorf("received unknown message: %T", msg)
	}
}

// HandleCommitBlock processes a summary-block response for a tracked
// peer's trace. The ticket is checked first; responses for requests that
// are no longer pending are dropped, so redelivery is a no-op. On a match
// the trace transitions to fetching the referenced transaction blocks and
// queries are returned for the ones neither stored nor already pooled.
func (e *Engine) HandleCommitBlock(from types.PeerID, msg types.CommitBlockMessage) []types.Envelope {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if !e.tickets.verify(uint64(msg.Block.ID), msg.Ticket) {
		e.metrics.DroppedResponses.Add(1)
		return nil
	}
	if err := msg.Block.ValidateBasic(); err != nil {
		e.logger.Debug("invalid summary block", "peer", from, "err", err)
		e.metrics.DroppedResponses.Add(1)
		return nil
	}

	pcl, ok := e.roster[from]
	if !ok {
		// Peer no longer tracked; stale response.
		e.metrics.DroppedResponses.Add(1)
		return nil
	}
	t, ok := pcl.trace.(*traceWaitingForCommit)
	if !ok || t.RequestedID != msg.Block.ID {
		// Not waiting for this block (anymore).
		e.metrics.DroppedResponses.Add(1)
		return nil
	}

	commit := msg.Block
	waiting := make(map[types.BlockID]struct{})
	var envelopes []types.Envelope

	for _, id := range commit.Committed {
		if has, err := e.store.HasBlock(id); err != nil {
			e.logger.Error("block lookup failed", "block", id, "err", err)
		} else if has {
			continue
		}
		waiting[id] = struct{}{}
		if _, pooled := e.received[id]; !pooled {
			envelopes = append(envelopes, e.queryBlock(from, id))
		}
	}

	pcl.trace = &traceFetchingBlocks{Commit: commit, WaitingFor: waiting}
	e.logger.Debug("summary block received",
		"peer", from, "id", commit.ID, "missing", len(waiting))

	return envelopes
}

// HandleBlock accepts a transaction block into the shared received pool.
// Blocks may arrive via general routing from any peer; the ticket bound
// to the block id is what proves we asked for it. Duplicate deliveries
// are no-ops. Attribution to the traces that wanted the block happens on
// the next tick.
func (e *Engine) HandleBlock(from types.PeerID, msg types.BlockMessage) {
	e.mtx.Lock()
	defer e.mtx.Unlock()

	if !e.tickets.verify(uint64(msg.Block.ID), msg.Ticket) {
		e.metrics.DroppedResponses.Add(1)
		return
	}
	if err := msg.Block.ValidateBasic(); err != nil {
		e.logger.Debug("invalid block", "peer", from, "err", err)
		e.metrics.DroppedResponses.Add(1)
		return
	}
	if _, ok := e.received[msg.Block.ID]; ok {
		return
	}

	block := msg.Block
	e.received[msg.Block.ID] = &block
}

// handleQueryCommitBlock serves a summary block from local storage,
// echoing the request ticket. Unknown blocks get no reply; the asker's
// retry cascade handles it.
func (e *Engine) handleQueryCommitBlock(from types.PeerID, msg types.QueryCommitBlockMessage) ([]types.Envelope, error) {
	csb, err := e.store.LoadSummary(msg.BlockID)
	if err != nil {
		return nil, err
	}
	if csb == nil {
		return nil, nil
	}

	return []types.Envelope{{
		From:    e.self,
		To:      from,
		Message: types.CommitBlockMessage{Block: *csb, Ticket: msg.Ticket},
	}}, nil
}

// handleQueryBlock serves a transaction block from local storage.
func (e *Engine) handleQueryBlock(from types.PeerID, msg types.QueryBlockMessage) ([]types.Envelope, error) {
	block, err := e.store.LoadBlock(msg.BlockID)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, nil
	}

	return []types.Envelope{{
		From:    e.self,
		To:      from,
		Message: types.BlockMessage{Block: *block, Ticket: msg.Ticket},
	}}, nil
}
