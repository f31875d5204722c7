package chainsync

import (
	"github.com/ecsync/ecsync/types"
)

// tickTraces advances every tracked peer's trace by at most one step and
// returns the requests to transmit. Traces across peers are independent;
// within one peer the walk is strictly sequential.
func (e *Engine) tickTraces() []types.Envelope {
	var envelopes []types.Envelope

	for _, pcl := range e.roster {
		switch t := pcl.trace.(type) {
		case nil:
			// Idle. Start a trace only when the peer's head has moved
			// past what the last completed trace covered.
			if pcl.KnownHead == types.GenesisBlockID || pcl.KnownHead == pcl.lastTracedHead {
				continue
			}
			pcl.tracingHead = pcl.KnownHead
			pcl.FirstCommitTime = 0
			pcl.trace = &traceWaitingForCommit{RequestedID: pcl.KnownHead}
			envelopes = append(envelopes, e.queryCommitBlock(pcl.PeerID, pcl.KnownHead))

		case *traceWaitingForCommit:
			t.TicksWaiting++
			if t.TicksWaiting%e.cfg.RetransmitTicks == 0 {
				// Idempotent retry, same request.
				envelopes = append(envelopes, e.queryCommitBlock(pcl.PeerID, t.RequestedID))
			}

		case *traceFetchingBlocks:
			e.scanPool(pcl, t)
			if len(t.WaitingFor) == 0 {
				envelopes = append(envelopes, e.advanceTrace(pcl, t)...)
				continue
			}
			t.TicksWaiting++
			if t.TicksWaiting%e.cfg.RetransmitTicks == 0 {
				// Re-request every still-missing block with a fresh
				// ticket so a lost response cannot stall the trace.
				for id := range t.WaitingFor {
					envelopes = append(envelopes, e.queryBlock(pcl.PeerID, id))
				}
			}
		}
	}

	return envelopes
}

// advanceTrace moves a trace past a fully fetched summary block: either
// the trace bottoms out (older than the watermark, or genesis reached)
// and the watermark is raised, or the walk continues to the previous
// summary block.
func (e *Engine) advanceTrace(pcl *PeerChainLog, t *traceFetchingBlocks) []types.Envelope {
	// FirstCommitTime is the oldest summary time seen in this trace. An
	// honest chain yields strictly decreasing times walking backward,
	// but the watermark must not trust that.
	if pcl.FirstCommitTime == 0 || t.Commit.Time < pcl.FirstCommitTime {
		pcl.FirstCommitTime = t.Commit.Time
	}

	if t.Commit.Time < e.watermark || t.Commit.Previous == types.GenesisBlockID {
		pcl.trace = nil
		pcl.lastTracedHead = pcl.tracingHead
		if pcl.FirstCommitTime > e.watermark {
			e.watermark = pcl.FirstCommitTime
		}
		e.logger.Info("trace complete",
			"peer", pcl.PeerID,
			"oldest", pcl.FirstCommitTime,
			"watermark", e.watermark)
		return nil
	}

	pcl.trace = &traceWaitingForCommit{RequestedID: t.Commit.Previous}
	return []types.Envelope{e.queryCommitBlock(pcl.PeerID, t.Commit.Previous)}
}

// scanPool consumes blocks this trace is waiting for from the shared
// received pool, routing each into the shadow store attributed to the
// traced peer. Blocks promoted to storage by another trace count as
// arrived.
func (e *Engine) scanPool(pcl *PeerChainLog, t *traceFetchingBlocks) {
	for id := range t.WaitingFor {
		if block, ok := e.received[id]; ok {
			delete(t.WaitingFor, id)
			e.routeBlock(block, pcl.PeerID)
			continue
		}
		if ok, err := e.store.HasBlock(id); err != nil {
			e.logger.Error("block lookup failed", "block", id, "err", err)
		} else if ok {
			delete(t.WaitingFor, id)
		}
	}
}

// routeBlock feeds every in-range token assertion of a block into the
// shadow store, attributed to the peer whose trace delivered it. Blocks
// in this node's responsibility range that carry no in-range tokens are
// queued for storage without promotion; blocks outside the range with no
// in-range tokens exist only transiently for routing.
func (e *Engine) routeBlock(block *types.Block, peer types.PeerID) {
	inRange := 0
	for _, slot := range block.Slots {
		if !e.dir.Responsible(uint64(slot.Token)) {
			continue
		}
		inRange++

		durable, hasDurable, err := e.store.LookupToken(slot.Token)
		if err != nil {
			e.logger.Error("token lookup failed", "token", slot.Token, "err", err)
			continue
		}

		res := e.shadows.apply(slot.Token, block.ID, slot.Last, block.Time, peer, durable.Time, hasDurable)
		if res == applyReplaced {
			e.logger.Debug("shadow replaced",
				"token", slot.Token, "block", block.ID, "peer", peer)
		}
	}

	if inRange == 0 {
		if e.dir.Responsible(uint64(block.ID)) {
			e.orphans[block.ID] = block
		} else if !e.blockStillWanted(block.ID) {
			// Nothing will store or consume it; drop it from the pool.
			delete(e.received, block.ID)
		}
	}
}

// sweepPool drops pooled blocks nothing will ever consume: not waited
// for by any trace (the requesting trace may have been discarded with
// its peer), not named by a shadow awaiting promotion, and not queued
// as an orphan.
func (e *Engine) sweepPool() {
	for id := range e.received {
		if e.blockStillWanted(id) {
			continue
		}
		if _, ok := e.orphans[id]; ok {
			continue
		}
		if e.shadows.referencesBlock(id) {
			continue
		}
		delete(e.received, id)
	}
}

// blockStillWanted reports whether any trace is still waiting for the
// block; multiple peer logs may independently need the same block.
func (e *Engine) blockStillWanted(id types.BlockID) bool {
	for _, pcl := range e.roster {
		if t, ok := pcl.trace.(*traceFetchingBlocks); ok {
			if _, waiting := t.WaitingFor[id]; waiting {
				return true
			}
		}
	}
	return false
}

func (e *Engine) queryCommitBlock(peer types.PeerID, id types.BlockID) types.Envelope {
	return types.Envelope{
		From: e.self,
		To:   peer,
		Message: types.QueryCommitBlockMessage{
			BlockID: id,
			Ticket:  e.tickets.issue(uint64(id)),
		},
	}
}

func (e *Engine) queryBlock(peer types.PeerID, id types.BlockID) types.Envelope {
	return types.Envelope{
		From: e.self,
		To:   peer,
		Message: types.QueryBlockMessage{
			BlockID: id,
			Ticket:  e.tickets.issue(uint64(id)),
		},
	}
}
