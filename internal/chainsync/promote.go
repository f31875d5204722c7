package chainsync

import (
	"github.com/ecsync/ecsync/types"
)

// tickPromoter flushes sufficiently confirmed shadows and queued orphan
// blocks to durable storage in one atomic batch. On a failed commit the
// batch is discarded and everything is retried on a later tick; the
// in-memory shadow and pool state is the source of truth and is never
// invalidated by a failed write.
func (e *Engine) tickPromoter() {
	promote := e.shadows.confirmed(e.cfg.ConfirmationThreshold)
	if len(promote) == 0 && len(e.orphans) == 0 {
		return
	}

	batch := e.store.NewBatch()
	defer batch.Close()

	evict := make([]types.BlockID, 0, len(promote))
	for _, token := range promote {
		shadow := e.shadows.get(token)
		if err := batch.UpdateToken(token, shadow.Block, shadow.Parent, shadow.Time); err != nil {
			e.logger.Error("failed to stage token update", "token", token, "err", err)
			e.metrics.BatchFailures.Add(1)
			return
		}
		if block, ok := e.received[shadow.Block]; ok {
			if err := batch.SaveBlock(block); err != nil {
				e.logger.Error("failed to stage block", "block", block.ID, "err", err)
				e.metrics.BatchFailures.Add(1)
				return
			}
			evict = append(evict, shadow.Block)
		}
	}

	for _, block := range e.orphans {
		if err := batch.SaveBlock(block); err != nil {
			e.logger.Error("failed to stage orphan block", "block", block.ID, "err", err)
			e.metrics.BatchFailures.Add(1)
			return
		}
	}

	if err := batch.Commit(); err != nil {
		e.logger.Error("batch commit failed, will retry", "err", err)
		e.metrics.BatchFailures.Add(1)
		return
	}

	for _, token := range promote {
		e.shadows.remove(token)
	}
	for _, id := range evict {
		delete(e.received, id)
	}
	for id := range e.orphans {
		delete(e.received, id)
		delete(e.orphans, id)
	}

	e.metrics.PromotedTokens.Add(float64(len(promote)))
	if len(promote) > 0 {
		e.logger.Info("promoted shadows", "tokens", len(promote))
	}
}
