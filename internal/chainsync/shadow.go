package chainsync

import (
	"github.com/ecsync/ecsync/types"
)

// shadowMapping is the unconfirmed candidate state of one token: the
// latest block asserting ownership, the block that assertion claims as
// its predecessor, and the set of peers that independently delivered the
// exact same assertion. A shadow lives until promoted or superseded;
// only the confirmation count matters, not age.
type shadowMapping struct {
	Block         types.BlockID
	Parent        types.BlockID
	Time          types.Time
	Confirmations map[types.PeerID]struct{}
}

// applyResult says what apply did with an assertion.
type applyResult int

const (
	applyIgnored applyResult = iota
	applyCreated
	applyConfirmed
	applyReplaced
)

// shadowStore holds the unconfirmed token mappings discovered via sync
// and resolves conflicts between competing assertions deterministically,
// so honest peers converge on the same winner regardless of delivery
// order.
type shadowStore struct {
	mappings map[types.TokenID]*shadowMapping
}

func newShadowStore() *shadowStore {
	return &shadowStore{mappings: make(map[types.TokenID]*shadowMapping)}
}

func (ss *shadowStore) len() int { return len(ss.mappings) }

func (ss *shadowStore) get(token types.TokenID) *shadowMapping {
	return ss.mappings[token]
}

func (ss *shadowStore) remove(token types.TokenID) {
	delete(ss.mappings, token)
}

// apply folds one assertion into the store: block asserts ownership of
// token with parent as predecessor, delivered by peer. durableTime is the
// time of the durable mapping for the token, if hasDurable.
//
// Resolution rules, in order:
//
//  1. Durable state always wins: if storage holds time >= the assertion
//     time, the assertion is ignored outright.
//  2. No shadow yet: create one confirmed by peer.
//  3. Same block id as the shadow: the same assertion seen through
//     another peer, add a confirmation.
//  4. Same parent, different block (a fork at the same point): the
//     numerically higher block id wins; the loser is ignored.
//  5. Different parent (a reorganization): the higher timestamp wins.
//
// Replacing a shadow resets its confirmations to the delivering peer.
func (ss *shadowStore) apply(
	token types.TokenID,
	block, parent types.BlockID,
	time types.Time,
	peer types.PeerID,
	durableTime types.Time,
	hasDurable bool,
) applyResult {
	if hasDurable && durableTime >= time {
		return applyIgnored
	}

	shadow := ss.mappings[token]
	if shadow == nil {
		ss.mappings[token] = &shadowMapping{
			Block:         block,
			Parent:        parent,
			Time:          time,
			Confirmations: map[types.PeerID]struct{}{peer: {}},
		}
		return applyCreated
	}

	switch {
	case block == shadow.Block:
		shadow.Confirmations[peer] = struct{}{}
		return applyConfirmed

	case parent == shadow.Parent:
		if block > shadow.Block {
			ss.replace(shadow, block, parent, time, peer)
			return applyReplaced
		}
		return applyIgnored

	default:
		if time > shadow.Time {
			ss.replace(shadow, block, parent, time, peer)
			return applyReplaced
		}
		return applyIgnored
	}
}

func (ss *shadowStore) replace(
	shadow *shadowMapping,
	block, parent types.BlockID,
	time types.Time,
	peer types.PeerID,
) {
	shadow.Block = block
	shadow.Parent = parent
	shadow.Time = time
	shadow.Confirmations = map[types.PeerID]struct{}{peer: {}}
}

// referencesBlock reports whether any shadow names the block as its
// current assertion. Such blocks must stay pooled until promotion
// persists them.
func (ss *shadowStore) referencesBlock(id types.BlockID) bool {
	for _, shadow := range ss.mappings {
		if shadow.Block == id {
			return true
		}
	}
	return false
}

// confirmed returns the tokens whose shadow has at least threshold
// independent confirmations.
func (ss *shadowStore) confirmed(threshold int) []types.TokenID {
	var out []types.TokenID
	for token, shadow := range ss.mappings {
		if len(shadow.Confirmations) >= threshold {
			out = append(out, token)
		}
	}
	return out
}
