package peers

import (
	"sort"
	"sync"

	"github.com/ecsync/ecsync/types"
)

// rangeWidth is how many active peers on each side of a key bound the
// storage responsibility range. Below minRangePeers active peers the whole
// ring is in range, so a small network still replicates everything.
const (
	rangeWidth    = 4
	minRangePeers = 10
)

// Directory tracks the set of active peers on the ring-ordered address
// space and the latest commit-chain head each has advertised. Discovery
// and election of the active set happen elsewhere; the directory only
// answers queries about it.
type Directory struct {
	mtx sync.RWMutex

	self   types.PeerID
	active []types.PeerID // sorted, never contains self
	heads  map[types.PeerID]types.BlockID
}

// NewDirectory creates a directory for the node identified by self.
func NewDirectory(self types.PeerID) *Directory {
	return &Directory{
		self:  self,
		heads: make(map[types.PeerID]types.BlockID),
	}
}

// Self returns this node's identifier.
func (d *Directory) Self() types.PeerID { return d.self }

// Update marks a peer active, inserting it in ring order.
func (d *Directory) Update(id types.PeerID) {
	if id == d.self {
		return
	}

	d.mtx.Lock()
	defer d.mtx.Unlock()

	i := sort.Search(len(d.active), func(i int) bool { return d.active[i] >= id })
	if i < len(d.active) && d.active[i] == id {
		return
	}
	d.active = append(d.active, 0)
	copy(d.active[i+1:], d.active[i:])
	d.active[i] = id
}

// Remove drops a peer from the active set and forgets its head.
func (d *Directory) Remove(id types.PeerID) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	i := sort.Search(len(d.active), func(i int) bool { return d.active[i] >= id })
	if i < len(d.active) && d.active[i] == id {
		d.active = append(d.active[:i], d.active[i+1:]...)
	}
	delete(d.heads, id)
}

// IsActive reports whether the peer is currently in the active set.
func (d *Directory) IsActive(id types.PeerID) bool {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	i := sort.Search(len(d.active), func(i int) bool { return d.active[i] >= id })
	return i < len(d.active) && d.active[i] == id
}

// SetHead records the latest advertised commit-chain head for a peer.
// Heads are advertised out-of-band (keepalives, gossip); the sync engine
// only reads them.
func (d *Directory) SetHead(id types.PeerID, head types.BlockID) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	d.heads[id] = head
}

// CommitChainHead returns the latest known commit-chain head for a peer.
func (d *Directory) CommitChainHead(id types.PeerID) (types.BlockID, bool) {
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	head, ok := d.heads[id]
	return head, ok
}

// FindClosestActive returns up to count active peers closest to target on
// the ring, alternating between successors ("above") and predecessors
// ("below") so the result is split evenly across both sides.
func (d *Directory) FindClosestActive(target types.PeerID, count int) []types.PeerID {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	n := len(d.active)
	if n == 0 || count <= 0 {
		return nil
	}
	if count > n {
		count = n
	}

	// First active peer at or after target, wrapping.
	up := sort.Search(n, func(i int) bool { return d.active[i] >= target }) % n
	down := up - 1

	out := make([]types.PeerID, 0, count)
	for len(out) < count {
		out = append(out, d.active[((up%n)+n)%n])
		up++
		if len(out) == count {
			break
		}
		out = append(out, d.active[((down%n)+n)%n])
		down--
	}
	return out
}

// Range returns the storage responsibility range around a key: the span
// between the rangeWidth-th active peer below and above it. With few
// active peers the whole ring is in range.
func (d *Directory) Range(key types.PeerID) Range {
	d.mtx.RLock()
	defer d.mtx.RUnlock()

	n := len(d.active)
	if n <= minRangePeers {
		return Range{Low: 0, High: types.PeerID(^uint64(0))}
	}

	idx := sort.Search(n, func(i int) bool { return d.active[i] >= key }) % n
	return Range{
		Low:  d.active[((idx-rangeWidth)%n+n)%n],
		High: d.active[(idx+rangeWidth)%n],
	}
}

// Responsible reports whether a key falls in this node's own storage
// responsibility range.
func (d *Directory) Responsible(key uint64) bool {
	return d.Range(d.self).Contains(key)
}

// Range is a possibly-wrapping arc of the ring address space.
type Range struct {
	Low  types.PeerID
	High types.PeerID
}

// Contains reports whether key falls inside the arc, accounting for
// wrap-around past the top of the address space.
func (r Range) Contains(key uint64) bool {
	lo, hi := uint64(r.Low), uint64(r.High)
	if lo <= hi {
		return key >= lo && key <= hi
	}
	return key >= lo || key <= hi
}
