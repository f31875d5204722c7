package node_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecsync/ecsync/config"
	"github.com/ecsync/ecsync/libs/log"
	"github.com/ecsync/ecsync/node"
	"github.com/ecsync/ecsync/types"
)

// sink is a transport that records every outbound envelope.
type sink struct {
	mtx       sync.Mutex
	envelopes []types.Envelope
}

func (s *sink) send(env types.Envelope) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.envelopes = append(s.envelopes, env)
}

func (s *sink) queriesTo(peer types.PeerID) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	n := 0
	for _, env := range s.envelopes {
		if _, ok := env.Message.(types.QueryCommitBlockMessage); ok && env.To == peer {
			n++
		}
	}
	return n
}

func newTestNode(t *testing.T, out *sink) *node.Node {
	t.Helper()
	cfg := config.TestConfig().SetRoot(t.TempDir())
	cfg.NodeID = 5000

	n, err := node.New(cfg, log.NewTestingLogger(t), out.send)
	require.NoError(t, err)
	return n
}

func TestNodeStartStop(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &sink{}
	n := newTestNode(t, out)
	require.NoError(t, n.Start(ctx))
	require.True(t, n.IsRunning())

	// Once the directory learns about a peer with a head, the tick loop
	// must start querying its commit chain.
	csb := types.NewCommitSummaryBlock(types.GenesisBlockID, 1234, []types.BlockID{100})
	n.Directory().Update(1000)
	n.Directory().SetHead(1000, csb.ID)

	require.Eventually(t, func() bool { return out.queriesTo(1000) > 0 },
		5*time.Second, 5*time.Millisecond)

	require.NoError(t, n.Stop())
	n.Wait()
	assert.False(t, n.IsRunning())
}

func TestNodeStopsOnContextCancel(t *testing.T) {
	defer leaktest.CheckTimeout(t, 10*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	n := newTestNode(t, &sink{})
	require.NoError(t, n.Start(ctx))

	cancel()
	n.Wait()
	assert.False(t, n.IsRunning())
}

func TestNodeServesCommitChain(t *testing.T) {
	// Serving queries needs no running tick loop.
	out := &sink{}
	n := newTestNode(t, out)

	csb, err := n.Engine().CreateCommitBlock([]types.BlockID{100, 101}, 1234)
	require.NoError(t, err)

	require.NoError(t, n.Receive(types.Envelope{
		From:    1000,
		Message: types.QueryCommitBlockMessage{BlockID: csb.ID, Ticket: 42},
	}))

	out.mtx.Lock()
	defer out.mtx.Unlock()
	require.Len(t, out.envelopes, 1)
	reply, ok := out.envelopes[0].Message.(types.CommitBlockMessage)
	require.True(t, ok)
	assert.Equal(t, csb, reply.Block)
	assert.Equal(t, types.Ticket(42), reply.Ticket)
}
