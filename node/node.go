package node

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	dbm "github.com/tendermint/tm-db"

	"github.com/ecsync/ecsync/config"
	"github.com/ecsync/ecsync/internal/chainsync"
	"github.com/ecsync/ecsync/internal/peers"
	"github.com/ecsync/ecsync/internal/store"
	"github.com/ecsync/ecsync/libs/log"
	"github.com/ecsync/ecsync/libs/service"
	"github.com/ecsync/ecsync/types"
)

// Transport delivers one envelope to the network layer. Wire framing,
// encryption and addressing live behind it.
type Transport func(types.Envelope)

// Node wires the database, the peer directory and the sync engine
// together and drives the engine's tick loop.
type Node struct {
	service.BaseService
	logger log.Logger

	cfg       *config.Config
	db        dbm.DB
	store     *store.Store
	directory *peers.Directory
	engine    *chainsync.Engine
	transport Transport

	promSrv  *http.Server
	quitTick chan struct{}
	stopped  chan struct{}
}

// New creates an unstarted node from the configuration. The transport is
// invoked for every outbound envelope; it must not block.
func New(cfg *config.Config, logger log.Logger, transport Transport) (*Node, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := dbm.NewDB("ecsync", dbm.BackendType(cfg.DBBackend), cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	metrics := chainsync.NopMetrics()
	if cfg.Instrumentation.Prometheus {
		metrics = chainsync.PrometheusMetrics(cfg.Instrumentation.Namespace)
	}

	self := types.PeerID(cfg.NodeID)
	st := store.New(db)
	directory := peers.NewDirectory(self)
	engine := chainsync.NewEngine(
		logger.With("module", "chainsync"),
		cfg.Sync,
		self,
		directory,
		st,
		networkTime(),
		metrics,
	)

	n := &Node{
		logger:    logger,
		cfg:       cfg,
		db:        db,
		store:     st,
		directory: directory,
		engine:    engine,
		transport: transport,
		quitTick:  make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

// Directory exposes the peer directory so the discovery layer can feed
// active-peer and head updates into it.
func (n *Node) Directory() *peers.Directory { return n.directory }

// Engine exposes the sync engine for local commit creation and status.
func (n *Node) Engine() *chainsync.Engine { return n.engine }

// Receive feeds one inbound envelope to the engine and transmits any
// replies.
func (n *Node) Receive(envelope types.Envelope) error {
	out, err := n.engine.Receive(envelope)
	if err != nil {
		return err
	}
	for _, env := range out {
		n.transport(env)
	}
	return nil
}

// OnStart implements service.Service. It starts the tick loop and, when
// configured, the Prometheus metrics server.
func (n *Node) OnStart(ctx context.Context) error {
	if n.cfg.Instrumentation.Prometheus {
		n.promSrv = &http.Server{
			Addr:    n.cfg.Instrumentation.PrometheusListenAddr,
			Handler: promhttp.Handler(),
		}
		go func() {
			if err := n.promSrv.ListenAndServe(); err != http.ErrServerClosed {
				n.logger.Error("prometheus server failed", "err", err)
			}
		}()
	}

	go n.tickLoop(ctx)
	return nil
}

// OnStop implements service.Service.
func (n *Node) OnStop() {
	close(n.quitTick)
	<-n.stopped
	if n.promSrv != nil {
		if err := n.promSrv.Close(); err != nil {
			n.logger.Error("error closing prometheus server", "err", err)
		}
	}
	if err := n.store.Close(); err != nil {
		n.logger.Error("error closing store", "err", err)
	}
}

// tickLoop drives the engine at the configured interval until the
// context terminates. All engine work happens inside Tick; the loop only
// transmits the envelopes Tick produces.
func (n *Node) tickLoop(ctx context.Context) {
	defer close(n.stopped)

	ticker := time.NewTicker(n.cfg.Sync.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.quitTick:
			return
		case <-ticker.C:
			for _, env := range n.engine.Tick(networkTime()) {
				n.transport(env)
			}
		}
	}
}

// networkTime is the current timestamp in network time-units.
func networkTime() types.Time {
	return types.Time(time.Now().Unix())
}
