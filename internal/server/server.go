// Package server wires every component — config, logging, metrics, the
// chunk store, region persistence, the worker pool, the entity table, the
// player registry, the network acceptor and the tick scheduler — into the
// single Server the "Global mutables" design note (spec.md §9) calls for:
// one struct holding every shared dependency, injected into the pieces
// that need it, rather than package-level state.
package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tholin/craftd/internal/config"
	"github.com/tholin/craftd/internal/entity"
	"github.com/tholin/craftd/internal/logging"
	"github.com/tholin/craftd/internal/network"
	"github.com/tholin/craftd/internal/perf"
	"github.com/tholin/craftd/internal/player"
	"github.com/tholin/craftd/internal/proto"
	"github.com/tholin/craftd/internal/region"
	"github.com/tholin/craftd/internal/tick"
	"github.com/tholin/craftd/internal/worker"
	"github.com/tholin/craftd/internal/world"
)

// Server owns every long-lived subsystem for one running instance.
type Server struct {
	cfg config.Config
	log *logging.Logger
	mon *perf.Monitor

	registry  *proto.Registry
	world     *world.Store
	regionMgr *region.Manager
	workers   *worker.Pool
	entities  *entity.Table
	players   *player.Registry

	acceptor  *network.Acceptor
	scheduler *tick.Scheduler
}

// New builds every subsystem from cfg and binds the listening socket, but
// does not accept connections; call Run to accept connections and begin
// ticking.
func New(cfg config.Config, worldDir string) (*Server, error) {
	var out *os.File
	if cfg.Logging.Console {
		out = os.Stdout
	}
	log := logging.New(cfg.Logging.Level, out)

	mon := perf.NewMonitor()
	reg := proto.NewRegistry()

	regionMgr, err := region.NewManager(worldDir)
	if err != nil {
		return nil, fmt.Errorf("server: region manager: %w", err)
	}

	workerCount := cfg.Performance.WorkerThreads
	pool := worker.NewPool(workerCount, 256)

	gen := world.NewFlatGenerator()
	store := world.NewStore(gen, regionMgr, pool, cfg.Performance.MaxChunksLoaded, cfg.Performance.ChunkUnloadTimeout())

	s := &Server{
		cfg:       cfg,
		log:       log,
		mon:       mon,
		registry:  reg,
		world:     store,
		regionMgr: regionMgr,
		workers:   pool,
		entities:  entity.NewTable(0),
		players:   player.NewRegistry(cfg.Server.MaxPlayers),
	}

	acceptor, err := network.Listen(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), reg, mon, log)
	if err != nil {
		return nil, fmt.Errorf("server: listen: %w", err)
	}
	acceptor.OnAccept(s.handleAccept)
	s.acceptor = acceptor

	hooks := tick.Hooks{
		TickPlayers:      s.tickPlayers,
		TickEntities:     s.tickEntities,
		WorldMaintenance: s.tickWorldMaintenance,
		AutoSave:         s.autoSave,
	}
	s.scheduler = tick.New(hooks, mon, log.WithField("component", "tick"), cfg.Performance.AutoSaveInterval())

	return s, nil
}

// Addr returns the bound listener address, useful in tests that bind :0.
func (s *Server) Addr() string { return s.acceptor.Addr().String() }

// Metrics exposes the perf monitor; its Registry() is the Prometheus
// registry for an HTTP handler.
func (s *Server) Metrics() *perf.Monitor { return s.mon }

// Run blocks, serving connections and ticking, until ctx is cancelled or a
// subsystem fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.acceptor.Serve()
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error { return s.scheduler.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		return s.acceptor.Close()
	})

	s.log.WithField("addr", s.Addr()).Info("listening")
	return g.Wait()
}

// Stop shuts down the worker pool. Callers should cancel the context
// passed to Run first so Run returns before calling Stop.
func (s *Server) Stop() {
	s.workers.Shutdown()
	s.regionMgr.Close()
}

func (s *Server) tickPlayers() {
	now := time.Now()
	for _, conn := range s.acceptor.Conns() {
		conn.Tick(now)
	}
	for _, removed := range s.players.CleanupOffline() {
		s.log.WithField("player", removed.Username).Debug("cleaned up offline session")
	}
}

func (s *Server) tickEntities() {
	s.entities.TickAll()
}

func (s *Server) tickWorldMaintenance() {
	s.world.EvictStale()
}

func (s *Server) autoSave() {
	s.world.SaveAll()
	s.log.Debug("auto-save pass complete")
}
