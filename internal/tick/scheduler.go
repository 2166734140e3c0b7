// Package tick implements the 20Hz server loop from spec.md §4.9: a fixed
// 50ms tick driving player and entity updates, a slower world auto-persist
// cadence, and continuous TPS sampling, with a separate auto-save thread
// coordinated through golang.org/x/sync/errgroup.
package tick

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tholin/craftd/internal/perf"
)

// Rate is the target tick rate (spec.md §4.9).
const Rate = 20

// Interval is the nominal duration of one tick (50ms at 20Hz).
const Interval = time.Second / Rate

// worldSaveEveryTicks is how often, in ticks, the world save hook runs
// (spec.md §4.9: "world tick/auto-persist every 20 ticks" — once a second,
// independent of the configured auto-save interval used by the slower
// full-world flush).
const worldSaveEveryTicks = 20

// Hooks are the callbacks the scheduler drives each cycle. Any may be nil.
type Hooks struct {
	// TickPlayers runs once per tick: movement, keep-alive, view updates.
	TickPlayers func()
	// TickEntities runs once per tick: kinematics and lifecycle.
	TickEntities func()
	// WorldMaintenance runs every worldSaveEveryTicks ticks: stale chunk
	// eviction and dirty-chunk persistence.
	WorldMaintenance func()
	// AutoSave runs on its own independent timer (config's
	// auto_save_interval), not gated by the tick counter.
	AutoSave func()
}

// Scheduler drives the fixed-rate game loop and the independent auto-save
// timer as two goroutines under one errgroup, so the context's cancellation
// brings both down together. A panicking hook is recovered and logged, and
// its loop keeps running.
type Scheduler struct {
	hooks           Hooks
	perf            *perf.Monitor
	log             *logrus.Entry
	autoSaveInterval time.Duration

	tickCount uint64
}

// New builds a Scheduler. autoSaveInterval <= 0 disables the auto-save loop.
func New(hooks Hooks, mon *perf.Monitor, log *logrus.Entry, autoSaveInterval time.Duration) *Scheduler {
	return &Scheduler{hooks: hooks, perf: mon, log: log, autoSaveInterval: autoSaveInterval}
}

// Run blocks until ctx is cancelled, running the tick loop and the
// auto-save loop concurrently. A hook panic does not end Run: recoverTick
// logs it and the loop continues with the next cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.runTickLoop(ctx) })
	if s.autoSaveInterval > 0 && s.hooks.AutoSave != nil {
		g.Go(func() error { return s.runAutoSaveLoop(ctx) })
	}

	return g.Wait()
}

func (s *Scheduler) runTickLoop(ctx context.Context) error {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case start := <-ticker.C:
			s.runOneTick()
			if s.perf != nil {
				elapsed := time.Since(start)
				s.perf.RecordTick(float64(elapsed.Microseconds()))
			}
			s.sleepToDeadline(start)
		}
	}
}

// sleepToDeadline accounts for tick work that finished inside the same
// interval; time.Ticker already self-corrects for drift, so this is a
// no-op placeholder kept for symmetry with spec.md §4.9's described loop
// shape (measure, work, sleep-to-deadline).
func (s *Scheduler) sleepToDeadline(time.Time) {}

func (s *Scheduler) runOneTick() {
	defer s.recoverTick()

	s.tickCount++
	if s.hooks.TickPlayers != nil {
		s.hooks.TickPlayers()
	}
	if s.hooks.TickEntities != nil {
		s.hooks.TickEntities()
	}
	if s.tickCount%worldSaveEveryTicks == 0 && s.hooks.WorldMaintenance != nil {
		s.hooks.WorldMaintenance()
	}
}

func (s *Scheduler) recoverTick() {
	if r := recover(); r != nil && s.log != nil {
		s.log.WithField("panic", r).Error("tick panicked, continuing")
	}
}

func (s *Scheduler) runAutoSaveLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.autoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			func() {
				defer s.recoverTick()
				s.hooks.AutoSave()
			}()
		}
	}
}

// TickCount returns the number of ticks run so far.
func (s *Scheduler) TickCount() uint64 { return s.tickCount }
