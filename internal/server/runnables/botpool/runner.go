// Package botpool runs one worker per deployed bot instance and keeps
// the pool reconciled with the persistent registry: new instances are
// started, crashed ones are respawned, and instances with a pending
// restart flag are torn down and relaunched with their fresh script.
package botpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robbyt/go-supervisor/supervisor"

	"github.com/swarmhost/swarmhost/internal/server/finitestate"
	"github.com/swarmhost/swarmhost/internal/store"
	"github.com/swarmhost/swarmhost/internal/transport"
)

// defaultInterval is the pool reconcile tick.
const defaultInterval = time.Second

var (
	_ supervisor.Runnable  = (*Runner)(nil)
	_ supervisor.Stateable = (*Runner)(nil)
)

// Runner supervises the bot instance pool.
type Runner struct {
	st      *store.Store
	factory transport.Factory

	logger   *slog.Logger
	fsm      finitestate.Machine
	interval time.Duration
	idlePoll time.Duration

	runCtx    context.Context
	runCancel context.CancelFunc
	parentCtx context.Context

	mu   sync.Mutex
	pool map[string]*slot
}

// NewRunner creates a pool runner over the instance registry.
func NewRunner(st *store.Store, factory transport.Factory, opts ...Option) (*Runner, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("transport factory is required")
	}
	runner := &Runner{
		st:        st,
		factory:   factory,
		logger:    slog.Default().WithGroup("botpool.Runner"),
		interval:  defaultInterval,
		idlePoll:  defaultIdlePoll,
		parentCtx: context.Background(),
		pool:      make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(runner)
	}

	fsmLogger := runner.logger.WithGroup("fsm")
	machine, err := finitestate.New(fsmLogger.Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	runner.fsm = machine

	return runner, nil
}

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "botpool.Runner"
}

// Run implements the supervisor.Runnable interface
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Debug("Starting Runner")

	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	r.runCtx, r.runCancel = context.WithCancel(ctx)

	r.reconcile(r.runCtx)

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-r.parentCtx.Done():
			r.logger.Debug("Parent context canceled")
			break loop
		case <-r.runCtx.Done():
			r.logger.Debug("Run context canceled")
			break loop
		case <-ticker.C:
			r.reconcile(r.runCtx)
		}
	}

	r.logger.Info("Runner shutting down")

	if r.fsm.GetState() != finitestate.StatusStopping {
		if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
			r.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}

	r.stopAll()

	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

// Stop implements the supervisor.Runnable interface
func (r *Runner) Stop() {
	r.logger.Debug("Stopping Runner")
	if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
		r.logger.Error("Failed to transition to stopping state", "error", err)
	}
	r.runCancel()
}

// reconcile aligns the worker pool with the registry. Each instance is
// handled independently, one broken bot never affects the others.
func (r *Runner) reconcile(ctx context.Context) {
	bots, err := r.st.Bots(ctx)
	if err != nil {
		r.logger.Error("Failed to list instances", "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	known := make(map[string]store.BotInstance, len(bots))
	for _, bot := range bots {
		known[bot.Name] = bot
	}

	// Instances removed from the registry are torn down.
	for name, s := range r.pool {
		if _, ok := known[name]; !ok {
			r.logger.Info("Instance removed from registry, stopping worker", "instance", name)
			s.teardown()
			delete(r.pool, name)
		}
	}

	for _, bot := range bots {
		s, running := r.pool[bot.Name]

		if bot.Restart {
			if running {
				r.logger.Info("Restart requested, stopping worker", "instance", bot.Name)
				s.teardown()
				delete(r.pool, bot.Name)
			}
			if err := r.st.SetRestart(ctx, bot.Name, false); err != nil {
				r.logger.Error("Failed to clear restart flag", "instance", bot.Name, "error", err)
				continue
			}
			fresh, ok, err := r.st.BotByName(ctx, bot.Name)
			if err != nil || !ok {
				r.logger.Error("Failed to reload instance for restart", "instance", bot.Name, "error", err)
				continue
			}
			r.pool[bot.Name] = r.spawn(ctx, fresh)
			continue
		}

		if !running {
			r.pool[bot.Name] = r.spawn(ctx, bot)
			continue
		}

		// Crash recovery: a finished worker is joined, logged and
		// replaced with a fresh one on the next pass of this loop.
		if err, finished := s.finished(); finished {
			if err != nil {
				r.logger.Error("Worker died, respawning", "instance", bot.Name, "error", err)
			} else {
				r.logger.Info("Worker exited, respawning", "instance", bot.Name)
			}
			r.pool[bot.Name] = r.spawn(ctx, bot)
		}
	}
}

func (r *Runner) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range r.pool {
		s.teardown()
		delete(r.pool, name)
	}
}

// Running returns the names of instances with a live worker.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.pool))
	for name, s := range r.pool {
		if _, finished := s.finished(); !finished {
			names = append(names, name)
		}
	}
	return names
}
