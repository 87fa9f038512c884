package botpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/swarmhost/swarmhost/internal/config"
	"github.com/swarmhost/swarmhost/internal/engine"
	"github.com/swarmhost/swarmhost/internal/store"
	"github.com/swarmhost/swarmhost/internal/transport"
)

// worker is the per-instance unit: one script runtime, one platform
// connection, one dispatch loop and one notification loop. All state
// is private to the instance.
type worker struct {
	bot      store.BotInstance
	st       *store.Instance
	factory  transport.Factory
	idlePoll time.Duration
	logger   *slog.Logger

	actor  *engine.Actor
	cfg    *config.RunnerConfig
	client transport.Client
}

func newWorker(bot store.BotInstance, st *store.Instance, factory transport.Factory, idlePoll time.Duration, logger *slog.Logger) *worker {
	return &worker{
		bot:      bot,
		st:       st,
		factory:  factory,
		idlePoll: idlePoll,
		logger:   logger,
	}
}

// run boots the instance and blocks until the context is canceled or
// the instance dies. A non-nil return means the instance should be
// respawned.
func (w *worker) run(parent context.Context) (err error) {
	// Worker-local cancelation: whichever loop dies first releases the
	// other, so run can always join and deposit its exit status.
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	w.actor = engine.New(engine.WithLogger(w.logger.WithGroup("engine")))
	defer w.actor.Close()

	cfg, err := w.actor.InitConfig(w.bot.Script)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}
	w.cfg = cfg
	w.logger.Info("Script loaded", "config_version", cfg.Version)

	client, err := w.factory(w.bot.Token)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	w.client = client
	defer client.Close()

	updates, err := client.Updates(ctx)
	if err != nil {
		return fmt.Errorf("open update stream: %w", err)
	}

	notifyDone := make(chan error, 1)
	go w.notify(ctx, cancel, notifyDone)
	defer func() {
		cancel()
		nerr := <-notifyDone
		if err == nil {
			err = nerr
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("update stream closed")
			}
			if err := w.dispatch(ctx, u); err != nil {
				if errors.Is(err, engine.ErrRuntimeUnavailable) {
					return fmt.Errorf("script runtime lost: %w", err)
				}
				w.logger.Error("Failed to handle update", "error", err)
			}
		}
	}
}

// notify runs the notification loop and contains its panics: a dying
// scheduler cancels the worker and becomes the worker's exit status
// instead of crashing the process.
func (w *worker) notify(ctx context.Context, cancel context.CancelFunc, done chan<- error) {
	defer func() {
		if rec := recover(); rec != nil {
			done <- fmt.Errorf("%w: notification loop: %v", ErrWorkerPanic, rec)
			cancel()
			return
		}
		done <- nil
	}()
	w.notifyLoop(ctx)
}
