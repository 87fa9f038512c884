package botpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/swarmhost/swarmhost/internal/store"
)

// slot tracks one worker goroutine. The done channel is buffered so
// the goroutine can always deposit its exit status, even when nobody
// is joining yet.
type slot struct {
	name   string
	cancel context.CancelFunc
	done   chan error

	mu     sync.Mutex
	ended  bool
	endErr error
}

// spawn launches a worker for the instance. A panic anywhere in the
// worker is contained in its slot and surfaces as an exit error.
func (r *Runner) spawn(ctx context.Context, bot store.BotInstance) *slot {
	wctx, cancel := context.WithCancel(ctx)
	s := &slot{
		name:   bot.Name,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	w := newWorker(bot, r.st.Instance(bot.Name), r.factory, r.idlePoll,
		r.logger.With("instance", bot.Name))

	r.logger.Info("Starting worker", "instance", bot.Name)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				s.done <- fmt.Errorf("%w: %v", ErrWorkerPanic, rec)
			}
		}()
		s.done <- w.run(wctx)
	}()
	return s
}

// finished reports whether the worker has exited, without blocking.
// The exit status is cached so repeated calls keep answering.
func (s *slot) finished() (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return s.endErr, true
	}
	select {
	case err := <-s.done:
		s.ended, s.endErr = true, err
		return err, true
	default:
		return nil, false
	}
}

// teardown cancels the worker and joins it.
func (s *slot) teardown() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.endErr = <-s.done
	s.ended = true
}
