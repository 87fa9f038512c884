// Package engine hosts bot scripts on a yaegi interpreter. The
// interpreter is not goroutine-safe, so every evaluation and every
// script-function call is funneled through a single worker goroutine
// owned by an Actor; function handles handed out to the rest of the
// host stay valid and callable from any goroutine.
package engine

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/swarmhost/swarmhost/internal/config"
	"github.com/swarmhost/swarmhost/internal/provider"
)

// Actor owns one interpreter on a dedicated goroutine. Callers submit
// work through roundTrip; the mutex enforces one outstanding request
// at a time, so replies can never be claimed by the wrong caller.
type Actor struct {
	logger *slog.Logger

	jobs chan *job
	stop chan struct{}
	dead chan struct{}

	mu        sync.Mutex
	closeOnce sync.Once
}

type job struct {
	run  func(i *interp.Interpreter)
	done chan struct{}
}

// Option configures an Actor.
type Option func(*Actor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Actor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLogHandler sets the logger from a handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(a *Actor) {
		if handler != nil {
			a.logger = slog.New(handler)
		}
	}
}

// New starts an actor with a fresh interpreter.
func New(opts ...Option) *Actor {
	a := &Actor{
		logger: slog.Default().WithGroup("engine"),
		jobs:   make(chan *job),
		stop:   make(chan struct{}),
		dead:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.work()
	return a
}

// work is the single goroutine allowed to touch the interpreter. A
// panic escaping a job poisons the actor: the dead channel closes and
// every in-flight and future call fails with ErrRuntimeUnavailable.
func (a *Actor) work() {
	runtime.LockOSThread()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("script runtime crashed", "panic", r)
		}
		close(a.dead)
	}()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		a.logger.Error("script runtime failed to load stdlib", "error", err)
		return
	}

	for {
		select {
		case j := <-a.jobs:
			j.run(i)
			close(j.done)
		case <-a.stop:
			return
		}
	}
}

// roundTrip runs fn on the worker goroutine and waits for the result.
func (a *Actor) roundTrip(fn func(i *interp.Interpreter) (provider.Value, error)) (provider.Value, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		res provider.Value
		err error
	)
	j := &job{
		done: make(chan struct{}),
		run: func(i *interp.Interpreter) {
			res, err = fn(i)
		},
	}

	select {
	case a.jobs <- j:
	case <-a.dead:
		return nil, ErrRuntimeUnavailable
	}
	select {
	case <-j.done:
		return res, err
	case <-a.dead:
		return nil, ErrRuntimeUnavailable
	}
}

// InitConfig evaluates a bot script and decodes the Config value it
// declares. Implements config.Provider.
func (a *Actor) InitConfig(source string) (*config.RunnerConfig, error) {
	raw, err := a.roundTrip(func(i *interp.Interpreter) (val provider.Value, err error) {
		defer recoverScript(&err)
		if _, err := i.Eval(source); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrScript, err)
		}
		v, err := i.Eval("main.Config")
		if err != nil {
			return nil, fmt.Errorf("%w: script declares no Config: %v", ErrScript, err)
		}
		return a.toValue(v), nil
	})
	if err != nil {
		return nil, err
	}
	return config.Decode(raw, a.logger)
}

// Alive reports whether the runtime can still take calls.
func (a *Actor) Alive() bool {
	select {
	case <-a.dead:
		return false
	default:
		return true
	}
}

// Close shuts the worker down and waits for it to exit. Safe to call
// more than once and after a crash.
func (a *Actor) Close() {
	a.closeOnce.Do(func() {
		close(a.stop)
	})
	<-a.dead
}

// recoverScript converts a panic raised by interpreted code into an
// ErrScript so one misbehaving script call cannot poison the actor.
func recoverScript(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: panic: %v", ErrScript, r)
	}
}
