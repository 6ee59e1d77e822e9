// Package engine drives the SLUDGE virtual machine one scheduler tick per frame.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zurustar/sludge-vm/pkg/logger"
	"github.com/zurustar/sludge-vm/pkg/vm"
)

// ErrTerminated is returned when the engine is terminated.
var ErrTerminated = errors.New("engine terminated")

// DefaultFrameInterval is used when the game does not set a frame rate.
const DefaultFrameInterval = time.Second / 50

// Machine is what the engine drives. *vm.VM implements it.
type Machine interface {
	Tick() error
	Done() bool
	Err() error
	Stop()
	LiveFunctions() int
	QuitRequested() bool
}

// Engine runs a Machine until its scripts finish, a script quits, a fatal
// error occurs, the timeout passes or Terminate is called.
type Engine struct {
	machine       Machine
	log           *slog.Logger
	timeout       time.Duration
	frameInterval time.Duration
	now           func() time.Time

	startTime  time.Time
	ticks      atomic.Uint64
	terminated atomic.Bool
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithTimeout ends the run after d. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithFrameInterval sets the time between ticks in Run. Zero runs ticks back to back.
func WithFrameInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.frameInterval = d
	}
}

// WithClock replaces time.Now for timeout checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine driving m.
func New(m Machine, opts ...Option) *Engine {
	e := &Engine{
		machine:       m,
		log:           logger.GetLogger(),
		frameInterval: DefaultFrameInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start resets the clock and the termination flag.
func (e *Engine) Start() {
	e.startTime = e.now()
	e.terminated.Store(false)
	if e.timeout > 0 {
		e.log.Info("Timeout set", "timeout", e.timeout)
	}
	e.log.Info("Engine started")
}

// Terminate sets the termination flag and stops the machine.
func (e *Engine) Terminate() {
	if e.terminated.CompareAndSwap(false, true) {
		e.machine.Stop()
		e.log.Info("Engine termination requested")
	}
}

// IsTerminated returns whether the engine has been terminated.
func (e *Engine) IsTerminated() bool {
	return e.terminated.Load()
}

// Ticks returns how many frames Update has run.
func (e *Engine) Ticks() uint64 {
	return e.ticks.Load()
}

// FrameInterval returns the time between ticks.
func (e *Engine) FrameInterval() time.Duration {
	return e.frameInterval
}

// Machine returns the driven machine.
func (e *Engine) Machine() Machine {
	return e.machine
}

// CheckTermination checks if the engine should terminate.
// Returns true if termination is requested or timeout exceeded.
func (e *Engine) CheckTermination() bool {
	if e.terminated.Load() {
		return true
	}
	if e.timeout > 0 {
		if elapsed := e.now().Sub(e.startTime); elapsed >= e.timeout {
			e.log.Info("Timeout exceeded", "elapsed", elapsed)
			e.Terminate()
			return true
		}
	}
	return false
}

// Update runs one scheduler tick.
// It returns ErrTerminated once the run is over, or the fatal script error.
func (e *Engine) Update() error {
	if e.CheckTermination() {
		return ErrTerminated
	}

	e.ticks.Add(1)
	if err := e.machine.Tick(); err != nil {
		e.Terminate()
		if errors.Is(err, vm.ErrStopped) {
			return ErrTerminated
		}
		return err
	}

	if e.machine.Done() {
		switch {
		case e.machine.Err() != nil:
			err := e.machine.Err()
			e.Terminate()
			return err
		case e.machine.QuitRequested():
			e.log.Info("Game quit requested, terminating")
		default:
			e.log.Info("All functions finished, terminating")
		}
		e.Terminate()
		return ErrTerminated
	}

	if e.CheckTermination() {
		return ErrTerminated
	}
	return nil
}

// Run ticks the machine at the frame interval until the run is over or ctx is done.
// A normal end returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.Start()

	var tick <-chan time.Time
	if e.frameInterval > 0 {
		ticker := time.NewTicker(e.frameInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				e.Terminate()
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			e.Terminate()
			return err
		}

		if err := e.Update(); err != nil {
			if errors.Is(err, ErrTerminated) {
				e.log.Info("Engine stopped", "ticks", e.Ticks())
				return nil
			}
			return err
		}
	}
}
