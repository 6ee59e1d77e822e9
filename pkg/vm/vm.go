// Package vm provides the virtual machine for executing compiled SLUDGE scripts.
// It implements a cooperative execution model with support for:
// - Reference-counted script values held in a collection arena
// - Many concurrently live function instances, each with its own operand stack
// - Timers, freeze levels and cancellation driven by the scheduler tick
// - Built-in functions whose verdicts drive control transfer
package vm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zurustar/sludge-vm/pkg/logger"
)

// Speaker shows dialogue lines for the say and think built-ins.
type Speaker interface {
	// Say displays a line and returns how many ticks the speaking function waits.
	// A negative result makes it wait until ResourceFinished is called.
	Say(objType int32, text string, think bool) int
	// KillSpeech removes every line currently shown.
	KillSpeech()
}

// EventTable maps an object type and event to the user function handling it.
type EventTable interface {
	EventFunction(objType, event int32) (int32, bool)
}

// FunctionNamer is implemented by code sources that carry the user function name table.
type FunctionNamer interface {
	FunctionName(num int) string
}

// VM represents the virtual machine that executes compiled SLUDGE functions.
type VM struct {
	code     CodeSource
	heap     *Heap
	builtins *Builtins
	globals  []Value

	// Scheduler state
	run    []*Function // head first
	alive  int
	nextID uint64
	ticks  uint64

	// Collaborators
	speaker Speaker
	events  EventTable

	// Game state touched by built-ins
	dialogValue int
	frozen      int
	quit        bool
	saveDir     string

	err error

	ctx    context.Context
	cancel context.CancelFunc

	log   *slog.Logger
	trace bool
}

// Option is a functional option for configuring the VM.
type Option func(*VM)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(vm *VM) {
		vm.log = log
	}
}

// WithBuiltins sets the built-in function table.
func WithBuiltins(b *Builtins) Option {
	return func(vm *VM) {
		vm.builtins = b
	}
}

// WithSpeaker sets the dialogue collaborator.
func WithSpeaker(s Speaker) Option {
	return func(vm *VM) {
		vm.speaker = s
	}
}

// WithEvents sets the object event table used by callEvent.
func WithEvents(e EventTable) Option {
	return func(vm *VM) {
		vm.events = e
	}
}

// WithSaveDir sets the directory custom data files are read from and written to.
func WithSaveDir(dir string) Option {
	return func(vm *VM) {
		vm.saveDir = dir
	}
}

// WithDialogValue sets the internal dialog state checked by UNREG.
func WithDialogValue(n int) Option {
	return func(vm *VM) {
		vm.dialogValue = n
	}
}

// New creates a VM reading functions and strings from code, with numGlobals global slots.
func New(code CodeSource, numGlobals int, opts ...Option) *VM {
	ctx, cancel := context.WithCancel(context.Background())

	vm := &VM{
		code:     code,
		heap:     NewHeap(code),
		builtins: NewBuiltins(nil),
		globals:  make([]Value, numGlobals),
		ctx:      ctx,
		cancel:   cancel,
		log:      logger.Channel(logger.ChannelStackMachine),
	}

	for _, opt := range opts {
		opt(vm)
	}
	vm.trace = vm.log.Enabled(ctx, slog.LevelDebug)

	return vm
}

// Start spawns function 0, the game's entry point.
func (vm *VM) Start() error {
	if _, err := vm.Spawn(0, 0, nil, nil, true); err != nil {
		vm.halt(err)
		return err
	}
	return nil
}

// RegisterBuiltinFunction adds or replaces a built-in by name.
func (vm *VM) RegisterBuiltinFunction(name string, arity int, fn BuiltinFunc) {
	vm.builtins.Register(Builtin{Name: name, Arity: arity, Func: fn})
}

// Stop halts the machine; the next Tick reports ErrStopped.
func (vm *VM) Stop() {
	vm.cancel()
}

// Context is cancelled when the machine is stopped.
func (vm *VM) Context() context.Context {
	return vm.ctx
}

// Err returns the fatal error that halted the machine, if any.
func (vm *VM) Err() error {
	return vm.err
}

// Heap returns the collection arena.
func (vm *VM) Heap() *Heap {
	return vm.heap
}

// Builtins returns the built-in function table.
func (vm *VM) Builtins() *Builtins {
	return vm.builtins
}

// Code returns the compiled-data source.
func (vm *VM) Code() CodeSource {
	return vm.code
}

// Speaker returns the dialogue collaborator, or nil.
func (vm *VM) Speaker() Speaker {
	return vm.speaker
}

// Events returns the object event table, or nil.
func (vm *VM) Events() EventTable {
	return vm.events
}

// SaveDir returns the custom data directory.
func (vm *VM) SaveDir() string {
	return vm.saveDir
}

// Logger returns the machine's logger.
func (vm *VM) Logger() *slog.Logger {
	return vm.log
}

// Globals returns the global store. Callers must not keep references to shared values.
func (vm *VM) Globals() []Value {
	return vm.globals
}

// SetGlobal copies v into global slot i.
func (vm *VM) SetGlobal(i int, v Value) error {
	if i < 0 || i >= len(vm.globals) {
		return Errorf(ErrorSlotOutOfRange, "global %d out of range (%d globals)", i, len(vm.globals))
	}
	return vm.heap.Copy(&vm.globals[i], v)
}

// Ticks returns how many scheduler ticks have run.
func (vm *VM) Ticks() uint64 {
	return vm.ticks
}

// LiveFunctions returns the number of function instances not yet finished or aborted.
func (vm *VM) LiveFunctions() int {
	return vm.alive
}

// Functions returns the run list, head first.
func (vm *VM) Functions() []*Function {
	out := make([]*Function, len(vm.run))
	copy(out, vm.run)
	return out
}

// RequestQuit records that a script asked the game to end.
func (vm *VM) RequestQuit() {
	vm.quit = true
}

// QuitRequested reports whether a script asked the game to end.
func (vm *VM) QuitRequested() bool {
	return vm.quit
}

// Done reports whether nothing is left to run.
func (vm *VM) Done() bool {
	return vm.quit || vm.err != nil || vm.alive == 0
}

// FrozenDepth returns how many freeze calls are outstanding.
func (vm *VM) FrozenDepth() int {
	return vm.frozen
}

// KillSpeech clears every dialogue line shown by the speaker.
func (vm *VM) KillSpeech() {
	if vm.speaker != nil {
		vm.speaker.KillSpeech()
	}
}

// FunctionName returns the script name of user function num when the data file carries names.
func (vm *VM) FunctionName(num int) string {
	if n, ok := vm.code.(FunctionNamer); ok {
		return n.FunctionName(num)
	}
	return fmt.Sprintf("function %d", num)
}

func (vm *VM) halt(err error) {
	if vm.err == nil {
		vm.err = err
		vm.log.Error("fatal interpreter error", "error", err)
	}
}
