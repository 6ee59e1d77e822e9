package vm

import (
	"errors"
	"fmt"
)

// Verdict tells the interpreter what to do with the calling instance after a built-in returns.
type Verdict uint8

const (
	// Continue resumes with the next instruction.
	Continue Verdict = iota
	// Error aborts the run.
	Error
	// Pause takes the caller off the run list until something resumes it.
	Pause
	// KeepAndPause leaves the caller scheduled; it waits out its timer.
	KeepAndPause
	// AlreadyGone means the handler destroyed or rescheduled the caller itself.
	AlreadyGone
	// CallAFunction calls the user function held in the register, then continues.
	CallAFunction
)

var verdictNames = [...]string{"continue", "error", "pause", "keep-and-pause", "already-gone", "call-a-function"}

func (v Verdict) String() string {
	if int(v) < len(verdictNames) {
		return verdictNames[v]
	}
	return fmt.Sprintf("verdict(%d)", uint8(v))
}

// Variadic marks a built-in that accepts any number of parameters.
const Variadic = -1

// BuiltinFunc is the signature for built-in functions.
// The handler pops its numParams arguments off f's operand stack and may set f.Reg.
// A non-nil error is treated as an Error verdict.
type BuiltinFunc func(vm *VM, f *Function, numParams int) (Verdict, error)

// Builtin is one entry of the built-in table.
type Builtin struct {
	Name  string
	Arity int
	Func  BuiltinFunc
}

// Builtins maps the numeric ids compiled into scripts to handlers.
type Builtins struct {
	byID   []Builtin
	byName map[string]Builtin
}

// NewBuiltins creates a table whose ids follow the order of defs.
func NewBuiltins(defs []Builtin) *Builtins {
	b := &Builtins{byName: make(map[string]Builtin, len(defs))}
	for _, d := range defs {
		b.Register(d)
	}
	return b
}

// Register adds d, replacing an existing entry of the same name in place.
func (b *Builtins) Register(d Builtin) {
	b.byName[d.Name] = d
	for i := range b.byID {
		if b.byID[i].Name == d.Name {
			b.byID[i] = d
			return
		}
	}
	b.byID = append(b.byID, d)
}

// Bind renumbers the table so that id i calls the built-in named names[i].
// Names without a handler stay unknown and fail when called.
func (b *Builtins) Bind(names []string) {
	byID := make([]Builtin, len(names))
	for i, n := range names {
		if d, ok := b.byName[n]; ok {
			byID[i] = d
		} else {
			byID[i] = Builtin{Name: n, Arity: Variadic}
		}
	}
	b.byID = byID
}

// Lookup returns the built-in with the given id.
func (b *Builtins) Lookup(id int) (Builtin, bool) {
	if id < 0 || id >= len(b.byID) || b.byID[id].Func == nil {
		return Builtin{}, false
	}
	return b.byID[id], true
}

// ID returns the id currently bound to name.
func (b *Builtins) ID(name string) (int, bool) {
	for i, d := range b.byID {
		if d.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Len returns the number of ids in the table.
func (b *Builtins) Len() int {
	return len(b.byID)
}

// callBuiltin dispatches built-in id for f with numParams arguments on its stack.
func (vm *VM) callBuiltin(id int32, numParams int, f *Function) (Verdict, error) {
	d, ok := vm.builtins.Lookup(int(id))
	if !ok {
		return Error, Errorf(ErrorUnknownBuiltin, "unknown or unimplemented built-in function %d", id)
	}
	if d.Arity != Variadic && d.Arity != numParams {
		plural := "s"
		if d.Arity == 1 {
			plural = ""
		}
		return Error, Errorf(ErrorArityMismatch, "built-in function %s must have %d parameter%s", d.Name, d.Arity, plural)
	}
	if vm.trace {
		vm.log.Debug("calling built-in", "caller", vm.FunctionName(f.Number), "builtin", d.Name, "params", numParams)
	}

	verdict, err := d.Func(vm, f, numParams)
	if err != nil {
		var re *RuntimeError
		if !errors.As(err, &re) {
			err = Errorf(ErrorBuiltinFailed, "%s: %v", d.Name, err)
		}
		return Error, err
	}
	if verdict == Error {
		return Error, Errorf(ErrorBuiltinFailed, "%s failed", d.Name)
	}
	return verdict, nil
}
