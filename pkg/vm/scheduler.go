package vm

import (
	"errors"
	"slices"
)

// ErrStopped is returned by Tick after Stop has been called.
var ErrStopped = errors.New("vm: stopped")

// Spawn creates an instance of user function num and puts it at the head of
// the run list. nArgs arguments are moved off *args into locals, last argument
// first. args may be nil when nArgs is zero. On failure neither *args nor the
// run list is changed.
func (vm *VM) Spawn(num, nArgs int, caller *Function, args **Node, returnSomething bool) (*Function, error) {
	code, err := vm.code.LoadFunction(num)
	if err != nil {
		var re *RuntimeError
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, Errorf(ErrorLoadFailed, "loading function %d: %v", num, err)
	}
	if code.NumArgs > code.NumLocals {
		return nil, Errorf(ErrorLoadFailed, "function %d: more arguments than local variable space", num)
	}
	if code.NumArgs != nArgs {
		return nil, Errorf(ErrorArgumentCount, "wrong number of parameters for %s: expected %d, got %d",
			vm.FunctionName(num), code.NumArgs, nArgs)
	}
	if nArgs > 0 && (args == nil || StackSize(*args) < nArgs) {
		return nil, NewStackUnderflowError("function parameters")
	}

	f := &Function{
		Number:          num,
		Code:            code.Lines,
		NumArgs:         code.NumArgs,
		Locals:          make([]Value, code.NumLocals),
		Caller:          caller,
		Unfreezable:     code.Unfreezable,
		returnSomething: returnSomething,
	}
	for i := nArgs - 1; i >= 0; i-- {
		n := *args
		*args = n.Next
		f.Locals[i] = n.Value
	}

	vm.nextID++
	f.ID = vm.nextID
	vm.alive++
	vm.Resume(f)

	vm.log.Debug("started function", "id", f.ID, "function", vm.FunctionName(num), "args", nArgs)
	return f, nil
}

// Suspend takes f off the run list without destroying it.
func (vm *VM) Suspend(f *Function) {
	if !f.scheduled {
		return
	}
	if i := slices.Index(vm.run, f); i >= 0 {
		vm.run = slices.Delete(vm.run, i, i+1)
	}
	f.scheduled = false
}

// Resume puts f back at the head of the run list.
func (vm *VM) Resume(f *Function) {
	if f.dead {
		return
	}
	vm.Suspend(f)
	vm.run = slices.Insert(vm.run, 0, f)
	f.scheduled = true
}

func (vm *VM) destroy(f *Function) {
	vm.Suspend(f)
	vm.heap.Drain(&f.Stack)
	for i := range f.Locals {
		vm.heap.Release(&f.Locals[i])
	}
	f.Locals = nil
	f.Code = nil
	vm.heap.Release(&f.Reg)
	f.dead = true
	vm.alive--
}

// Abort destroys f and then its whole caller chain.
func (vm *VM) Abort(f *Function) {
	for f != nil && !f.dead {
		caller := f.Caller
		vm.log.Debug("aborting function", "id", f.ID, "function", vm.FunctionName(f.Number))
		vm.destroy(f)
		f = caller
	}
}

// Finish destroys f after a normal return. A non-empty operand stack is reported, not fatal.
func (vm *VM) Finish(f *Function) {
	if f.Stack != nil {
		vm.warn(f, Errorf(ErrorNonEmptyStack, "returning from function with non-empty stack (%d values)", StackSize(f.Stack)))
	}
	vm.destroy(f)
}

// Tick runs one scheduler pass over the run list, in list order.
// Instances started or resumed during the pass are first visited on the next tick.
func (vm *VM) Tick() error {
	if vm.err != nil {
		return vm.err
	}
	if vm.ctx.Err() != nil {
		return ErrStopped
	}
	vm.ticks++

	for _, f := range slices.Clone(vm.run) {
		if f.dead || !f.scheduled || f.FreezeLevel > 0 {
			continue
		}
		if f.TimeLeft != 0 {
			// Negative timers wait for ResourceFinished.
			if f.TimeLeft > 0 {
				f.TimeLeft--
			}
			continue
		}
		if f.IsSpeech {
			f.IsSpeech = false
			vm.KillSpeech()
		}
		if err := vm.continueFunction(f); err != nil {
			vm.halt(err)
			return err
		}
	}
	return nil
}

// ResourceFinished releases every instance waiting on an external resource.
func (vm *VM) ResourceFinished() {
	for _, f := range vm.run {
		if f.TimeLeft < 0 {
			f.TimeLeft = 0
		}
	}
}

// Freeze raises the freeze level of every scheduled freezable instance.
func (vm *VM) Freeze() {
	for _, f := range vm.run {
		if f.Unfreezable {
			continue
		}
		f.FreezeLevel++
	}
	vm.frozen++
}

// Unfreeze lowers every non-zero freeze level by one.
func (vm *VM) Unfreeze() {
	for _, f := range vm.run {
		if f.FreezeLevel > 0 {
			f.FreezeLevel--
		}
	}
	if vm.frozen > 0 {
		vm.frozen--
	}
}

// CompleteTimers ends every positive timer.
func (vm *VM) CompleteTimers() {
	for _, f := range vm.run {
		if f.TimeLeft > 0 {
			f.TimeLeft = 0
		}
	}
}

// CancelFunction flags every scheduled instance of function num for cancellation.
// It reports whether self is one of them; self is not flagged.
func (vm *VM) CancelFunction(num int, self *Function) bool {
	killedSelf := false
	for _, f := range vm.run {
		if f.Number != num {
			continue
		}
		if f == self {
			killedSelf = true
		} else {
			f.Cancel = true
		}
	}
	return killedSelf
}

func (vm *VM) warn(f *Function, err *RuntimeError) {
	if f != nil {
		err.Function, err.Line = f.Number, f.PC
	}
	vm.log.Warn(err.Message, "type", err.Type, "function", vm.FunctionName(err.Function), "line", err.Line)
}
