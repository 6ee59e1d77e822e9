package vm

// Helpers used by built-in handlers to take their arguments off the
// caller's operand stack. Arguments are popped last-first.

// Top returns the value on top of f's operand stack, borrowed.
func (vm *VM) Top(f *Function) (Value, error) {
	if f.Stack == nil {
		return Null, NewStackUnderflowError("built-in argument")
	}
	return f.Stack.Value, nil
}

// Discard trims n values off f's operand stack.
func (vm *VM) Discard(f *Function, n int) error {
	for ; n > 0; n-- {
		if f.Stack == nil {
			return NewStackUnderflowError("built-in argument")
		}
		vm.heap.Trim(&f.Stack)
	}
	return nil
}

// PopValue removes the top value and hands ownership to the caller,
// who must Release it or store it.
func (vm *VM) PopValue(f *Function) (Value, error) {
	if f.Stack == nil {
		return Null, NewStackUnderflowError("built-in argument")
	}
	n := f.Stack
	f.Stack = n.Next
	return n.Value, nil
}

// PopTyped pops an integer-payload value that must be exactly of type t.
func (vm *VM) PopTyped(f *Function, t Type) (int32, error) {
	top, err := vm.Top(f)
	if err != nil {
		return 0, err
	}
	n, err := IntOf(top, t)
	if err != nil {
		return 0, err
	}
	vm.heap.Trim(&f.Stack)
	return n, nil
}

// PopInt pops an Integer.
func (vm *VM) PopInt(f *Function) (int32, error) {
	return vm.PopTyped(f, TypeInt)
}

// PopText pops any value and returns its text.
func (vm *VM) PopText(f *Function) (string, error) {
	top, err := vm.Top(f)
	if err != nil {
		return "", err
	}
	s, err := vm.heap.Text(top)
	if err != nil {
		return "", err
	}
	vm.heap.Trim(&f.Stack)
	return s, nil
}

// SetReg replaces f's register with v, which the register takes ownership of.
func (vm *VM) SetReg(f *Function, v Value) {
	vm.heap.Release(&f.Reg)
	f.Reg = v
}

// CopyReg copies v into f's register.
func (vm *VM) CopyReg(f *Function, v Value) error {
	return vm.heap.Copy(&f.Reg, v)
}
