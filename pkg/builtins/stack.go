package builtins

import (
	"github.com/zurustar/sludge-vm/pkg/vm"
)

// popStack pops a value that must be a Stack. The caller owns the result.
func popStack(m *vm.VM, f *vm.Function) (vm.Value, error) {
	top, err := m.Top(f)
	if err != nil {
		return vm.Null, err
	}
	if top.Type != vm.TypeStack {
		return vm.Null, vm.NewTypeMismatchError(vm.TypeStack, top.Type)
	}
	return m.PopValue(f)
}

// newStack(...) builds a stack holding its arguments in order.
func newStack(m *vm.VM, f *vm.Function, numParams int) (vm.Verdict, error) {
	h := m.Heap()
	st := h.NewStack()
	for ; numParams > 0; numParams-- {
		top, err := m.Top(f)
		if err == nil {
			err = h.StackPush(st, top)
		}
		if err != nil {
			h.Release(&st)
			return vm.Error, err
		}
		h.Trim(&f.Stack)
	}
	m.SetReg(f, st)
	return vm.Continue, nil
}

// stackSize(coll) works on stacks and fast arrays.
func stackSize(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	coll, err := m.PopValue(f)
	if err != nil {
		return vm.Error, err
	}
	defer m.Heap().Release(&coll)
	if coll.Type != vm.TypeStack && coll.Type != vm.TypeFastArray {
		return vm.Error, vm.NewTypeMismatchError(vm.TypeStack, coll.Type)
	}
	n, err := m.Heap().Len(coll)
	if err != nil {
		return vm.Error, err
	}
	m.SetReg(f, vm.Int(int32(n)))
	return vm.Continue, nil
}

func copyStack(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	coll, err := popStack(m, f)
	if err != nil {
		return vm.Error, err
	}
	defer m.Heap().Release(&coll)
	c, err := m.Heap().CopyStack(coll)
	if err != nil {
		return vm.Error, err
	}
	m.SetReg(f, c)
	return vm.Continue, nil
}

// addToStack pops (stack, value) and hands both to add.
func addToStack(m *vm.VM, f *vm.Function, add func(coll, v vm.Value) error) error {
	h := m.Heap()
	v, err := m.PopValue(f)
	if err != nil {
		return err
	}
	defer h.Release(&v)
	coll, err := popStack(m, f)
	if err != nil {
		return err
	}
	defer h.Release(&coll)
	return add(coll, v)
}

func pushToStack(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	if err := addToStack(m, f, m.Heap().StackPush); err != nil {
		return vm.Error, err
	}
	return vm.Continue, nil
}

func enqueue(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	if err := addToStack(m, f, m.Heap().Enqueue); err != nil {
		return vm.Error, err
	}
	return vm.Continue, nil
}

func deleteFrom(m *vm.VM, f *vm.Function, all bool) (vm.Verdict, error) {
	var n int
	err := addToStack(m, f, func(coll, v vm.Value) error {
		var err error
		if all {
			n, err = m.Heap().DeleteAll(coll, v)
		} else {
			n, err = m.Heap().DeleteFirst(coll, v)
		}
		return err
	})
	if err != nil {
		return vm.Error, err
	}
	m.SetReg(f, vm.Int(int32(n)))
	return vm.Continue, nil
}

func deleteFromStack(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	return deleteFrom(m, f, false)
}

func deleteAllFromStack(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	return deleteFrom(m, f, true)
}

// popFromStack(stack) removes and returns the first element.
func popFromStack(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	coll, err := popStack(m, f)
	if err != nil {
		return vm.Error, err
	}
	defer m.Heap().Release(&coll)
	v, err := m.Heap().PopFront(coll)
	if err != nil {
		return vm.Error, err
	}
	m.SetReg(f, v)
	return vm.Continue, nil
}

func peek(m *vm.VM, f *vm.Function, at func(vm.Value) (vm.Value, error)) (vm.Verdict, error) {
	coll, err := popStack(m, f)
	if err != nil {
		return vm.Error, err
	}
	defer m.Heap().Release(&coll)
	v, err := at(coll)
	if err != nil {
		return vm.Error, err
	}
	// The element is borrowed from coll, so copy it before coll is released.
	if err := m.CopyReg(f, v); err != nil {
		return vm.Error, err
	}
	return vm.Continue, nil
}

func peekStart(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	return peek(m, f, m.Heap().PeekStart)
}

func peekEnd(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	return peek(m, f, m.Heap().PeekEnd)
}

// makeFastArray(size or stack) builds a fast array of Nulls, or a copy of a stack.
func makeFastArray(m *vm.VM, f *vm.Function, _ int) (vm.Verdict, error) {
	h := m.Heap()
	arg, err := m.PopValue(f)
	if err != nil {
		return vm.Error, err
	}
	defer h.Release(&arg)

	var fa vm.Value
	switch arg.Type {
	case vm.TypeStack:
		var vals []vm.Value
		if err := h.Each(arg, func(_ int, e vm.Value) error {
			vals = append(vals, e)
			return nil
		}); err != nil {
			return vm.Error, err
		}
		fa, err = h.FastArrayFrom(vals)
	case vm.TypeInt:
		fa, err = h.NewFastArray(int(arg.Int))
	default:
		return vm.Error, vm.Errorf(vm.ErrorTypeMismatch, "parameter must be a number or a stack, not %s", arg.Type)
	}
	if err != nil {
		return vm.Error, err
	}
	m.SetReg(f, fa)
	return vm.Continue, nil
}
