package builtins

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/zurustar/sludge-vm/pkg/opcode"
	"github.com/zurustar/sludge-vm/pkg/vm"
)

type testCode map[int]*vm.FunctionCode

func (c testCode) LoadFunction(num int) (*vm.FunctionCode, error) {
	fc, ok := c[num]
	if !ok {
		return nil, fmt.Errorf("no function %d", num)
	}
	return fc, nil
}

func (c testCode) String(index int) (string, error) {
	return fmt.Sprintf("string %d", index), nil
}

func (c testCode) ResourceName(num int32) string {
	return fmt.Sprintf("resource %d", num)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func returns() *vm.FunctionCode {
	return &vm.FunctionCode{Lines: []opcode.Instruction{{Cmd: opcode.Return}}}
}

// newMachine starts function 0 and returns it as the calling instance.
// Functions 1 and 2 exist for spawning.
func newMachine(t *testing.T, opts ...vm.Option) (*vm.VM, *vm.Function) {
	t.Helper()
	code := testCode{0: returns(), 1: returns(), 2: returns()}
	opts = append([]vm.Option{vm.WithLogger(quietLogger()), vm.WithBuiltins(Table())}, opts...)
	m := vm.New(code, 2, opts...)
	if err := m.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	return m, m.Functions()[0]
}

// push places args on f's operand stack as a script would, first argument deepest.
func push(t *testing.T, m *vm.VM, f *vm.Function, args ...vm.Value) {
	t.Helper()
	for _, a := range args {
		if err := m.Heap().Push(a, &f.Stack); err != nil {
			t.Fatalf("Push() failed: %v", err)
		}
	}
}

// call runs the named built-in with args through the machine's table.
func call(t *testing.T, m *vm.VM, f *vm.Function, name string, args ...vm.Value) (vm.Verdict, error) {
	t.Helper()
	id, ok := m.Builtins().ID(name)
	if !ok {
		t.Fatalf("no built-in %q", name)
	}
	d, _ := m.Builtins().Lookup(id)
	push(t, m, f, args...)
	return d.Func(m, f, len(args))
}

// mustCall is call for built-ins that are expected to continue.
func mustCall(t *testing.T, m *vm.VM, f *vm.Function, name string, args ...vm.Value) {
	t.Helper()
	verdict, err := call(t, m, f, name, args...)
	if err != nil || verdict != vm.Continue {
		t.Fatalf("%s() = %v, %v; want continue", name, verdict, err)
	}
	if f.Stack != nil {
		t.Fatalf("%s() left %d values on the stack", name, f.StackDepth())
	}
}

func ints(t *testing.T, m *vm.VM, coll vm.Value) []int32 {
	t.Helper()
	var out []int32
	if err := m.Heap().Each(coll, func(_ int, e vm.Value) error {
		out = append(out, e.Int)
		return nil
	}); err != nil {
		t.Fatalf("Each() failed: %v", err)
	}
	return out
}

func intStack(t *testing.T, m *vm.VM, ns ...int32) vm.Value {
	t.Helper()
	vals := make([]vm.Value, len(ns))
	for i, n := range ns {
		vals[i] = vm.Int(n)
	}
	st, err := m.Heap().StackFrom(vals)
	if err != nil {
		t.Fatal(err)
	}
	return st
}
