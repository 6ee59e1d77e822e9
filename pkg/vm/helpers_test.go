package vm

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/zurustar/sludge-vm/pkg/opcode"
)

// testCode is an in-memory CodeSource.
type testCode struct {
	funcs     map[int]*FunctionCode
	strings   []string
	resources []string
	loads     int
}

func (c *testCode) LoadFunction(num int) (*FunctionCode, error) {
	c.loads++
	fc, ok := c.funcs[num]
	if !ok {
		return nil, fmt.Errorf("no function %d", num)
	}
	return fc, nil
}

func (c *testCode) String(index int) (string, error) {
	if index < 0 || index >= len(c.strings) {
		return "", fmt.Errorf("no string %d", index)
	}
	return c.strings[index], nil
}

func (c *testCode) ResourceName(num int32) string {
	if len(c.resources) == 0 {
		return "RESOURCE"
	}
	if int(num) < len(c.resources) {
		return c.resources[num]
	}
	return "Unknown resource"
}

func ins(cmd opcode.Cmd, param int32) opcode.Instruction {
	return opcode.Instruction{Cmd: cmd, Param: param}
}

func fn(args, locals int, lines ...opcode.Instruction) *FunctionCode {
	return &FunctionCode{NumArgs: args, NumLocals: locals, Lines: lines}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestVM builds a VM over funcs with the given number of globals.
func newTestVM(t *testing.T, funcs map[int]*FunctionCode, globals int, opts ...Option) (*VM, *testCode) {
	t.Helper()
	code := &testCode{funcs: funcs}
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(code, globals, opts...), code
}

// startTestVM builds a VM and spawns function 0.
func startTestVM(t *testing.T, funcs map[int]*FunctionCode, globals int, opts ...Option) *VM {
	t.Helper()
	vm, _ := newTestVM(t, funcs, globals, opts...)
	if err := vm.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return vm
}

// intStack builds a Stack of the given integers, first element first.
func intStack(t *testing.T, h *Heap, ns ...int32) Value {
	t.Helper()
	vals := make([]Value, len(ns))
	for i, n := range ns {
		vals[i] = Int(n)
	}
	st, err := h.StackFrom(vals)
	if err != nil {
		t.Fatalf("StackFrom() error = %v", err)
	}
	return st
}

// ints reads the elements of a collection that only holds integers.
func ints(t *testing.T, h *Heap, coll Value) []int32 {
	t.Helper()
	var out []int32
	err := h.Each(coll, func(_ int, e Value) error {
		out = append(out, e.Int)
		return nil
	})
	if err != nil {
		t.Fatalf("Each() error = %v", err)
	}
	return out
}
