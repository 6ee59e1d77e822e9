package vm

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/zurustar/sludge-vm/pkg/opcode"
)

func TestProperty_SpawnFailureLeavesCallerStack(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("wrong argument count never touches the caller", prop.ForAll(
		func(depth, expected, given int) bool {
			if expected == given {
				given++
			}
			vm, _ := newTestVM(t, map[int]*FunctionCode{
				0: fn(0, 0, ins(opcode.Return, 0)),
				1: fn(expected, expected, ins(opcode.Return, 0)),
			}, 0)
			if vm.Start() != nil {
				return false
			}
			caller := vm.Functions()[0]
			for i := 0; i < depth; i++ {
				if vm.Heap().Push(Int(int32(i)), &caller.Stack) != nil {
					return false
				}
			}
			top := caller.Stack

			_, err := vm.Spawn(1, given, caller, &caller.Stack, true)
			return err != nil &&
				caller.Stack == top &&
				caller.StackDepth() == depth &&
				len(vm.Functions()) == 1 &&
				vm.LiveFunctions() == 1
		},
		gen.IntRange(0, 6),
		gen.IntRange(0, 4),
		gen.IntRange(0, 4),
	))

	properties.Property("a matching spawn moves arguments in order", prop.ForAll(
		func(args []int32) bool {
			n := len(args)
			vm, _ := newTestVM(t, map[int]*FunctionCode{1: fn(n, n+1, ins(opcode.Return, 0))}, 0)
			var stack *Node
			for _, a := range args {
				if vm.Heap().Push(Int(a), &stack) != nil {
					return false
				}
			}
			f, err := vm.Spawn(1, n, nil, &stack, true)
			if err != nil || stack != nil {
				return false
			}
			for i, a := range args {
				if f.Locals[i] != Int(a) {
					return false
				}
			}
			return f.Locals[n].IsNull()
		},
		gen.SliceOfN(5, gen.Int32()),
	))

	properties.TestingRun(t)
}

func TestProperty_TimerSkipsExactlyN(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("a timer of n skips exactly n ticks", prop.ForAll(
		func(n int32) bool {
			vm, _ := newTestVM(t, map[int]*FunctionCode{0: fn(0, 0, append(callWait(n),
				ins(opcode.IncrementGlobal, 0),
				ins(opcode.Return, 0),
			)...)}, 1, WithBuiltins(testBuiltins()))
			_ = vm.SetGlobal(0, Int(0))
			if vm.Start() != nil || vm.Tick() != nil {
				return false
			}
			for i := int32(0); i < n; i++ {
				if vm.Tick() != nil || vm.Globals()[0] != Int(0) {
					return false
				}
			}
			return vm.Tick() == nil && vm.Globals()[0] == Int(1)
		},
		gen.Int32Range(0, 20),
	))

	properties.TestingRun(t)
}
