package vm

import (
	"errors"

	"github.com/zurustar/sludge-vm/pkg/opcode"
)

type transferKind uint8

const (
	transferNext   transferKind = iota // run the next instruction of the same instance
	transferJump                       // the instruction set the program counter itself
	transferEnter                      // continue with a freshly started callee
	transferReturn                     // continue with the caller after its call
	transferPause                      // step past the call and leave the loop
	transferLeave                      // leave the loop without touching the instance
)

// transfer is what one instruction tells the driver loop to do next.
type transfer struct {
	kind transferKind
	to   *Function
}

var (
	next  = transfer{kind: transferNext}
	jump  = transfer{kind: transferJump}
	pause = transfer{kind: transferPause}
	leave = transfer{kind: transferLeave}
)

// continueFunction runs f until it pauses, returns without a caller, or fails.
// Calls and returns between user functions are followed inline.
func (vm *VM) continueFunction(f *Function) error {
	if f.Cancel {
		vm.Abort(f)
		return nil
	}

	for {
		in, ok := f.Current()
		if !ok {
			return vm.located(f, Errorf(ErrorPCOutOfRange, "ran off the end of the code (line %d of %d)", f.PC, len(f.Code)))
		}
		if vm.trace {
			vm.log.Debug("exec", "function", vm.FunctionName(f.Number), "line", f.PC, "cmd", in.Cmd, "param", in.Param)
		}

		t, err := vm.step(f, in)
		if err != nil {
			return vm.located(f, err)
		}

		switch t.kind {
		case transferNext:
			f.PC++
		case transferJump:
		case transferEnter:
			f = t.to
		case transferReturn:
			f = t.to
			f.PC++
		case transferPause:
			f.PC++
			return nil
		case transferLeave:
			return nil
		}
	}
}

// located fills in where a runtime error happened.
func (vm *VM) located(f *Function, err error) error {
	var re *RuntimeError
	if !errors.As(err, &re) {
		re = NewRuntimeError(ErrorBuiltinFailed, err.Error())
	}
	if re.Function < 0 {
		re.Function, re.Line = f.Number, f.PC
		if _, ok := vm.code.(FunctionNamer); ok {
			re.Name = vm.FunctionName(f.Number)
		}
	}
	return re
}

func (vm *VM) local(f *Function, i int32) (*Value, error) {
	if i < 0 || int(i) >= len(f.Locals) {
		return nil, Errorf(ErrorSlotOutOfRange, "local %d out of range (%d locals)", i, len(f.Locals))
	}
	return &f.Locals[i], nil
}

func (vm *VM) global(i int32) (*Value, error) {
	if i < 0 || int(i) >= len(vm.globals) {
		return nil, Errorf(ErrorSlotOutOfRange, "global %d out of range (%d globals)", i, len(vm.globals))
	}
	return &vm.globals[i], nil
}

func (vm *VM) slotFor(f *Function, cmd opcode.Cmd, i int32) (*Value, error) {
	switch cmd {
	case opcode.SetLocal, opcode.LoadLocal, opcode.IncrementLocal, opcode.DecrementLocal:
		return vm.local(f, i)
	default:
		return vm.global(i)
	}
}

func (vm *VM) step(f *Function, in opcode.Instruction) (transfer, error) {
	h := vm.heap
	param := in.Param

	switch in.Cmd {
	case opcode.Return:
		caller := f.Caller
		if caller == nil {
			vm.Finish(f)
			return leave, nil
		}
		if f.returnSomething {
			if err := h.Copy(&caller.Reg, f.Reg); err != nil {
				return next, err
			}
		}
		vm.Finish(f)
		vm.Resume(caller)
		return transfer{kind: transferReturn, to: caller}, nil

	case opcode.CallIt:
		return vm.callIt(f, int(param))

	case opcode.LoadNull:
		vm.SetReg(f, Null)
	case opcode.LoadValue:
		vm.SetReg(f, Int(param))
	case opcode.LoadFile:
		vm.SetReg(f, Typed(TypeFile, param))
	case opcode.LoadFunc:
		vm.SetReg(f, Typed(TypeFunc, param))
	case opcode.LoadBuilt:
		vm.SetReg(f, Typed(TypeBuiltin, param))
	case opcode.LoadObjType:
		vm.SetReg(f, Typed(TypeObjType, param))

	case opcode.LoadString:
		s, err := vm.code.String(int(param))
		if err != nil {
			return next, Errorf(ErrorStringLookup, "string %d: %v", param, err)
		}
		vm.SetReg(f, String(s))

	case opcode.LoadLocal, opcode.LoadGlobal:
		src, err := vm.slotFor(f, in.Cmd, param)
		if err != nil {
			return next, err
		}
		if err := h.Copy(&f.Reg, *src); err != nil {
			return next, err
		}

	case opcode.SetLocal, opcode.SetGlobal:
		dst, err := vm.slotFor(f, in.Cmd, param)
		if err != nil {
			return next, err
		}
		if err := h.Copy(dst, f.Reg); err != nil {
			return next, err
		}

	case opcode.IncrementLocal, opcode.DecrementLocal, opcode.IncrementGlobal, opcode.DecrementGlobal:
		slot, err := vm.slotFor(f, in.Cmd, param)
		if err != nil {
			return next, err
		}
		n, err := IntOf(*slot, TypeInt)
		if err != nil {
			return next, err
		}
		vm.SetReg(f, Int(n))
		if in.Cmd == opcode.IncrementLocal || in.Cmd == opcode.IncrementGlobal {
			*slot = Int(n + 1)
		} else {
			*slot = Int(n - 1)
		}

	case opcode.StackPush:
		if err := h.Push(f.Reg, &f.Stack); err != nil {
			return next, err
		}
	case opcode.QuickPush:
		PushQuick(&f.Reg, &f.Stack)

	case opcode.Not:
		b, err := h.Bool(f.Reg)
		if err != nil {
			return next, err
		}
		vm.SetReg(f, Bool(!b))

	case opcode.BranchIfZero:
		b, err := h.Bool(f.Reg)
		if err != nil {
			return next, err
		}
		if !b {
			f.PC = int(param)
			return jump, nil
		}
	case opcode.Branch:
		f.PC = int(param)
		return jump, nil

	case opcode.Negative:
		n, err := IntOf(f.Reg, TypeInt)
		if err != nil {
			return next, err
		}
		vm.SetReg(f, Int(-n))

	case opcode.And, opcode.Or:
		if f.Stack == nil {
			return next, NewStackUnderflowError(in.Cmd.String())
		}
		a, err := h.Bool(f.Reg)
		if err != nil {
			return next, err
		}
		b, err := h.Bool(f.Stack.Value)
		if err != nil {
			return next, err
		}
		h.Trim(&f.Stack)
		if in.Cmd == opcode.And {
			vm.SetReg(f, Bool(a && b))
		} else {
			vm.SetReg(f, Bool(a || b))
		}

	case opcode.Plus, opcode.Minus, opcode.Mult, opcode.Divide, opcode.Modulus,
		opcode.Equals, opcode.NotEq,
		opcode.LessThan, opcode.MoreThan, opcode.LessEqual, opcode.MoreEqual:
		if f.Stack == nil {
			return next, NewStackUnderflowError(in.Cmd.String())
		}
		if err := vm.binary(f, in.Cmd); err != nil {
			return next, err
		}

	case opcode.IndexGet, opcode.IncrementIndex, opcode.DecrementIndex:
		if err := vm.indexGet(f, in.Cmd); err != nil {
			return next, err
		}
	case opcode.IndexSet:
		if err := vm.indexSet(f); err != nil {
			return next, err
		}

	case opcode.Unreg:
		if vm.dialogValue != 1 {
			vm.warn(f, NewRuntimeError(ErrorProtocol, "registration check reached outside dialog state"))
		}

	default:
		return next, Errorf(ErrorUnknownOpcode, "unknown SLUDGE machine code %d", byte(in.Cmd))
	}
	return next, nil
}

// binary pops the left operand and combines it with the register.
func (vm *VM) binary(f *Function, cmd opcode.Cmd) error {
	h := vm.heap
	left := f.Stack.Value

	switch cmd {
	case opcode.Plus:
		sum, err := h.Add(left, f.Reg)
		if err != nil {
			return err
		}
		h.Trim(&f.Stack)
		vm.SetReg(f, sum)
		return nil
	case opcode.Equals, opcode.NotEq:
		eq := Equals(left, f.Reg)
		h.Trim(&f.Stack)
		vm.SetReg(f, Bool(eq == (cmd == opcode.Equals)))
		return nil
	}

	a, err := IntOf(left, TypeInt)
	if err != nil {
		return err
	}
	b, err := IntOf(f.Reg, TypeInt)
	if err != nil {
		return err
	}
	if b == 0 && (cmd == opcode.Divide || cmd == opcode.Modulus) {
		return NewDivisionByZeroError()
	}
	h.Trim(&f.Stack)

	var r Value
	switch cmd {
	case opcode.Minus:
		r = Int(a - b)
	case opcode.Mult:
		r = Int(a * b)
	case opcode.Divide:
		r = Int(a / b)
	case opcode.Modulus:
		r = Int(a % b)
	case opcode.LessThan:
		r = Bool(a < b)
	case opcode.MoreThan:
		r = Bool(a > b)
	case opcode.LessEqual:
		r = Bool(a <= b)
	case opcode.MoreEqual:
		r = Bool(a >= b)
	}
	vm.SetReg(f, r)
	return nil
}

// indexGet reads, or post-increments/decrements, coll[reg] where coll is on top of the stack.
// The element is used before the collection is popped, since the pop may free it.
func (vm *VM) indexGet(f *Function, cmd opcode.Cmd) error {
	h := vm.heap
	if f.Stack == nil {
		return NewStackUnderflowError(cmd.String())
	}
	coll := f.Stack.Value

	switch coll.Type {
	case TypeNull:
		if cmd != opcode.IndexGet {
			return NewRuntimeError(ErrorIndexUndefined, "tried to increment/decrement index of an undefined variable")
		}
		vm.SetReg(f, Null)
		h.Trim(&f.Stack)
		return nil

	case TypeStack, TypeFastArray:
		idx, err := IntOf(f.Reg, TypeInt)
		if err != nil {
			return err
		}
		e, err := h.Element(coll, idx)
		if err != nil {
			return err
		}
		switch cmd {
		case opcode.IncrementIndex, opcode.DecrementIndex:
			n, err := IntOf(*e, TypeInt)
			if err != nil {
				return err
			}
			vm.SetReg(f, Int(n))
			if cmd == opcode.IncrementIndex {
				*e = Int(n + 1)
			} else {
				*e = Int(n - 1)
			}
		default:
			if err := h.Copy(&f.Reg, *e); err != nil {
				return err
			}
		}
		h.Trim(&f.Stack)
		return nil

	default:
		return Errorf(ErrorIndexNonStack, "tried to index a non-stack variable (%s)", coll.Type)
	}
}

// indexSet stores the second stack value into coll[reg] and pops both.
func (vm *VM) indexSet(f *Function) error {
	h := vm.heap
	if f.Stack == nil || f.Stack.Next == nil {
		return NewStackUnderflowError(opcode.IndexSet.String())
	}
	coll := f.Stack.Value
	if coll.Type != TypeStack && coll.Type != TypeFastArray {
		return Errorf(ErrorIndexNonStack, "tried to index a non-stack variable (%s)", coll.Type)
	}
	idx, err := IntOf(f.Reg, TypeInt)
	if err != nil {
		return err
	}
	e, err := h.Element(coll, idx)
	if err != nil {
		return err
	}
	if err := h.Copy(e, f.Stack.Next.Value); err != nil {
		return err
	}
	h.Trim(&f.Stack)
	h.Trim(&f.Stack)
	return nil
}

// callIt calls the function or built-in held in the register with n arguments.
func (vm *VM) callIt(f *Function, n int) (transfer, error) {
	switch f.Reg.Type {
	case TypeFunc:
		callee, err := vm.Spawn(int(f.Reg.Int), n, f, &f.Stack, true)
		if err != nil {
			return next, err
		}
		vm.Suspend(f)
		return transfer{kind: transferEnter, to: callee}, nil

	case TypeBuiltin:
		verdict, err := vm.callBuiltin(f.Reg.Int, n, f)
		if err != nil {
			return next, err
		}
		switch verdict {
		case Pause:
			vm.Suspend(f)
			return pause, nil
		case KeepAndPause:
			return pause, nil
		case AlreadyGone:
			return leave, nil
		case CallAFunction:
			num, err := IntOf(f.Reg, TypeFunc)
			if err != nil {
				return next, err
			}
			vm.SetReg(f, Int(1))
			callee, err := vm.Spawn(int(num), 0, f, nil, false)
			if err != nil {
				return next, err
			}
			vm.Suspend(f)
			return transfer{kind: transferEnter, to: callee}, nil
		default:
			return next, nil
		}

	default:
		return next, Errorf(ErrorCallNonFunction, "call of non-function (%s)", f.Reg.Type)
	}
}
