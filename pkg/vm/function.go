package vm

import (
	"github.com/zurustar/sludge-vm/pkg/opcode"
)

// FunctionCode is the compiled body of one user function as read from the data file.
type FunctionCode struct {
	Unfreezable bool
	NumArgs     int
	NumLocals   int
	Lines       []opcode.Instruction
}

// CodeSource is the compiled-data source the machine reads from.
// Each call opens and closes its own slice of the data file.
type CodeSource interface {
	LoadFunction(num int) (*FunctionCode, error)
	String(index int) (string, error)
	ResourceName(num int32) string
}

// Function is one activation of a user function.
type Function struct {
	ID          uint64
	Number      int
	Code        []opcode.Instruction
	NumArgs     int
	Locals      []Value
	Reg         Value
	Stack       *Node
	PC          int
	Caller      *Function
	Unfreezable bool
	FreezeLevel int
	TimeLeft    int
	IsSpeech    bool
	Cancel      bool

	returnSomething bool
	scheduled       bool
	dead            bool
}

// Scheduled reports whether the instance is in the run list.
func (f *Function) Scheduled() bool {
	return f.scheduled
}

// Dead reports whether the instance has been finished or aborted.
func (f *Function) Dead() bool {
	return f.dead
}

// StackDepth returns the number of values on the operand stack.
func (f *Function) StackDepth() int {
	return StackSize(f.Stack)
}

// Current returns the instruction at the program counter.
func (f *Function) Current() (opcode.Instruction, bool) {
	if f.PC < 0 || f.PC >= len(f.Code) {
		return opcode.Instruction{}, false
	}
	return f.Code[f.PC], true
}
