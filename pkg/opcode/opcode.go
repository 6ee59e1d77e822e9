// Package opcode defines the instruction set for the SLUDGE virtual machine.
// This package is the foundation that both the data file reader and the VM depend on.
// The data file stores Instruction sequences, and the VM executes them.
package opcode

import "fmt"

// Cmd represents an instruction command code.
// The numeric values are the ones stored in compiled game files and must not change.
type Cmd byte

// Instruction command codes for all supported operations.
const (
	// Unknown is never emitted by the compiler.
	Unknown Cmd = iota

	// Return finishes the current function, handing the register to the caller
	// when the function was called for its value.
	Return

	// Branch jumps unconditionally to Param.
	Branch

	// BranchIfZero jumps to Param when the register is false.
	BranchIfZero

	// SetGlobal copies the register into globals[Param].
	SetGlobal

	// SetLocal copies the register into locals[Param].
	SetLocal

	// LoadGlobal copies globals[Param] into the register.
	LoadGlobal

	// LoadLocal copies locals[Param] into the register.
	LoadLocal

	// Plus, Minus, Mult, Divide, And, Or, Equals, NotEq and Modulus pop the
	// left operand off the operand stack and use the register as the right one.
	Plus
	Minus
	Mult
	Divide
	And
	Or
	Equals
	NotEq
	Modulus

	// LoadValue loads the integer Param into the register.
	LoadValue

	// LoadBuilt loads built-in function Param into the register.
	LoadBuilt

	// LoadFunc loads user function Param into the register.
	LoadFunc

	// CallIt calls the register with Param arguments taken off the operand stack.
	CallIt

	// LoadString resolves string table entry Param into the register.
	LoadString

	// LoadFile loads resource number Param into the register.
	LoadFile

	// LoadObjType loads object type Param into the register.
	LoadObjType

	// Not negates the truth of the register.
	Not

	// LoadNull clears the register.
	LoadNull

	// StackPush copies the register onto the operand stack.
	StackPush

	LessThan
	MoreThan

	// Negative negates the integer in the register.
	Negative

	// Unreg is a registration check left over in old games.
	Unreg

	LessEqual
	MoreEqual

	IncrementLocal
	DecrementLocal
	IncrementGlobal
	DecrementGlobal

	// IndexSet stores the second stack entry into the collection on top of
	// the stack at the index held in the register.
	IndexSet

	// IndexGet loads an element of the collection on top of the stack.
	IndexGet

	IncrementIndex
	DecrementIndex

	// QuickPush moves the register onto the operand stack, leaving it null.
	QuickPush

	numCmds
)

var names = [numCmds]string{
	Unknown:         "UNKNOWN",
	Return:          "RETURN",
	Branch:          "BRANCH",
	BranchIfZero:    "BR_ZERO",
	SetGlobal:       "SET_GLOBAL",
	SetLocal:        "SET_LOCAL",
	LoadGlobal:      "LOAD_GLOBAL",
	LoadLocal:       "LOAD_LOCAL",
	Plus:            "PLUS",
	Minus:           "MINUS",
	Mult:            "MULT",
	Divide:          "DIVIDE",
	And:             "AND",
	Or:              "OR",
	Equals:          "EQUALS",
	NotEq:           "NOT_EQ",
	Modulus:         "MODULUS",
	LoadValue:       "LOAD_VALUE",
	LoadBuilt:       "LOAD_BUILT",
	LoadFunc:        "LOAD_FUNC",
	CallIt:          "CALLIT",
	LoadString:      "LOAD_STRING",
	LoadFile:        "LOAD_FILE",
	LoadObjType:     "LOAD_OBJ_TYPE",
	Not:             "NOT",
	LoadNull:        "LOAD_NULL",
	StackPush:       "STACK_PUSH",
	LessThan:        "LESS_THAN",
	MoreThan:        "MORE_THAN",
	Negative:        "NEGATIVE",
	Unreg:           "UNREG",
	LessEqual:       "LESS_EQUAL",
	MoreEqual:       "MORE_EQUAL",
	IncrementLocal:  "INCREMENT_LOCAL",
	DecrementLocal:  "DECREMENT_LOCAL",
	IncrementGlobal: "INCREMENT_GLOBAL",
	DecrementGlobal: "DECREMENT_GLOBAL",
	IndexSet:        "INDEXSET",
	IndexGet:        "INDEXGET",
	IncrementIndex:  "INCREMENT_INDEX",
	DecrementIndex:  "DECREMENT_INDEX",
	QuickPush:       "QUICK_PUSH",
}

// Valid reports whether c is a command the VM knows how to execute.
func (c Cmd) Valid() bool {
	return c > Unknown && c < numCmds
}

// String returns the mnemonic used in disassembly and log output.
func (c Cmd) String() string {
	if c < numCmds {
		return names[c]
	}
	return fmt.Sprintf("CMD(%d)", byte(c))
}

// Instruction is a single compiled instruction: a command and its 16-bit operand.
type Instruction struct {
	Cmd   Cmd
	Param int32
}

// String formats the instruction the way the step console prints it.
func (i Instruction) String() string {
	return fmt.Sprintf("%-16s %d", i.Cmd, i.Param)
}
