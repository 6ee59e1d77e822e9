package vm

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of runtime error.
type ErrorType string

const (
	// Fatal errors - the run stops
	ErrorTypeMismatch    ErrorType = "TYPE_MISMATCH"
	ErrorUnknownOpcode   ErrorType = "UNKNOWN_OPCODE"
	ErrorCallNonFunction ErrorType = "CALL_NON_FUNCTION"
	ErrorStackUnderflow  ErrorType = "STACK_UNDERFLOW"
	ErrorArityMismatch   ErrorType = "ARITY_MISMATCH"
	ErrorArgumentCount   ErrorType = "ARGUMENT_COUNT"
	ErrorUnknownBuiltin  ErrorType = "UNKNOWN_BUILTIN"
	ErrorBuiltinFailed   ErrorType = "BUILTIN_FAILED"
	ErrorLoadFailed      ErrorType = "LOAD_FAILED"
	ErrorStringLookup    ErrorType = "STRING_LOOKUP"
	ErrorDivisionByZero  ErrorType = "DIVISION_BY_ZERO"
	ErrorIndexOutOfRange ErrorType = "INDEX_OUT_OF_RANGE"
	ErrorIndexEmpty      ErrorType = "INDEX_EMPTY"
	ErrorIndexNonStack   ErrorType = "INDEX_NON_STACK"
	ErrorIndexUndefined  ErrorType = "INDEX_UNDEFINED"
	ErrorSlotOutOfRange  ErrorType = "SLOT_OUT_OF_RANGE"
	ErrorPCOutOfRange    ErrorType = "PC_OUT_OF_RANGE"
	ErrorStaleHandle     ErrorType = "STALE_HANDLE"
	ErrorEmptyCollection ErrorType = "EMPTY_COLLECTION"

	// Warnings - logged, execution continues
	ErrorNonEmptyStack ErrorType = "NON_EMPTY_STACK"
	ErrorProtocol      ErrorType = "PROTOCOL_VIOLATION"
)

// RuntimeError represents a runtime error in the VM.
type RuntimeError struct {
	Type     ErrorType
	Message  string
	Function int // Originating function number, -1 when unknown
	Line     int // Instruction index, -1 when unknown
	Name     string
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Function >= 0 && e.Name != "":
		return fmt.Sprintf("[%s] %s in %s line %d", e.Type, e.Message, e.Name, e.Line)
	case e.Function >= 0:
		return fmt.Sprintf("[%s] %s in function %d line %d", e.Type, e.Message, e.Function, e.Line)
	default:
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
}

// IsFatal returns true if the error is fatal and the run must stop.
func (e *RuntimeError) IsFatal() bool {
	switch e.Type {
	case ErrorNonEmptyStack, ErrorProtocol:
		return false
	default:
		return true
	}
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(errType ErrorType, message string) *RuntimeError {
	return &RuntimeError{
		Type:     errType,
		Message:  message,
		Function: -1,
		Line:     -1,
	}
}

// Errorf creates a RuntimeError with a formatted message.
func Errorf(errType ErrorType, format string, args ...any) *RuntimeError {
	return NewRuntimeError(errType, fmt.Sprintf(format, args...))
}

// IsErrorType reports whether err is a RuntimeError of the given type.
func IsErrorType(err error, errType ErrorType) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Type == errType
	}
	return false
}

// NewTypeMismatchError is returned by strict integer extraction.
func NewTypeMismatchError(want, got Type) *RuntimeError {
	return Errorf(ErrorTypeMismatch,
		"can only perform specified operation on a value which is of type %s, value supplied was of type %s", want, got)
}

// NewIndexOutOfRangeError creates an index out of range error.
func NewIndexOutOfRangeError(index int32, length int) *RuntimeError {
	return Errorf(ErrorIndexOutOfRange, "index %d out of range (length %d)", index, length)
}

// NewDivisionByZeroError creates a division by zero error.
func NewDivisionByZeroError() *RuntimeError {
	return NewRuntimeError(ErrorDivisionByZero, "division by zero")
}

// NewStackUnderflowError is raised when an instruction needs more operands than the stack holds.
func NewStackUnderflowError(what string) *RuntimeError {
	return Errorf(ErrorStackUnderflow, "corrupt file - no stack for %s", what)
}
