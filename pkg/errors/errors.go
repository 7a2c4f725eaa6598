package errors

import (
	"errors"
	"fmt"
)

// Kind tags a compilation failure for callers that only need the category.
type Kind int

const (
	KindUnknown Kind = iota
	KindSyntax
	KindUnresolvedAttribute
	KindTypeMismatch
	KindUnsupportedOperation
	KindArity
	KindDialectCapabilityMissing
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "SyntaxError"
	case KindUnresolvedAttribute:
		return "UnresolvedAttribute"
	case KindTypeMismatch:
		return "TypeMismatch"
	case KindUnsupportedOperation:
		return "UnsupportedOperation"
	case KindArity:
		return "ArityError"
	case KindDialectCapabilityMissing:
		return "DialectCapabilityMissing"
	default:
		return "Unknown"
	}
}

// KindOf returns the kind of the first typed error found in err's chain.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case IsSyntaxError(err):
		return KindSyntax
	case IsUnresolvedAttributeError(err):
		return KindUnresolvedAttribute
	case IsTypeMismatchError(err):
		return KindTypeMismatch
	case IsUnsupportedOperationError(err):
		return KindUnsupportedOperation
	case IsArityError(err):
		return KindArity
	case IsDialectCapabilityMissingError(err):
		return KindDialectCapabilityMissing
	default:
		return KindUnknown
	}
}

// SyntaxError indicates malformed rule text.
type SyntaxError struct {
	// Position is the byte offset in the source where the error was detected.
	Position int
	Message  string
}

func NewSyntaxError(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Position: pos, Message: fmt.Sprintf(format, args...)}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Position, e.Message)
}

// IsSyntaxError checks if the error is a SyntaxError.
func IsSyntaxError(err error) bool {
	var e *SyntaxError
	return errors.As(err, &e)
}

// UnresolvedAttributeError indicates an attribute path or named property that does not map to anything.
type UnresolvedAttributeError struct {
	Path string
}

func NewUnresolvedAttributeError(path string) *UnresolvedAttributeError {
	return &UnresolvedAttributeError{Path: path}
}

func (e *UnresolvedAttributeError) Error() string {
	return fmt.Sprintf("unresolved attribute: %s", e.Path)
}

func IsUnresolvedAttributeError(err error) bool {
	var e *UnresolvedAttributeError
	return errors.As(err, &e)
}

// TypeMismatchError indicates an operand whose value type does not fit the function using it.
type TypeMismatchError struct {
	Function string
	Operand  string
	Expected string
	Actual   string
}

func NewTypeMismatchError(function, operand, expected, actual string) *TypeMismatchError {
	return &TypeMismatchError{Function: function, Operand: operand, Expected: expected, Actual: actual}
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch in %s: operand %s is %s, expected %s", e.Function, e.Operand, e.Actual, e.Expected)
}

func IsTypeMismatchError(err error) bool {
	var e *TypeMismatchError
	return errors.As(err, &e)
}

// UnsupportedOperationError indicates a construct that has no SQL realization.
type UnsupportedOperationError struct {
	Operation string
	Reason    string
}

func NewUnsupportedOperationError(operation, reason string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Operation: operation, Reason: reason}
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %s: %s", e.Operation, e.Reason)
}

func IsUnsupportedOperationError(err error) bool {
	var e *UnsupportedOperationError
	return errors.As(err, &e)
}

// ArityError indicates a function called with a parameter count outside its bounds.
// Max is negative for functions without an upper bound.
type ArityError struct {
	Function string
	Got      int
	Min      int
	Max      int
}

func NewArityError(function string, got, min, max int) *ArityError {
	return &ArityError{Function: function, Got: got, Min: min, Max: max}
}

func (e *ArityError) Error() string {
	if e.Max < 0 {
		return fmt.Sprintf("function %s expects at least %d parameters, got %d", e.Function, e.Min, e.Got)
	}
	if e.Min == e.Max {
		return fmt.Sprintf("function %s expects %d parameters, got %d", e.Function, e.Min, e.Got)
	}
	return fmt.Sprintf("function %s expects %d to %d parameters, got %d", e.Function, e.Min, e.Max, e.Got)
}

func IsArityError(err error) bool {
	var e *ArityError
	return errors.As(err, &e)
}

// DialectCapabilityMissingError indicates the target dialect cannot express a construct.
type DialectCapabilityMissingError struct {
	Dialect    string
	Capability string
}

func NewDialectCapabilityMissingError(dialect, capability string) *DialectCapabilityMissingError {
	return &DialectCapabilityMissingError{Dialect: dialect, Capability: capability}
}

func (e *DialectCapabilityMissingError) Error() string {
	return fmt.Sprintf("dialect %s does not support %s", e.Dialect, e.Capability)
}

func IsDialectCapabilityMissingError(err error) bool {
	var e *DialectCapabilityMissingError
	return errors.As(err, &e)
}
