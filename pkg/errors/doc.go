// Package errors provides the typed failures of rule compilation.
//
// Each error type includes a constructor, Error() method, and a type-checking
// helper using errors.As, so the helpers see through fmt.Errorf wrapping.
//
// # Error Types Overview
//
//	┌───────────────────────────────┬──────────────────────────┬─────────────────────────────────────┐
//	│ Error Type                    │ Kind                     │ Raised when                         │
//	├───────────────────────────────┼──────────────────────────┼─────────────────────────────────────┤
//	│ SyntaxError                   │ SyntaxError              │ Rule text cannot be parsed          │
//	│ UnresolvedAttributeError      │ UnresolvedAttribute      │ Path or property names nothing      │
//	│ TypeMismatchError             │ TypeMismatch             │ Operand type does not fit function  │
//	│ UnsupportedOperationError     │ UnsupportedOperation     │ Construct has no SQL form           │
//	│ ArityError                    │ ArityError               │ Wrong number of function params     │
//	│ DialectCapabilityMissingError │ DialectCapabilityMissing │ Dialect lacks a needed feature      │
//	└───────────────────────────────┴──────────────────────────┴─────────────────────────────────────┘
//
// # Kinds
//
// KindOf maps any error to its Kind, returning KindUnknown for nil and for
// errors that carry none of the types above. The CLI prints the kind next to
// the message.
//
// Usage:
//
//	stmt, err := compiler.Compile(expr, req)
//	if errors.IsUnresolvedAttributeError(err) {
//	    // unknown attribute in the rule
//	}
//
// # SyntaxError
//
// Position is the byte offset into the rule text where parsing stopped.
//
// # ArityError
//
// Max is negative for functions without an upper bound, such as concat.
package errors
