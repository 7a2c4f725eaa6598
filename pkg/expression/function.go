package expression

import (
	"fmt"

	"github.com/kubev2v/contentmap-filter/pkg/dialect"
	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
)

// Unbounded is the MaxParameters value of functions without an upper bound.
const Unbounded = -1

// FilterPart is the sink a function writes its SQL fragment into. It is
// implemented by the filter compiler; operands handed to it were type checked
// against OperandValueType before GenerateFilterPart is called.
type FilterPart interface {
	Dialect() dialect.Dialect
	// Text appends raw SQL.
	Text(sql string)
	// Operand compiles e in place. as selects how literals are rendered
	// (e.g. ValueBoolean renders true as a predicate, ValueWildcardString
	// converts wildcards).
	Operand(e Expression, as ValueType) error
	// Membership compiles a set-membership test of variable against set.
	Membership(variable, set Expression, negate bool) error
}

// Function describes and generates one family of operations.
type Function interface {
	Name() string
	Types() []Type
	MinParameters() int
	// MaxParameters returns Unbounded for variadic functions.
	MaxParameters() int
	// ExpectedValueType is the type a call of type t evaluates to.
	ExpectedValueType(t Type) ValueType
	// OperandValueType is the type operand i of a call of type t must have.
	OperandValueType(t Type, i int) ValueType
	GenerateFilterPart(part FilterPart, t Type, args []Expression) error
	// Evaluate computes the result from already evaluated arguments.
	Evaluate(t Type, args []any) (any, error)
}

// Registry maps operation types to the function implementing them.
type Registry struct {
	functions map[Type]Function
}

func NewRegistry(functions ...Function) *Registry {
	r := &Registry{functions: make(map[Type]Function)}
	for _, f := range functions {
		r.Register(f)
	}
	return r
}

// Register adds f for every type it supports, replacing earlier registrations.
func (r *Registry) Register(f Function) {
	for _, t := range f.Types() {
		r.functions[t] = f
	}
}

func (r *Registry) Lookup(t Type) (Function, bool) {
	f, ok := r.functions[t]
	return f, ok
}

// NewCall builds a call of type t, checking the argument count.
func (r *Registry) NewCall(t Type, args ...Expression) (*Call, error) {
	f, ok := r.Lookup(t)
	if !ok {
		return nil, cfErrors.NewUnsupportedOperationError(t.String(), "no function registered")
	}
	if err := CheckArity(f, len(args)); err != nil {
		return nil, err
	}
	return &Call{Function: f, Type: t, Args: args}, nil
}

// CheckArity verifies n against the bounds declared by f.
func CheckArity(f Function, n int) error {
	if n < f.MinParameters() || (f.MaxParameters() != Unbounded && n > f.MaxParameters()) {
		return cfErrors.NewArityError(f.Name(), n, f.MinParameters(), f.MaxParameters())
	}
	return nil
}

// DefaultRegistry holds every built-in function.
var DefaultRegistry = NewRegistry(
	AndOr{},
	Calc{},
	Concat{},
	Comparison{},
	ExtendedComparison{},
	Unary{},
	IsEmpty{},
)

// New builds a call from the default registry.
func New(t Type, args ...Expression) (*Call, error) {
	return DefaultRegistry.NewCall(t, args...)
}

// Must is like New but panics on error. Intended for tests and fixed trees.
func Must(t Type, args ...Expression) *Call {
	c, err := New(t, args...)
	if err != nil {
		panic(fmt.Sprintf("expression.Must(%s): %v", t, err))
	}
	return c
}
