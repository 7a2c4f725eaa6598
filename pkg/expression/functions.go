package expression

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
)

// AndOr implements the binary logical operators.
type AndOr struct{}

func (AndOr) Name() string                         { return "andor" }
func (AndOr) Types() []Type                        { return []Type{TypeAnd, TypeOr} }
func (AndOr) MinParameters() int                   { return 2 }
func (AndOr) MaxParameters() int                   { return 2 }
func (AndOr) ExpectedValueType(Type) ValueType     { return ValueBoolean }
func (AndOr) OperandValueType(Type, int) ValueType { return ValueBoolean }

func (AndOr) GenerateFilterPart(part FilterPart, t Type, args []Expression) error {
	return infix(part, " "+t.String()+" ", args, ValueBoolean)
}

func (AndOr) Evaluate(t Type, args []any) (any, error) {
	left, right := truthy(args[0]), truthy(args[1])
	if t == TypeAnd {
		return left && right, nil
	}
	return left || right, nil
}

// Calc implements arithmetic.
type Calc struct{}

func (Calc) Name() string { return "calc" }
func (Calc) Types() []Type {
	return []Type{TypePlus, TypeMinus, TypeTimes, TypeDiv, TypeMod}
}
func (Calc) MinParameters() int                   { return 2 }
func (Calc) MaxParameters() int                   { return 2 }
func (Calc) ExpectedValueType(Type) ValueType     { return ValueNumber }
func (Calc) OperandValueType(Type, int) ValueType { return ValueNumber }

func (Calc) GenerateFilterPart(part FilterPart, t Type, args []Expression) error {
	return infix(part, " "+t.String()+" ", args, ValueNumber)
}

func (Calc) Evaluate(t Type, args []any) (any, error) {
	a, okA := toNumber(args[0])
	b, okB := toNumber(args[1])
	if !okA || !okB {
		return nil, cfErrors.NewTypeMismatchError(t.String(), fmt.Sprintf("%v", args), ValueNumber.String(), "non-numeric")
	}
	switch t {
	case TypePlus:
		return a + b, nil
	case TypeMinus:
		return a - b, nil
	case TypeTimes:
		return a * b, nil
	case TypeDiv:
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return a / b, nil
	default:
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return math.Mod(a, b), nil
	}
}

// Concat joins string values.
type Concat struct{}

func (Concat) Name() string                         { return "concat" }
func (Concat) Types() []Type                        { return []Type{TypeConcat} }
func (Concat) MinParameters() int                   { return 2 }
func (Concat) MaxParameters() int                   { return Unbounded }
func (Concat) ExpectedValueType(Type) ValueType     { return ValueString }
func (Concat) OperandValueType(Type, int) ValueType { return ValueAny }

// GenerateFilterPart prefers the dialect's infix operator and falls back to
// nesting its two-argument function: concat(a, concat(b, c)).
func (Concat) GenerateFilterPart(part FilterPart, _ Type, args []Expression) error {
	d := part.Dialect()
	if op, ok := d.ConcatOperator(); ok {
		return infix(part, " "+op+" ", args, ValueAny)
	}
	fn, ok := d.ConcatFunction()
	if !ok {
		return cfErrors.NewDialectCapabilityMissingError(d.Name(), "string concatenation")
	}
	for i, a := range args {
		if i < len(args)-1 {
			part.Text(fn + "(")
		}
		if err := part.Operand(a, ValueAny); err != nil {
			return err
		}
		if i < len(args)-1 {
			part.Text(", ")
		}
	}
	part.Text(strings.Repeat(")", len(args)-1))
	return nil
}

func (Concat) Evaluate(_ Type, args []any) (any, error) {
	var sb strings.Builder
	for _, a := range args {
		if a != nil {
			sb.WriteString(toString(a))
		}
	}
	return sb.String(), nil
}

// Comparison implements ==, !=, >, >=, <, <=.
type Comparison struct{}

var comparisonSQL = map[Type]string{
	TypeEqual:          "=",
	TypeNotEqual:       "<>",
	TypeGreater:        ">",
	TypeGreaterOrEqual: ">=",
	TypeLess:           "<",
	TypeLessOrEqual:    "<=",
}

func (Comparison) Name() string { return "comparison" }
func (Comparison) Types() []Type {
	return []Type{TypeEqual, TypeNotEqual, TypeGreater, TypeGreaterOrEqual, TypeLess, TypeLessOrEqual}
}
func (Comparison) MinParameters() int                   { return 2 }
func (Comparison) MaxParameters() int                   { return 2 }
func (Comparison) ExpectedValueType(Type) ValueType     { return ValueBoolean }
func (Comparison) OperandValueType(Type, int) ValueType { return ValueAny }

// GenerateFilterPart renders comparisons against null as IS [NOT] NULL.
func (Comparison) GenerateFilterPart(part FilterPart, t Type, args []Expression) error {
	left, right := args[0], args[1]
	if t == TypeEqual || t == TypeNotEqual {
		if IsNull(left) {
			left, right = right, left
		}
		if IsNull(right) {
			if IsNull(left) {
				part.Text(BoolSQL(t == TypeEqual))
				return nil
			}
			part.Text("(")
			if err := part.Operand(left, ValueAny); err != nil {
				return err
			}
			if t == TypeEqual {
				part.Text(" IS NULL)")
			} else {
				part.Text(" IS NOT NULL)")
			}
			return nil
		}
	}
	return infix(part, " "+comparisonSQL[t]+" ", args, ValueAny)
}

func (Comparison) Evaluate(t Type, args []any) (any, error) {
	a, b := args[0], args[1]
	switch t {
	case TypeEqual:
		return equalValues(a, b), nil
	case TypeNotEqual:
		return !equalValues(a, b), nil
	}
	if a == nil || b == nil {
		return false, nil
	}
	c := compareValues(a, b)
	switch t {
	case TypeGreater:
		return c > 0, nil
	case TypeGreaterOrEqual:
		return c >= 0, nil
	case TypeLess:
		return c < 0, nil
	default:
		return c <= 0, nil
	}
}

// ExtendedComparison implements LIKE and the set-membership operators.
type ExtendedComparison struct{}

func (ExtendedComparison) Name() string { return "extendedcomparison" }
func (ExtendedComparison) Types() []Type {
	return []Type{TypeLike, TypeNotLike, TypeContainsOneOf, TypeContainsNone, TypeContainsAll}
}
func (ExtendedComparison) MinParameters() int               { return 2 }
func (ExtendedComparison) MaxParameters() int               { return 2 }
func (ExtendedComparison) ExpectedValueType(Type) ValueType { return ValueBoolean }

func (ExtendedComparison) OperandValueType(t Type, i int) ValueType {
	switch t {
	case TypeLike, TypeNotLike:
		if i == 0 {
			return ValueString
		}
		return ValueWildcardString
	default:
		if i == 0 {
			return ValueAny
		}
		return ValueCollection
	}
}

func (ExtendedComparison) GenerateFilterPart(part FilterPart, t Type, args []Expression) error {
	switch t {
	case TypeLike, TypeNotLike:
		part.Text("(")
		if err := part.Operand(args[0], ValueString); err != nil {
			return err
		}
		if t == TypeLike {
			part.Text(" LIKE ")
		} else {
			part.Text(" NOT LIKE ")
		}
		if err := part.Operand(args[1], ValueWildcardString); err != nil {
			return err
		}
		part.Text(")")
		return nil
	case TypeContainsOneOf:
		return part.Membership(args[0], args[1], false)
	case TypeContainsNone:
		return part.Membership(args[0], args[1], true)
	default:
		return cfErrors.NewUnsupportedOperationError(t.String(), "cannot be used in a filter, only in direct evaluation")
	}
}

func (ExtendedComparison) Evaluate(t Type, args []any) (any, error) {
	switch t {
	case TypeLike, TypeNotLike:
		if args[0] == nil || args[1] == nil {
			return false, nil
		}
		re, err := wildcardRegexp(toString(args[1]))
		if err != nil {
			return nil, err
		}
		matched := re.MatchString(toString(args[0]))
		if t == TypeNotLike {
			return !matched, nil
		}
		return matched, nil
	case TypeContainsOneOf:
		return containsAny(asSlice(args[0]), asSlice(args[1])), nil
	case TypeContainsNone:
		return !containsAny(asSlice(args[0]), asSlice(args[1])), nil
	default:
		left := asSlice(args[0])
		for _, want := range asSlice(args[1]) {
			if !containsAny(left, []any{want}) {
				return false, nil
			}
		}
		return true, nil
	}
}

// Unary implements the prefix operators +, - and !.
type Unary struct{}

func (Unary) Name() string                         { return "unary" }
func (Unary) Types() []Type                        { return []Type{TypeUnaryPlus, TypeUnaryMinus, TypeNot} }
func (Unary) MinParameters() int                   { return 1 }
func (Unary) MaxParameters() int                   { return 1 }
func (u Unary) ExpectedValueType(t Type) ValueType { return u.OperandValueType(t, 0) }

func (Unary) OperandValueType(t Type, _ int) ValueType {
	if t == TypeNot {
		return ValueBoolean
	}
	return ValueNumber
}

func (u Unary) GenerateFilterPart(part FilterPart, t Type, args []Expression) error {
	switch t {
	case TypeNot:
		part.Text("(NOT ")
	default:
		part.Text("(" + t.String())
	}
	if err := part.Operand(args[0], u.OperandValueType(t, 0)); err != nil {
		return err
	}
	part.Text(")")
	return nil
}

func (Unary) Evaluate(t Type, args []any) (any, error) {
	if t == TypeNot {
		return !truthy(args[0]), nil
	}
	n, ok := toNumber(args[0])
	if !ok {
		return nil, cfErrors.NewTypeMismatchError(t.String(), toString(args[0]), ValueNumber.String(), "non-numeric")
	}
	if t == TypeUnaryMinus {
		return -n, nil
	}
	return n, nil
}

// IsEmpty tests for null or the empty string.
type IsEmpty struct{}

func (IsEmpty) Name() string                         { return "isempty" }
func (IsEmpty) Types() []Type                        { return []Type{TypeIsEmpty} }
func (IsEmpty) MinParameters() int                   { return 1 }
func (IsEmpty) MaxParameters() int                   { return 1 }
func (IsEmpty) ExpectedValueType(Type) ValueType     { return ValueBoolean }
func (IsEmpty) OperandValueType(Type, int) ValueType { return ValueAny }

func (IsEmpty) GenerateFilterPart(part FilterPart, _ Type, args []Expression) error {
	part.Text("(")
	if err := part.Operand(args[0], ValueAny); err != nil {
		return err
	}
	part.Text(" IS NULL OR ")
	if err := part.Operand(args[0], ValueAny); err != nil {
		return err
	}
	part.Text(" = ")
	if err := part.Operand(NewLiteral(""), ValueString); err != nil {
		return err
	}
	part.Text(")")
	return nil
}

func (IsEmpty) Evaluate(_ Type, args []any) (any, error) {
	switch v := args[0].(type) {
	case nil:
		return true, nil
	case string:
		return v == "", nil
	case []any:
		return len(v) == 0, nil
	default:
		return false, nil
	}
}

func infix(part FilterPart, op string, args []Expression, as ValueType) error {
	part.Text("(")
	for i, a := range args {
		if i > 0 {
			part.Text(op)
		}
		if err := part.Operand(a, as); err != nil {
			return err
		}
	}
	part.Text(")")
	return nil
}

// BoolSQL renders a constant truth value as a predicate.
func BoolSQL(b bool) string {
	if b {
		return "(1 = 1)"
	}
	return "(1 = 2)"
}

func wildcardRegexp(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}
