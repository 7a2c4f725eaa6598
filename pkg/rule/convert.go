package rule

import (
	"fmt"

	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
)

var conditionTypes = map[Operator]expression.Type{
	OpEqual:          expression.TypeEqual,
	OpNotEqual:       expression.TypeNotEqual,
	OpGreater:        expression.TypeGreater,
	OpLess:           expression.TypeLess,
	OpLessOrEqual:    expression.TypeLessOrEqual,
	OpGreaterOrEqual: expression.TypeGreaterOrEqual,
	OpContains:       expression.TypeContainsOneOf,
	OpNotContains:    expression.TypeContainsNone,
	OpLike:           expression.TypeLike,
	OpNotLike:        expression.TypeNotLike,
	OpIsNull:         expression.TypeEqual,
	OpIsNotNull:      expression.TypeNotEqual,
}

// Expression converts the tree into an expression built from the default
// registry. AND binds tighter than OR; both associate to the left.
// An empty tree converts to nil.
func (t *RuleTree) Expression() (expression.Expression, error) {
	return t.ExpressionWith(expression.DefaultRegistry)
}

// ExpressionWith is like Expression but resolves functions in reg.
func (t *RuleTree) ExpressionWith(reg *expression.Registry) (expression.Expression, error) {
	if len(t.nodes) == 0 {
		return nil, nil
	}

	var (
		disjuncts []expression.Expression
		conjunct  expression.Expression
	)
	for _, n := range t.nodes {
		if op, ok := n.(Operator); ok {
			if op == OpOr {
				disjuncts = append(disjuncts, conjunct)
				conjunct = nil
			}
			continue
		}
		e, err := nodeExpression(n, reg)
		if err != nil {
			return nil, err
		}
		if conjunct == nil {
			conjunct = e
			continue
		}
		if conjunct, err = reg.NewCall(expression.TypeAnd, conjunct, e); err != nil {
			return nil, err
		}
	}
	disjuncts = append(disjuncts, conjunct)

	result := disjuncts[0]
	for _, d := range disjuncts[1:] {
		var err error
		if result, err = reg.NewCall(expression.TypeOr, result, d); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func nodeExpression(n Node, reg *expression.Registry) (expression.Expression, error) {
	switch n := n.(type) {
	case *Condition:
		t, ok := conditionTypes[n.Operator]
		if !ok {
			return nil, cfErrors.NewUnsupportedOperationError(n.Operator.String(), "not a comparison operator")
		}
		left, err := operandExpression(n.Left, reg)
		if err != nil {
			return nil, err
		}
		var right expression.Expression = expression.NewLiteral(nil)
		if !n.Operator.Postfix() {
			if right, err = operandExpression(n.Right, reg); err != nil {
				return nil, err
			}
		}
		return reg.NewCall(t, left, right)
	case *Standalone:
		return operandExpression(n.Operand, reg)
	case *RuleTree:
		return n.ExpressionWith(reg)
	default:
		return nil, fmt.Errorf("unexpected rule node %T", n)
	}
}

func operandExpression(o Operand, reg *expression.Registry) (expression.Expression, error) {
	switch o := o.(type) {
	case *Literal:
		return expression.NewLiteral(o.Value), nil
	case *ObjectPath:
		return expression.NewObjectPath(o.Path), nil
	case *NamedProperty:
		return expression.NewNamedProperty(o.Prefix, o.Attribute), nil
	case *FunctionCall:
		var fn *legacyFunction
		for i := range legacyFunctions {
			if legacyFunctions[i].name == o.Name {
				fn = &legacyFunctions[i]
			}
		}
		if fn == nil {
			return nil, cfErrors.NewUnsupportedOperationError(o.Name, "unknown function")
		}
		args := make([]expression.Expression, len(o.Args))
		for i, a := range o.Args {
			e, err := operandExpression(a, reg)
			if err != nil {
				return nil, err
			}
			args[i] = e
		}
		return reg.NewCall(fn.typ, args...)
	default:
		return nil, fmt.Errorf("unexpected operand %T", o)
	}
}
