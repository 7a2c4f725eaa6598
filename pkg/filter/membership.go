package filter

import (
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

// memberSet is the right side of a set-membership test. Either values (and
// hasNull) are known at compile time, or deferred names the property that
// supplies them at bind time.
type memberSet struct {
	values   []any
	hasNull  bool
	deferred *statement.Deferred
}

// Membership compiles CONTAINSONEOF (negate false) and CONTAINSNONE (negate
// true). Static sets against inline columns become IN-lists on the column;
// everything else becomes a correlated EXISTS sub-filter.
func (g *generator) Membership(variable, set expression.Expression, negate bool) error {
	op := expression.TypeContainsOneOf
	if negate {
		op = expression.TypeContainsNone
	}

	path, ok := variable.(*expression.ObjectPath)
	if !ok {
		return cfErrors.NewUnsupportedOperationError(op.String(), fmt.Sprintf("left operand %s is not an object attribute", variable))
	}
	if expression.IsVariable(set) {
		return cfErrors.NewUnsupportedOperationError(op.String(), fmt.Sprintf("right operand %s depends on the filtered object", set))
	}

	entry, err := g.resolver.Resolve(path.Path)
	if err != nil {
		return err
	}

	members, err := g.memberSet(op, set)
	if err != nil {
		return err
	}

	if members.deferred == nil && entry.Inline() {
		g.resolver.MarkNeeded(entry)
		g.inClause(g.out, entry.Column, members, negate)
		return nil
	}
	return g.exists(path, members, negate)
}

func (g *generator) memberSet(op expression.Type, set expression.Expression) (memberSet, error) {
	v, err := expression.Evaluate(set, g.props)
	if errors.Is(err, expression.ErrNotStatic) {
		if p, ok := set.(*expression.NamedProperty); ok {
			return memberSet{deferred: &statement.Deferred{Prefix: p.Prefix, Name: p.Name}}, nil
		}
		return memberSet{}, cfErrors.NewUnsupportedOperationError(op.String(), fmt.Sprintf("right operand %s cannot be resolved", set))
	}
	if err != nil {
		return memberSet{}, err
	}

	var m memberSet
	values, ok := v.([]any)
	if !ok {
		values = []any{v}
	}
	for _, e := range values {
		if e == nil {
			m.hasNull = true
			continue
		}
		m.values = append(m.values, e)
	}
	return m, nil
}

// inClause writes the membership predicate for col. Null in the set matches
// rows without a value; for CONTAINSNONE a null in the set excludes them.
func (g *generator) inClause(out *statement.MergedFilter, col string, m memberSet, negate bool) {
	if m.deferred != nil {
		in := statement.NewMergedFilter().Append(fmt.Sprintf("%s IN (?)", col), *m.deferred)
		if negate {
			out.Append("(NOT (").AppendFilter(in).Append(fmt.Sprintf(") OR %s IS NULL)", col))
		} else {
			out.Append("(").AppendFilter(in).Append(")")
		}
		return
	}

	if len(m.values) == 0 {
		switch {
		case m.hasNull && negate:
			out.Append(fmt.Sprintf("(%s IS NOT NULL)", col))
		case m.hasNull:
			out.Append(fmt.Sprintf("(%s IS NULL)", col))
		default:
			out.Append(expression.BoolSQL(negate))
		}
		return
	}

	in := g.inBlocks(col, m.values)
	switch {
	case negate && m.hasNull:
		out.Append("(NOT ").AppendFilter(in).Append(fmt.Sprintf(" AND %s IS NOT NULL)", col))
	case negate:
		out.Append("(NOT ").AppendFilter(in).Append(fmt.Sprintf(" OR %s IS NULL)", col))
	case m.hasNull:
		out.Append("(").AppendFilter(in).Append(fmt.Sprintf(" OR %s IS NULL)", col))
	default:
		out.AppendFilter(in)
	}
}

// inBlocks renders (col IN (...) OR col IN (...)), each block holding at most
// the dialect's IN-list size.
func (g *generator) inBlocks(col string, values []any) *statement.MergedFilter {
	size := g.Dialect().MaxInListSize()
	if size <= 0 {
		size = len(values)
	}
	in := statement.NewMergedFilter().Append("(")
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		if start > 0 {
			in.Append(" OR ")
		}
		block := values[start:end]
		in.Append(fmt.Sprintf("%s IN (%s)", col, placeholders(len(block))), statement.Values(block...)...)
	}
	return in.Append(")")
}

// exists writes [NOT] EXISTS over a sub-filter selecting the rows of the same
// object whose value of path is in m. The sub-filter shares the alias
// allocator, so its aliases never clash with the outer statement.
func (g *generator) exists(path *expression.ObjectPath, m memberSet, negate bool) error {
	sub := g.child()
	entry, err := sub.resolver.Resolve(path.Path)
	if err != nil {
		return err
	}
	sub.resolver.MarkNeeded(entry)

	inner := sub.resolver.MainAlias()
	where := statement.NewMergedFilter().
		Append(fmt.Sprintf("%s.contentid = %s.contentid AND ", inner, g.resolver.MainAlias()))
	sub.visibility(where)
	where.Append(" AND ")
	sub.inClause(where, entry.Column, m, false)

	sql, params, err := sub.assemble(sq.Select("1"), where)
	if err != nil {
		return err
	}

	if negate {
		g.out.Append("NOT ")
	}
	g.out.Append("EXISTS ("+sql+")", params...)
	return nil
}
