package filter

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/kubev2v/contentmap-filter/pkg/attribute"
	"github.com/kubev2v/contentmap-filter/pkg/dialect"
	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

// generator compiles one (sub)statement. It is the expression.FilterPart the
// functions write into. Sub-filters get their own generator sharing the alias
// allocator of their parent.
type generator struct {
	compiler *Compiler
	req      *Request
	aliases  *statement.AliasAllocator
	resolver *attribute.Resolver
	props    statement.Binding
	out      *statement.MergedFilter
}

var _ expression.FilterPart = (*generator)(nil)

func (c *Compiler) newGenerator(req *Request, aliases *statement.AliasAllocator) *generator {
	return &generator{
		compiler: c,
		req:      req,
		aliases:  aliases,
		resolver: attribute.NewResolver(c.catalog, aliases, req.VersionTimestamp),
		props:    statement.Binding{Data: req.Data},
		out:      statement.NewMergedFilter(),
	}
}

func (g *generator) child() *generator {
	return g.compiler.newGenerator(g.req, g.aliases)
}

func (g *generator) Dialect() dialect.Dialect {
	return g.compiler.dialect
}

func (g *generator) Text(sql string) {
	g.out.Append(sql)
}

// resolvePaths resolves every object path of e, so unknown attributes fail
// before any SQL is generated.
func (g *generator) resolvePaths(e expression.Expression) error {
	if e == nil {
		return nil
	}
	var err error
	expression.Walk(e, func(e expression.Expression) {
		if p, ok := e.(*expression.ObjectPath); ok && err == nil {
			_, err = g.resolver.Resolve(p.Path)
		}
	})
	return err
}

// where builds the WHERE clause: channel visibility first, then the version
// window, then the expression.
func (g *generator) where(e expression.Expression) (*statement.MergedFilter, error) {
	w := statement.NewMergedFilter()
	g.visibility(w)
	if e == nil {
		return w, nil
	}
	w.Append(" AND ")
	g.out = w
	if err := g.Operand(e, expression.ValueBoolean); err != nil {
		return nil, err
	}
	return w, nil
}

// visibility writes the channel predicate of the main alias and, for
// versioned requests, its version window.
func (g *generator) visibility(w *statement.MergedFilter) {
	if len(g.req.Channels) == 0 {
		w.Append(expression.BoolSQL(false))
	} else {
		w.Append(fmt.Sprintf("(%s.channel_id IN (?))", g.resolver.MainAlias()), statement.ChannelIDs{})
	}
	if v := g.resolver.VersionPredicate(g.resolver.MainAlias()); v != nil {
		w.Append(" AND ").AppendFilter(v)
	}
}

// assemble completes b with FROM, the needed joins and where, and returns the
// statement text with the parameters in text order.
func (g *generator) assemble(b sq.SelectBuilder, where *statement.MergedFilter) (string, []statement.Param, error) {
	b = b.From(g.resolver.MapTable() + " " + g.resolver.MainAlias())
	var params []statement.Param
	for _, j := range g.resolver.Joins() {
		b = b.JoinClause(j.Text)
		params = append(params, j.Params...)
	}
	b = b.Where(where.Text())
	params = append(params, where.Params()...)

	sql, _, err := b.ToSql()
	if err != nil {
		return "", nil, err
	}
	return sql, params, nil
}

// Operand compiles e so it can be used where a value of type as is expected.
func (g *generator) Operand(e expression.Expression, as expression.ValueType) error {
	actual, err := g.valueType(e)
	if err != nil {
		return err
	}
	if !actual.AssignableTo(as) {
		return cfErrors.NewTypeMismatchError("filter", e.String(), as.String(), actual.String())
	}

	switch e := e.(type) {
	case *expression.Literal:
		g.literal(e.Value, as)
		return nil
	case *expression.ObjectPath:
		entry, err := g.resolver.Resolve(e.Path)
		if err != nil {
			return err
		}
		g.resolver.MarkNeeded(entry)
		g.out.Append(entry.Column)
		return nil
	case *expression.NamedProperty:
		if v, ok := g.props.Lookup(e.Prefix, e.Name); ok {
			g.literal(expression.NewLiteral(v).Value, as)
			return nil
		}
		g.out.AppendParam(statement.Deferred{Prefix: e.Prefix, Name: e.Name})
		return nil
	case *expression.Call:
		return g.call(e, as)
	default:
		return fmt.Errorf("unexpected expression %T", e)
	}
}

// call compiles a function call. Calls that do not depend on the filtered row
// are evaluated up front, except set-membership tests.
func (g *generator) call(c *expression.Call, as expression.ValueType) error {
	if !expression.IsVariable(c) && !membership(c.Type) {
		v, err := expression.Evaluate(c, g.props)
		switch {
		case err == nil:
			g.literal(v, as)
			return nil
		case !errors.Is(err, expression.ErrNotStatic):
			return err
		}
	}

	for i, arg := range c.Args {
		actual, err := g.valueType(arg)
		if err != nil {
			return err
		}
		expected := c.Function.OperandValueType(c.Type, i)
		if !actual.AssignableTo(expected) {
			return cfErrors.NewTypeMismatchError(c.Type.String(), arg.String(), expected.String(), actual.String())
		}
	}
	return c.Function.GenerateFilterPart(g, c.Type, c.Args)
}

func membership(t expression.Type) bool {
	return t == expression.TypeContainsOneOf || t == expression.TypeContainsNone || t == expression.TypeContainsAll
}

// literal writes a constant. Booleans in predicate position become constant
// predicates, wildcard strings are converted by the dialect.
func (g *generator) literal(v any, as expression.ValueType) {
	switch v := v.(type) {
	case nil:
		g.out.Append("NULL")
	case bool:
		if as == expression.ValueBoolean {
			g.out.Append(expression.BoolSQL(v))
			return
		}
		g.out.AppendParam(statement.Value{V: v})
	case string:
		if as == expression.ValueWildcardString {
			v = g.Dialect().Wildcard(v)
		}
		g.out.AppendParam(statement.Value{V: v})
	case []any:
		if len(v) == 0 {
			g.out.Append("(NULL)")
			return
		}
		g.out.Append("("+placeholders(len(v))+")", statement.Values(v...)...)
	default:
		g.out.AppendParam(statement.Value{V: v})
	}
}

// valueType returns the type e evaluates to.
func (g *generator) valueType(e expression.Expression) (expression.ValueType, error) {
	switch e := e.(type) {
	case *expression.Literal:
		return e.ValueType(), nil
	case *expression.ObjectPath:
		entry, err := g.resolver.Resolve(e.Path)
		if err != nil {
			return expression.ValueUnknown, err
		}
		return entry.ValueType(), nil
	case *expression.NamedProperty:
		if v, ok := g.props.Lookup(e.Prefix, e.Name); ok {
			return expression.StaticValueType(v), nil
		}
		return expression.ValueAny, nil
	case *expression.Call:
		return e.Function.ExpectedValueType(e.Type), nil
	default:
		return expression.ValueUnknown, fmt.Errorf("unexpected expression %T", e)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
