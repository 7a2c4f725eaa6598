package filter

import (
	"fmt"
	"maps"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/kubev2v/contentmap-filter/pkg/attribute"
	"github.com/kubev2v/contentmap-filter/pkg/dialect"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

// Sort orders the result by an attribute path.
type Sort struct {
	Path       string
	Descending bool
}

// Request is the context of one compilation.
type Request struct {
	// Channels is the ordered channel-priority list objects must be visible in.
	Channels []int64
	// VersionTimestamp selects the version tables and the rows valid at that time.
	VersionTimestamp *int64
	Sort             []Sort
	// Count produces COUNT(DISTINCT contentid) instead of the object rows.
	Count bool
	// Subquery selects the literal 1, for use in EXISTS.
	Subquery bool
	// Data holds named property values by prefix and name. Properties present
	// here are inlined at compile time; missing ones are bound later.
	Data   map[string]map[string]any
	Limit  uint64
	Offset uint64
}

// Compiler turns expressions into SQL statements over the content map.
type Compiler struct {
	dialect dialect.Dialect
	catalog attribute.Catalog
	log     *zap.SugaredLogger
}

func NewCompiler(d dialect.Dialect, catalog attribute.Catalog) *Compiler {
	if d == nil {
		d = dialect.Generic
	}
	return &Compiler{
		dialect: d,
		catalog: catalog,
		log:     zap.S().Named("filter"),
	}
}

func (c *Compiler) Dialect() dialect.Dialect {
	return c.dialect
}

// Prepared is a compiled statement whose placeholder slots are not expanded yet.
type Prepared struct {
	// SQL has one "?" per slot of Params.
	SQL    string
	Params []statement.Param

	channels []int64
	data     map[string]map[string]any
	format   sq.PlaceholderFormat
}

// Bind expands the slots with the request's channels and the named property
// values of the request merged with data, and applies the dialect's
// placeholder format.
func (p *Prepared) Bind(data map[string]map[string]any) (*statement.Statement, error) {
	merged := make(map[string]map[string]any, len(p.data)+len(data))
	for prefix, props := range p.data {
		merged[prefix] = maps.Clone(props)
	}
	for prefix, props := range data {
		if merged[prefix] == nil {
			merged[prefix] = make(map[string]any, len(props))
		}
		maps.Copy(merged[prefix], props)
	}
	return statement.Assemble(p.SQL, p.Params, statement.Binding{Channels: p.channels, Data: merged}, p.format)
}

// Compile prepares expr and binds it with the request's data. A nil expr
// matches every visible object.
func (c *Compiler) Compile(expr expression.Expression, req Request) (*statement.Statement, error) {
	p, err := c.Prepare(expr, req)
	if err != nil {
		return nil, err
	}
	return p.Bind(nil)
}

// Prepare compiles expr without expanding placeholder slots. Nothing is
// returned on error.
func (c *Compiler) Prepare(expr expression.Expression, req Request) (*Prepared, error) {
	g := c.newGenerator(&req, statement.NewAliasAllocator())

	if err := g.resolvePaths(expr); err != nil {
		return nil, err
	}

	var orderBy []string
	var sortColumns []string
	if !req.Count && !req.Subquery {
		for _, s := range req.Sort {
			e, err := g.resolver.Resolve(s.Path)
			if err != nil {
				return nil, err
			}
			g.resolver.MarkNeeded(e)
			dir := "ASC"
			if s.Descending {
				dir = "DESC"
			}
			orderBy = append(orderBy, e.Column+" "+dir)
			if e.Kind != attribute.KindMeta || e.Parent != nil {
				sortColumns = appendUnique(sortColumns, e.Column)
			}
		}
	}

	where, err := g.where(expr)
	if err != nil {
		return nil, err
	}

	main := g.resolver.MainAlias()
	var b sq.SelectBuilder
	switch {
	case req.Count:
		b = sq.Select(fmt.Sprintf("COUNT(DISTINCT %s.contentid)", main))
	case req.Subquery:
		b = sq.Select("1")
	default:
		columns := make([]string, 0, len(attribute.MetaColumns)+len(sortColumns))
		for _, m := range attribute.MetaColumns {
			columns = append(columns, main+"."+m.Name)
		}
		b = sq.Select(append(columns, sortColumns...)...).Distinct()
	}

	if !req.Count {
		b = b.OrderBy(orderBy...)
		if req.Limit > 0 {
			b = b.Limit(req.Limit)
		}
		if req.Offset > 0 {
			b = b.Offset(req.Offset)
		}
	}

	sql, params, err := g.assemble(b, where)
	if err != nil {
		return nil, err
	}

	c.log.Debugw("compiled filter",
		"expression", expressionString(expr),
		"sql", sql,
		"params", len(params),
		"aliases", g.aliases.Issued(),
	)

	return &Prepared{
		SQL:      sql,
		Params:   params,
		channels: req.Channels,
		data:     req.Data,
		format:   c.dialect.Placeholder(),
	}, nil
}

func appendUnique(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}

func expressionString(e expression.Expression) string {
	if e == nil {
		return ""
	}
	return e.String()
}
