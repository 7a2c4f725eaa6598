package dialect

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// DefaultMaxInListSize is the largest IN-list most drivers accept.
const DefaultMaxInListSize = 999

// Dialect describes what the target database can express. It is resolved once
// per datasource and read-only during a compilation.
type Dialect interface {
	Name() string
	// ConcatOperator returns the infix string concatenation operator, e.g. "||".
	ConcatOperator() (string, bool)
	// ConcatFunction returns the name of a two-argument concatenation function.
	ConcatFunction() (string, bool)
	MaxInListSize() int
	Placeholder() sq.PlaceholderFormat
	// Wildcard converts a filter wildcard pattern ("*" matches anything) to a LIKE pattern.
	Wildcard(pattern string) string
}

// Capabilities is a Dialect defined by plain fields.
type Capabilities struct {
	DialectName    string
	Operator       string
	Function       string
	InListSize     int
	PlaceholderFmt sq.PlaceholderFormat
}

func (c Capabilities) Name() string {
	return c.DialectName
}

func (c Capabilities) ConcatOperator() (string, bool) {
	return c.Operator, c.Operator != ""
}

func (c Capabilities) ConcatFunction() (string, bool) {
	return c.Function, c.Function != ""
}

func (c Capabilities) MaxInListSize() int {
	if c.InListSize <= 0 {
		return DefaultMaxInListSize
	}
	return c.InListSize
}

func (c Capabilities) Placeholder() sq.PlaceholderFormat {
	if c.PlaceholderFmt == nil {
		return sq.Question
	}
	return c.PlaceholderFmt
}

func (c Capabilities) Wildcard(pattern string) string {
	return strings.ReplaceAll(pattern, "*", "%")
}

// WithMaxInListSize returns a copy of d whose IN-list limit is n.
func WithMaxInListSize(d Dialect, n int) Dialect {
	if c, ok := d.(Capabilities); ok {
		c.InListSize = n
		return c
	}
	return limited{Dialect: d, n: n}
}

type limited struct {
	Dialect
	n int
}

func (l limited) MaxInListSize() int {
	return l.n
}

var (
	MySQL    = Capabilities{DialectName: "mysql", Function: "concat"}
	MariaDB  = Capabilities{DialectName: "mariadb", Function: "concat"}
	Postgres = Capabilities{DialectName: "postgres", Operator: "||", PlaceholderFmt: sq.Dollar}
	Oracle   = Capabilities{DialectName: "oracle", Operator: "||", PlaceholderFmt: sq.Colon}
	MSSQL    = Capabilities{DialectName: "mssql", Operator: "+", PlaceholderFmt: sq.AtP}
	DuckDB   = Capabilities{DialectName: "duckdb", Operator: "||"}
	HSQL     = Capabilities{DialectName: "hsql", Operator: "||"}
	Generic  = Capabilities{DialectName: "generic"}
)

var registry = map[string]Dialect{
	MySQL.Name():    MySQL,
	MariaDB.Name():  MariaDB,
	Postgres.Name(): Postgres,
	Oracle.Name():   Oracle,
	MSSQL.Name():    MSSQL,
	DuckDB.Name():   DuckDB,
	HSQL.Name():     HSQL,
	Generic.Name():  Generic,
}

// Lookup returns the built-in dialect with the given name.
func Lookup(name string) (Dialect, error) {
	d, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
	return d, nil
}

// Names returns the names of all built-in dialects.
func Names() []string {
	return []string{"mysql", "mariadb", "postgres", "oracle", "mssql", "duckdb", "hsql", "generic"}
}
