package expression

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ObjectPrefix is the prefix of paths that refer to attributes of the object being filtered.
const ObjectPrefix = "object"

// Expression is the abstract syntax tree of a filter expression. The set of
// node types is closed: *Literal, *ObjectPath, *NamedProperty and *Call.
type Expression interface {
	String() string
	expression()
}

// Literal is a constant: nil, string, float64, bool, time.Time or []any of those.
type Literal struct {
	Value any
}

// ObjectPath refers to an attribute of the filtered object, e.g. object.folder.name.
type ObjectPath struct {
	// Path is the attribute path without the object prefix, e.g. "folder.name".
	Path string
}

// NamedProperty refers to a value supplied by the caller, e.g. data.groups.
type NamedProperty struct {
	Prefix string
	Name   string
}

// Call applies a function to its arguments.
type Call struct {
	Function Function
	Type     Type
	Args     []Expression
}

func (*Literal) expression()       {}
func (*ObjectPath) expression()    {}
func (*NamedProperty) expression() {}
func (*Call) expression()          {}

func NewLiteral(v any) *Literal {
	return &Literal{Value: normalize(v)}
}

func NewObjectPath(path string) *ObjectPath {
	return &ObjectPath{Path: strings.TrimPrefix(path, ObjectPrefix+".")}
}

func NewNamedProperty(prefix, name string) *NamedProperty {
	return &NamedProperty{Prefix: prefix, Name: name}
}

// ValueType returns the type of the literal's value.
func (l *Literal) ValueType() ValueType {
	return valueTypeOf(l.Value)
}

func (l *Literal) String() string {
	return formatValue(l.Value)
}

func (p *ObjectPath) String() string {
	return ObjectPrefix + "." + p.Path
}

func (p *NamedProperty) String() string {
	return p.Prefix + "." + p.Name
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	switch {
	case c.Type.Unary():
		return c.Type.String() + args[0]
	case c.Type.Infix() && len(args) == 2:
		return fmt.Sprintf("(%s %s %s)", args[0], c.Type, args[1])
	default:
		return fmt.Sprintf("%s(%s)", c.Type, strings.Join(args, ", "))
	}
}

// IsNull reports whether e is the null literal.
func IsNull(e Expression) bool {
	l, ok := e.(*Literal)
	return ok && l.Value == nil
}

// IsVariable reports whether e depends on the filtered row.
func IsVariable(e Expression) bool {
	switch e := e.(type) {
	case *ObjectPath:
		return true
	case *Call:
		for _, a := range e.Args {
			if IsVariable(a) {
				return true
			}
		}
	}
	return false
}

// Walk calls fn for e and every expression below it, depth first.
func Walk(e Expression, fn func(Expression)) {
	fn(e)
	if c, ok := e.(*Call); ok {
		for _, a := range c.Args {
			Walk(a, fn)
		}
	}
}

func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = normalize(e)
		}
		return out
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			out := make([]any, rv.Len())
			for i := range out {
				out[i] = normalize(rv.Index(i).Interface())
			}
			return out
		}
		return v
	}
}

func valueTypeOf(v any) ValueType {
	switch v.(type) {
	case nil:
		return ValueNull
	case string:
		return ValueString
	case float64, int, int64:
		return ValueNumber
	case bool:
		return ValueBoolean
	case time.Time:
		return ValueDate
	case []any:
		return ValueCollection
	default:
		return ValueUnknown
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
