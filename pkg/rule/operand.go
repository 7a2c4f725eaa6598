package rule

import (
	"strconv"
	"strings"

	"github.com/kubev2v/contentmap-filter/pkg/expression"
)

// Operand is one side of a condition. The set of operand types is closed:
// *Literal, *ObjectPath, *NamedProperty and *FunctionCall.
type Operand interface {
	String() string
	// Owner returns the tree the operand belongs to. Listeners registered on
	// the tree are notified when the operand's resolved value may have changed.
	Owner() *RuleTree
	copyTo(owner *RuleTree) Operand
	operand()
}

// Literal is a constant: string, float64, bool, nil, or []any of those.
type Literal struct {
	owner *RuleTree
	Value any
}

// ObjectPath refers to an attribute of the filtered object, e.g. object.folder.name.
type ObjectPath struct {
	owner *RuleTree
	Path  string
}

// NamedProperty refers to a value supplied by a registered resolver, e.g. portal.user.groups.
type NamedProperty struct {
	owner     *RuleTree
	Prefix    string
	Attribute string
}

// FunctionCall applies a legacy function such as concat to its parameters.
type FunctionCall struct {
	owner *RuleTree
	Name  string
	Args  []Operand
}

func (*Literal) operand()       {}
func (*ObjectPath) operand()    {}
func (*NamedProperty) operand() {}
func (*FunctionCall) operand()  {}

func (l *Literal) Owner() *RuleTree       { return l.owner }
func (p *ObjectPath) Owner() *RuleTree    { return p.owner }
func (p *NamedProperty) Owner() *RuleTree { return p.owner }
func (f *FunctionCall) Owner() *RuleTree  { return f.owner }

func (l *Literal) copyTo(owner *RuleTree) Operand {
	return &Literal{owner: owner, Value: l.Value}
}

func (p *ObjectPath) copyTo(owner *RuleTree) Operand {
	return &ObjectPath{owner: owner, Path: p.Path}
}

func (p *NamedProperty) copyTo(owner *RuleTree) Operand {
	return &NamedProperty{owner: owner, Prefix: p.Prefix, Attribute: p.Attribute}
}

func (f *FunctionCall) copyTo(owner *RuleTree) Operand {
	args := make([]Operand, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.copyTo(owner)
	}
	return &FunctionCall{owner: owner, Name: f.Name, Args: args}
}

func (l *Literal) String() string {
	return formatLiteral(l.Value)
}

func (p *ObjectPath) String() string {
	return p.Path
}

func (p *NamedProperty) String() string {
	return p.Prefix + "." + p.Attribute
}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

func formatLiteral(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = formatLiteral(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return strconv.Quote("")
	}
}

// legacyFunction describes a function callable from rule text.
type legacyFunction struct {
	name string
	typ  expression.Type
}

var legacyFunctions = []legacyFunction{
	{name: "concat", typ: expression.TypeConcat},
	{name: "isempty", typ: expression.TypeIsEmpty},
}

// matchFunction reports a function name at src[pos:] that is followed by a
// space or an opening parenthesis.
func matchFunction(src string, pos int) (legacyFunction, int, bool) {
	rest := src[pos:]
	for _, f := range legacyFunctions {
		n := len(f.name)
		if len(rest) <= n || !strings.EqualFold(rest[:n], f.name) {
			continue
		}
		if rest[n] == ' ' || rest[n] == '(' {
			return f, n, true
		}
	}
	return legacyFunction{}, 0, false
}

var constants = []struct {
	text  string
	value any
}{
	{"true", true},
	{"false", false},
	{"null", nil},
}

func matchConstant(src string, pos int) (any, int, bool) {
	rest := src[pos:]
	for _, c := range constants {
		n := len(c.text)
		if len(rest) < n || !strings.EqualFold(rest[:n], c.text) {
			continue
		}
		if n == len(rest) || strings.ContainsRune(" \t\r\n),", rune(rest[n])) {
			return c.value, n, true
		}
	}
	return nil, 0, false
}
