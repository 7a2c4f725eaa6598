package attribute

import (
	"sort"

	"github.com/kubev2v/contentmap-filter/pkg/expression"
)

// Type is the storage type of an attribute, as recorded in contentattributetype.attributetype.
type Type int

const (
	TypeText        Type = 1
	TypeLink        Type = 2
	TypeInteger     Type = 3
	TypeLongText    Type = 5
	TypeBinary      Type = 6
	TypeForeignLink Type = 7
	TypeLong        Type = 8
	TypeDouble      Type = 9
	TypeDate        Type = 10
)

type typeInfo struct {
	name      string
	column    string
	valueType expression.ValueType
	sqlType   string
}

var types = map[Type]typeInfo{
	TypeText:        {"text", "value_text", expression.ValueString, "VARCHAR"},
	TypeLink:        {"link", "value_text", expression.ValueString, "VARCHAR"},
	TypeInteger:     {"integer", "value_int", expression.ValueNumber, "INTEGER"},
	TypeLongText:    {"longtext", "value_clob", expression.ValueString, "TEXT"},
	TypeBinary:      {"binary", "value_blob", expression.ValueUnknown, "BLOB"},
	TypeForeignLink: {"foreignlink", "", expression.ValueString, ""},
	TypeLong:        {"long", "value_long", expression.ValueNumber, "BIGINT"},
	TypeDouble:      {"double", "value_double", expression.ValueNumber, "DOUBLE"},
	TypeDate:        {"date", "value_date", expression.ValueDate, "TIMESTAMP"},
}

func (t Type) String() string {
	if info, ok := types[t]; ok {
		return info.name
	}
	return "unknown"
}

// ParseType returns the type with the given name, as printed by String.
func ParseType(name string) (Type, bool) {
	for t, info := range types {
		if info.name == name {
			return t, true
		}
	}
	return 0, false
}

// Valid reports whether t is a known attribute type.
func (t Type) Valid() bool {
	_, ok := types[t]
	return ok
}

// ValueColumn is the contentattribute column holding values of type t.
// Foreign links have no value column.
func (t Type) ValueColumn() string {
	return types[t].column
}

// ValueType is the expression type of values of type t.
func (t Type) ValueType() expression.ValueType {
	if info, ok := types[t]; ok {
		return info.valueType
	}
	return expression.ValueUnknown
}

// SQLType is the column type used for quick columns of type t.
func (t Type) SQLType() string {
	return types[t].sqlType
}

// IsLink reports whether values of type t reference other objects.
func (t Type) IsLink() bool {
	return t == TypeLink || t == TypeForeignLink
}

// Attribute describes one entry of contentattributetype.
type Attribute struct {
	Name string
	Type Type
	// Optimized attributes are stored inline in contentmap in their quick column.
	Optimized bool
	// QuickName overrides the default quick column name quick_<name>.
	QuickName  string
	Multivalue bool
	// LinkedObjectType is the object type a link or foreign link points to.
	LinkedObjectType int
	// ForeignLinkAttribute is the attribute of the linked objects that points
	// back to the owner of a foreign link.
	ForeignLinkAttribute string
	ObjectTypes          []int
}

// QuickColumn is the contentmap column of an optimized attribute.
func (a *Attribute) QuickColumn() string {
	if a.QuickName != "" {
		return a.QuickName
	}
	return "quick_" + a.Name
}

// Catalog looks up attribute definitions by name.
type Catalog interface {
	Lookup(name string) (*Attribute, bool)
}

// MapCatalog is an in-memory Catalog.
type MapCatalog map[string]*Attribute

func NewMapCatalog(attrs ...Attribute) MapCatalog {
	c := make(MapCatalog, len(attrs))
	for i := range attrs {
		c.Add(attrs[i])
	}
	return c
}

func (c MapCatalog) Add(a Attribute) {
	c[a.Name] = &a
}

func (c MapCatalog) Lookup(name string) (*Attribute, bool) {
	a, ok := c[name]
	return a, ok
}

// Attributes returns all attributes sorted by name.
func (c MapCatalog) Attributes() []*Attribute {
	out := make([]*Attribute, 0, len(c))
	for _, a := range c {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
