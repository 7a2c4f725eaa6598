package attribute

import (
	"fmt"
	"strings"

	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

const (
	MapTable       = "contentmap"
	AttributeTable = "contentattribute"
	TypeTable      = "contentattributetype"
	VersionSuffix  = "_nodeversion"

	// MapPrefix and AttributePrefix prefix the aliases of contentmap and contentattribute.
	MapPrefix       = "cm"
	AttributePrefix = "ca"
)

// Kind tells where the column of an entry lives.
type Kind int

const (
	// KindMeta is a fixed contentmap column.
	KindMeta Kind = iota
	// KindOptimized is a quick column of contentmap.
	KindOptimized
	// KindNormal is a value column of a joined contentattribute row.
	KindNormal
	// KindLink is a reference to another object, stored optimized or normal.
	KindLink
	// KindForeignLink collects the objects referencing the owner.
	KindForeignLink
)

var kindNames = map[Kind]string{
	KindMeta:        "meta",
	KindOptimized:   "optimized",
	KindNormal:      "normal",
	KindLink:        "link",
	KindForeignLink: "foreignlink",
}

func (k Kind) String() string {
	return kindNames[k]
}

// MetaColumn is a fixed column of contentmap.
type MetaColumn struct {
	Name      string
	ValueType expression.ValueType
}

// MetaColumns in the order they are selected.
var MetaColumns = []MetaColumn{
	{"id", expression.ValueNumber},
	{"channel_id", expression.ValueNumber},
	{"channelset_id", expression.ValueNumber},
	{"obj_id", expression.ValueNumber},
	{"obj_type", expression.ValueNumber},
	{"contentid", expression.ValueString},
	{"updatetimestamp", expression.ValueNumber},
	{"mother_obj_id", expression.ValueNumber},
	{"mother_obj_type", expression.ValueNumber},
}

func metaColumn(name string) (MetaColumn, bool) {
	for _, m := range MetaColumns {
		if m.Name == name {
			return m, true
		}
	}
	return MetaColumn{}, false
}

// Join is a join fragment with its bind parameters.
type Join struct {
	Text   string
	Params []statement.Param
}

// ColumnNameEntry is the physical location of one attribute path.
type ColumnNameEntry struct {
	// Path is the attribute path without the object prefix.
	Path string
	// Column is the qualified column holding the value, e.g. ca3.value_text.
	Column string
	// Alias is the table alias Column belongs to.
	Alias string
	// Join makes Column available. Empty for columns of an already joined contentmap row.
	Join string
	JoinParams []statement.Param
	// TargetAlias is the contentmap alias of the linked objects of a link.
	TargetAlias string
	// TargetJoin joins the linked objects. Only used when the path is traversed.
	TargetJoin       string
	TargetJoinParams []statement.Param
	// Mandatory entries are always joined.
	Mandatory bool
	Kind      Kind
	Attribute *Attribute
	Parent    *ColumnNameEntry

	needed    bool
	traversed bool
}

// ValueType is the expression type of the column's values.
func (e *ColumnNameEntry) ValueType() expression.ValueType {
	if e.Kind == KindMeta {
		m, _ := metaColumn(e.Column[strings.LastIndexByte(e.Column, '.')+1:])
		return m.ValueType
	}
	return e.Attribute.Type.ValueType()
}

// Inline reports whether the column lives on a contentmap row and so holds
// at most one value per row.
func (e *ColumnNameEntry) Inline() bool {
	return e.Join == "" && e.Kind != KindForeignLink
}

// Needed reports whether the entry's joins are emitted.
func (e *ColumnNameEntry) Needed() bool {
	return e.Mandatory || e.needed || e.traversed
}

func (e *ColumnNameEntry) typeName() string {
	if e.Attribute == nil {
		return "meta column"
	}
	return e.Attribute.Type.String()
}

// Resolver maps attribute paths to column entries for one statement. Entries
// are created once per path, so repeated references share aliases and joins.
type Resolver struct {
	catalog Catalog
	aliases *statement.AliasAllocator
	version *int64
	main    string

	entries map[string]*ColumnNameEntry
	order   []*ColumnNameEntry
}

// NewResolver allocates the main contentmap alias from aliases. A non-nil
// version restricts every joined table to the rows valid at that timestamp.
func NewResolver(catalog Catalog, aliases *statement.AliasAllocator, version *int64) *Resolver {
	r := &Resolver{
		catalog: catalog,
		aliases: aliases,
		version: version,
		main:    aliases.Next(MapPrefix),
		entries: make(map[string]*ColumnNameEntry),
	}
	for _, m := range MetaColumns {
		r.add(&ColumnNameEntry{
			Path:      m.Name,
			Column:    r.main + "." + m.Name,
			Alias:     r.main,
			Mandatory: true,
			Kind:      KindMeta,
		})
	}
	return r
}

// MainAlias is the alias of the contentmap rows being filtered.
func (r *Resolver) MainAlias() string {
	return r.main
}

// MapTable is the contentmap table, versioned or not.
func (r *Resolver) MapTable() string {
	if r.version != nil {
		return MapTable + VersionSuffix
	}
	return MapTable
}

// AttributeTable is the contentattribute table, versioned or not.
func (r *Resolver) AttributeTable() string {
	if r.version != nil {
		return AttributeTable + VersionSuffix
	}
	return AttributeTable
}

// Versioned reports whether the resolver targets the version tables.
func (r *Resolver) Versioned() bool {
	return r.version != nil
}

// Resolve returns the entry of path, creating it and the entries of all its
// prefixes on first use.
func (r *Resolver) Resolve(path string) (*ColumnNameEntry, error) {
	path = strings.TrimPrefix(path, expression.ObjectPrefix+".")
	if e, ok := r.entries[path]; ok {
		return e, nil
	}

	var parent *ColumnNameEntry
	prev, name := r.main, path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		p, err := r.Resolve(path[:i])
		if err != nil {
			return nil, err
		}
		if p.Kind != KindLink && p.Kind != KindForeignLink {
			return nil, cfErrors.NewTypeMismatchError("attribute path", expression.ObjectPrefix+"."+path, "link", p.typeName())
		}
		parent, prev, name = p, p.TargetAlias, path[i+1:]
	}
	if name == "" {
		return nil, cfErrors.NewUnresolvedAttributeError(expression.ObjectPrefix + "." + path)
	}

	if _, ok := metaColumn(name); ok {
		e := &ColumnNameEntry{Path: path, Column: prev + "." + name, Alias: prev, Kind: KindMeta, Parent: parent}
		r.add(e)
		return e, nil
	}

	attr, ok := r.catalog.Lookup(name)
	if !ok {
		return nil, cfErrors.NewUnresolvedAttributeError(expression.ObjectPrefix + "." + path)
	}
	e, err := r.build(path, attr, prev, parent)
	if err != nil {
		return nil, err
	}
	r.add(e)
	return e, nil
}

func (r *Resolver) build(path string, attr *Attribute, prev string, parent *ColumnNameEntry) (*ColumnNameEntry, error) {
	e := &ColumnNameEntry{Path: path, Attribute: attr, Parent: parent}

	switch {
	case attr.Type == TypeForeignLink:
		foreign, ok := r.catalog.Lookup(attr.ForeignLinkAttribute)
		if !ok {
			return nil, cfErrors.NewUnresolvedAttributeError(expression.ObjectPrefix + "." + path + "." + attr.ForeignLinkAttribute)
		}
		var target string
		j := statement.NewMergedFilter()
		if foreign.Optimized {
			target = r.aliases.Next(MapPrefix)
			j.Append(fmt.Sprintf("LEFT JOIN %s %s ON (%s.%s = %s.contentid AND ",
				r.MapTable(), target, target, foreign.QuickColumn(), prev))
		} else {
			ca := r.aliases.Next(AttributePrefix)
			target = r.aliases.Next(MapPrefix)
			j.Append(fmt.Sprintf("LEFT JOIN %s %s ON (%s.name = ? AND %s.value_text = %s.contentid",
				r.AttributeTable(), ca, ca, ca, prev), statement.Value{V: foreign.Name})
			r.appendVersion(j, ca)
			j.Append(fmt.Sprintf(") LEFT JOIN %s %s ON (%s.id = %s.map_id AND ", r.MapTable(), target, target, ca))
		}
		r.appendChannels(j, target)
		r.appendVersion(j, target)
		j.Append(")")

		e.Kind = KindForeignLink
		e.Column = target + ".contentid"
		e.Alias = target
		e.TargetAlias = target
		e.TargetJoin, e.TargetJoinParams = j.Text(), j.Params()

	case attr.Optimized:
		e.Kind = KindOptimized
		e.Column = prev + "." + attr.QuickColumn()
		e.Alias = prev

	default:
		if attr.Type.ValueColumn() == "" {
			return nil, cfErrors.NewTypeMismatchError("attribute path", expression.ObjectPrefix+"."+path, "stored attribute", attr.Type.String())
		}
		ca := r.aliases.Next(AttributePrefix)
		j := statement.NewMergedFilter()
		j.Append(fmt.Sprintf("LEFT JOIN %s %s ON (%s.map_id = %s.id AND %s.name = ?",
			r.AttributeTable(), ca, ca, prev, ca), statement.Value{V: attr.Name})
		r.appendVersion(j, ca)
		j.Append(")")

		e.Kind = KindNormal
		e.Column = ca + "." + attr.Type.ValueColumn()
		e.Alias = ca
		e.Join, e.JoinParams = j.Text(), j.Params()
	}

	if attr.Type == TypeLink {
		target := r.aliases.Next(MapPrefix)
		j := statement.NewMergedFilter()
		j.Append(fmt.Sprintf("LEFT JOIN %s %s ON (%s.contentid = %s AND ", r.MapTable(), target, target, e.Column))
		r.appendChannels(j, target)
		r.appendVersion(j, target)
		j.Append(")")

		e.Kind = KindLink
		e.TargetAlias = target
		e.TargetJoin, e.TargetJoinParams = j.Text(), j.Params()
	}
	return e, nil
}

func (r *Resolver) add(e *ColumnNameEntry) {
	r.entries[e.Path] = e
	r.order = append(r.order, e)
}

func (r *Resolver) appendChannels(j *statement.MergedFilter, alias string) {
	j.Append(alias+".channel_id IN (?)", statement.ChannelIDs{})
}

func (r *Resolver) appendVersion(j *statement.MergedFilter, alias string) {
	if v := r.VersionPredicate(alias); v != nil {
		j.Append(" AND ").AppendFilter(v)
	}
}

// VersionPredicate restricts alias to the rows valid at the requested
// version. It is nil for unversioned resolvers.
func (r *Resolver) VersionPredicate(alias string) *statement.MergedFilter {
	if r.version == nil {
		return nil
	}
	ts := *r.version
	return statement.NewMergedFilter().Append(
		fmt.Sprintf("(%s.nodeversiontimestamp <= ? AND (%s.nodeversionremoved > ? OR %s.nodeversionremoved = 0))", alias, alias, alias),
		statement.Value{V: ts}, statement.Value{V: ts},
	)
}

// MarkNeeded flags e and every link it is reached through for joining.
func (r *Resolver) MarkNeeded(e *ColumnNameEntry) {
	e.needed = true
	if e.Kind == KindForeignLink {
		e.traversed = true
	}
	for p := e.Parent; p != nil; p = p.Parent {
		p.traversed = true
	}
}

// Entries returns all entries in creation order.
func (r *Resolver) Entries() []*ColumnNameEntry {
	return append([]*ColumnNameEntry(nil), r.order...)
}

// Joins returns the join fragments of all needed entries in creation order.
// Prefixes are created before the paths extending them, so every join only
// references aliases joined before it.
func (r *Resolver) Joins() []Join {
	var joins []Join
	for _, e := range r.order {
		if !e.Needed() {
			continue
		}
		if e.Join != "" {
			joins = append(joins, Join{Text: e.Join, Params: e.JoinParams})
		}
		if e.traversed && e.TargetJoin != "" {
			joins = append(joins, Join{Text: e.TargetJoin, Params: e.TargetJoinParams})
		}
	}
	return joins
}
