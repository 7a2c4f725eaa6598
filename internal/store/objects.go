package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	sq "github.com/Masterminds/squirrel"

	"github.com/kubev2v/contentmap-filter/pkg/attribute"
	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
	"github.com/kubev2v/contentmap-filter/pkg/expression"
	"github.com/kubev2v/contentmap-filter/pkg/statement"
)

const (
	attrColMapID     = "map_id"
	attrColName      = "name"
	attrColSortOrder = "sortorder"

	versionColTimestamp = "nodeversiontimestamp"
	versionColRemoved   = "nodeversionremoved"
)

var attributeColumns = []string{
	"id", attrColMapID, attrColName, attrColSortOrder,
	"value_text", "value_int", "value_clob", "value_blob", "value_long", "value_double", "value_date",
}

// Object is one contentmap row.
type Object struct {
	ID              int64
	ChannelID       int64
	ChannelSetID    int64
	ObjID           int64
	ObjType         int64
	ContentID       string
	UpdateTimestamp int64
	MotherObjID     int64
	MotherObjType   int64
	// Attributes holds the values written by Put, by attribute name.
	Attributes map[string][]any
}

// ObjectStore writes content objects and executes compiled filter statements.
type ObjectStore struct {
	db QueryInterceptor
}

func NewObjectStore(db QueryInterceptor) *ObjectStore {
	return &ObjectStore{db: db}
}

// Put inserts obj into the current tables and records the same state in the
// version tables at obj.UpdateTimestamp. It returns the new contentmap id.
func (s *ObjectStore) Put(ctx context.Context, catalog attribute.Catalog, obj Object) (int64, error) {
	if obj.ContentID == "" {
		obj.ContentID = strconv.FormatInt(obj.ObjType, 10) + "." + strconv.FormatInt(obj.ObjID, 10)
	}

	row := map[string]any{
		"channel_id":      obj.ChannelID,
		"channelset_id":   obj.ChannelSetID,
		"obj_id":          obj.ObjID,
		"obj_type":        obj.ObjType,
		"contentid":       obj.ContentID,
		"updatetimestamp": obj.UpdateTimestamp,
		"mother_obj_id":   obj.MotherObjID,
		"mother_obj_type": obj.MotherObjType,
	}

	type attrValue struct {
		attr   *attribute.Attribute
		values []any
	}
	var normal []attrValue
	for _, name := range sortedKeys(obj.Attributes) {
		a, ok := catalog.Lookup(name)
		if !ok {
			return 0, cfErrors.NewUnresolvedAttributeError(expression.ObjectPrefix + "." + name)
		}
		values := obj.Attributes[name]
		switch {
		case a.Type == attribute.TypeForeignLink:
			return 0, cfErrors.NewUnsupportedOperationError("put", fmt.Sprintf("foreign link %s is not stored", name))
		case a.Optimized:
			if len(values) > 1 {
				return 0, cfErrors.NewUnsupportedOperationError("put", fmt.Sprintf("optimized attribute %s holds a single value", name))
			}
			if len(values) == 1 {
				row[a.QuickColumn()] = values[0]
			}
		default:
			normal = append(normal, attrValue{attr: a, values: values})
		}
	}

	query, args, err := sq.Insert(attribute.MapTable).SetMap(row).Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("building insert for %s: %w", obj.ContentID, err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting object %s: %w", obj.ContentID, err)
	}

	for _, n := range normal {
		if len(n.values) == 0 {
			continue
		}
		builder := sq.Insert(attribute.AttributeTable).
			Columns(attrColMapID, attrColName, attrColSortOrder, n.attr.Type.ValueColumn())
		for i, v := range n.values {
			builder = builder.Values(id, n.attr.Name, i, v)
		}
		query, args, err := builder.ToSql()
		if err != nil {
			return 0, fmt.Errorf("building attribute insert for %s: %w", n.attr.Name, err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("inserting attribute %s of %s: %w", n.attr.Name, obj.ContentID, err)
		}
	}

	mapColumns := append([]string{"id"}, sortedKeys(row)...)
	if err := s.copyVersion(ctx, attribute.MapTable, mapColumns, sq.Eq{"id": id}, obj.UpdateTimestamp); err != nil {
		return 0, err
	}
	if err := s.copyVersion(ctx, attribute.AttributeTable, attributeColumns, sq.Eq{attrColMapID: id}, obj.UpdateTimestamp); err != nil {
		return 0, err
	}
	return id, nil
}

// copyVersion copies the rows of table matching where into its version twin.
func (s *ObjectStore) copyVersion(ctx context.Context, table string, columns []string, where sq.Eq, ts int64) error {
	sel := sq.Select(columns...).Column("CAST(? AS BIGINT) AS "+versionColTimestamp, ts).From(table).Where(where)
	query, args, err := sq.Insert(table + attribute.VersionSuffix).
		Columns(append(slices.Clone(columns), versionColTimestamp)...).
		Select(sel).
		ToSql()
	if err != nil {
		return fmt.Errorf("building version copy of %s: %w", table, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("copying %s into version table: %w", table, err)
	}
	return nil
}

// Remove deletes the object with contentmap id and closes its version rows at ts.
func (s *ObjectStore) Remove(ctx context.Context, id int64, ts int64) error {
	updates := []struct {
		table string
		key   string
	}{
		{attribute.MapTable + attribute.VersionSuffix, "id"},
		{attribute.AttributeTable + attribute.VersionSuffix, attrColMapID},
	}
	for _, u := range updates {
		query, args, err := sq.Update(u.table).
			Set(versionColRemoved, ts).
			Where(sq.Eq{u.key: id, versionColRemoved: 0}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building version close for %d: %w", id, err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("closing version rows of %d: %w", id, err)
		}
	}

	deletes := []sq.DeleteBuilder{
		sq.Delete(attribute.AttributeTable).Where(sq.Eq{attrColMapID: id}),
		sq.Delete(attribute.MapTable).Where(sq.Eq{"id": id}),
	}
	for _, d := range deletes {
		query, args, err := d.ToSql()
		if err != nil {
			return fmt.Errorf("building delete for %d: %w", id, err)
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deleting object %d: %w", id, err)
		}
	}
	return nil
}

// Query runs a compiled object statement. Columns after the meta columns
// (sort keys) are read and dropped.
func (s *ObjectStore) Query(ctx context.Context, stmt *statement.Statement) ([]Object, error) {
	rows, err := s.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("executing filter statement: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(columns) < len(attribute.MetaColumns) {
		return nil, fmt.Errorf("statement selects %d columns, objects need %d", len(columns), len(attribute.MetaColumns))
	}

	var result []Object
	for rows.Next() {
		var o Object
		dest := []any{
			&o.ID, &o.ChannelID, &o.ChannelSetID, &o.ObjID, &o.ObjType,
			&o.ContentID, &o.UpdateTimestamp, &o.MotherObjID, &o.MotherObjType,
		}
		for range columns[len(dest):] {
			dest = append(dest, new(any))
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning object row: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating object rows: %w", err)
	}
	return result, nil
}

// Count runs a compiled count statement.
func (s *ObjectStore) Count(ctx context.Context, stmt *statement.Statement) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("executing count statement: %w", err)
	}
	return n, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
