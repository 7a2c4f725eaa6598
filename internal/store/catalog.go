package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"

	"github.com/kubev2v/contentmap-filter/pkg/attribute"
	cfErrors "github.com/kubev2v/contentmap-filter/pkg/errors"
)

// Column name constants for the contentattributetype table
const (
	catalogColName                 = "name"
	catalogColObjectType           = "objecttype"
	catalogColAttributeType        = "attributetype"
	catalogColOptimized            = "optimized"
	catalogColQuickName            = "quickname"
	catalogColMultivalue           = "multivalue"
	catalogColLinkedObjectType     = "linkedobjecttype"
	catalogColForeignLinkAttribute = "foreignlinkattribute"
)

var identifierRegexp = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// CatalogStore reads and registers attribute types.
type CatalogStore struct {
	db QueryInterceptor
}

func NewCatalogStore(db QueryInterceptor) *CatalogStore {
	return &CatalogStore{db: db}
}

// Load returns the registered attribute types matching filter, or all of
// them for a nil filter. Rows of the same attribute for different object
// types are merged into one Attribute.
func (s *CatalogStore) Load(ctx context.Context, filter *CatalogQueryFilter) (attribute.MapCatalog, error) {
	builder := sq.Select(
		catalogColName,
		catalogColObjectType,
		catalogColAttributeType,
		catalogColOptimized,
		catalogColQuickName,
		catalogColMultivalue,
		catalogColLinkedObjectType,
		catalogColForeignLinkAttribute,
	).
		From(attribute.TypeTable).
		OrderBy(catalogColName, catalogColObjectType)

	if filter != nil {
		builder = filter.Apply(builder)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building catalog query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing catalog query: %w", err)
	}
	defer rows.Close()

	catalog := attribute.NewMapCatalog()
	for rows.Next() {
		var (
			a          attribute.Attribute
			objType    int
			typ        int
			quickName  sql.NullString
			foreignRef sql.NullString
		)
		if err := rows.Scan(&a.Name, &objType, &typ, &a.Optimized, &quickName, &a.Multivalue, &a.LinkedObjectType, &foreignRef); err != nil {
			return nil, fmt.Errorf("scanning attribute type row: %w", err)
		}
		a.Type = attribute.Type(typ)
		if !a.Type.Valid() {
			return nil, fmt.Errorf("attribute %s has unknown type %d", a.Name, typ)
		}
		a.QuickName = quickName.String
		a.ForeignLinkAttribute = foreignRef.String

		if existing, ok := catalog.Lookup(a.Name); ok {
			if objType != 0 {
				existing.ObjectTypes = append(existing.ObjectTypes, objType)
			}
			continue
		}
		if objType != 0 {
			a.ObjectTypes = []int{objType}
		}
		catalog.Add(a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attribute type rows: %w", err)
	}
	return catalog, nil
}

// Register stores a (or replaces its definition) and adds the quick column of
// optimized attributes to the map tables.
func (s *CatalogStore) Register(ctx context.Context, a attribute.Attribute) error {
	if err := validateAttribute(a); err != nil {
		return err
	}

	objectTypes := a.ObjectTypes
	if len(objectTypes) == 0 {
		objectTypes = []int{0}
	}

	builder := sq.Insert(attribute.TypeTable).
		Columns(
			catalogColName,
			catalogColObjectType,
			catalogColAttributeType,
			catalogColOptimized,
			catalogColQuickName,
			catalogColMultivalue,
			catalogColLinkedObjectType,
			catalogColForeignLinkAttribute,
		)
	for _, objType := range objectTypes {
		builder = builder.Values(a.Name, objType, int(a.Type), a.Optimized, nullString(a.QuickName),
			a.Multivalue, a.LinkedObjectType, nullString(a.ForeignLinkAttribute))
	}
	query, args, err := builder.
		Suffix(`ON CONFLICT (name, objecttype) DO UPDATE SET
			attributetype = EXCLUDED.attributetype,
			optimized = EXCLUDED.optimized,
			quickname = EXCLUDED.quickname,
			multivalue = EXCLUDED.multivalue,
			linkedobjecttype = EXCLUDED.linkedobjecttype,
			foreignlinkattribute = EXCLUDED.foreignlinkattribute`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building register query for %s: %w", a.Name, err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("registering attribute %s: %w", a.Name, err)
	}

	if !a.Optimized || a.Type.SQLType() == "" {
		return nil
	}
	for _, table := range []string{attribute.MapTable, attribute.MapTable + attribute.VersionSuffix} {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", table, a.QuickColumn(), a.Type.SQLType())
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("adding quick column for %s to %s: %w", a.Name, table, err)
		}
	}
	return nil
}

func validateAttribute(a attribute.Attribute) error {
	switch {
	case !identifierRegexp.MatchString(a.Name):
		return cfErrors.NewUnsupportedOperationError("register attribute", fmt.Sprintf("invalid attribute name %q", a.Name))
	case !a.Type.Valid():
		return cfErrors.NewUnsupportedOperationError("register attribute", fmt.Sprintf("unknown type %d of %s", a.Type, a.Name))
	case a.Type == attribute.TypeForeignLink && a.ForeignLinkAttribute == "":
		return cfErrors.NewUnsupportedOperationError("register attribute", fmt.Sprintf("foreign link %s has no foreign attribute", a.Name))
	case a.Optimized && !identifierRegexp.MatchString(a.QuickColumn()):
		return cfErrors.NewUnsupportedOperationError("register attribute", fmt.Sprintf("invalid quick column %q", a.QuickColumn()))
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
