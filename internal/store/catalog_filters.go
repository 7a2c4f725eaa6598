package store

import (
	sq "github.com/Masterminds/squirrel"
)

type CatalogFilterFunc func(sq.SelectBuilder) sq.SelectBuilder

// CatalogQueryFilter narrows the attribute types returned by CatalogStore.Load.
type CatalogQueryFilter struct {
	filters []CatalogFilterFunc
}

func NewCatalogQueryFilter() *CatalogQueryFilter {
	return &CatalogQueryFilter{
		filters: make([]CatalogFilterFunc, 0),
	}
}

func (f *CatalogQueryFilter) Add(filter CatalogFilterFunc) *CatalogQueryFilter {
	f.filters = append(f.filters, filter)
	return f
}

func (f *CatalogQueryFilter) ByNames(names ...string) *CatalogQueryFilter {
	if len(names) == 0 {
		return f
	}
	return f.Add(func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(sq.Eq{catalogColName: names})
	})
}

// ByObjectTypes keeps attributes defined for one of objectTypes. Attributes
// registered without object type apply to all of them.
func (f *CatalogQueryFilter) ByObjectTypes(objectTypes ...int) *CatalogQueryFilter {
	if len(objectTypes) == 0 {
		return f
	}
	return f.Add(func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(sq.Or{
			sq.Eq{catalogColObjectType: objectTypes},
			sq.Eq{catalogColObjectType: 0},
		})
	})
}

func (f *CatalogQueryFilter) OptimizedOnly() *CatalogQueryFilter {
	return f.Add(func(b sq.SelectBuilder) sq.SelectBuilder {
		return b.Where(sq.Eq{catalogColOptimized: true})
	})
}

func (f *CatalogQueryFilter) Apply(builder sq.SelectBuilder) sq.SelectBuilder {
	for _, filter := range f.filters {
		builder = filter(builder)
	}
	return builder
}
