package store

import "database/sql"

// Store provides access to the attribute catalog and the content objects.
type Store struct {
	db      *sql.DB
	catalog *CatalogStore
	objects *ObjectStore
}

func NewStore(db *sql.DB) *Store {
	qi := newQueryInterceptor(db)
	return &Store{
		db:      db,
		catalog: NewCatalogStore(qi),
		objects: NewObjectStore(qi),
	}
}

func (s *Store) Catalog() *CatalogStore {
	return s.catalog
}

func (s *Store) Objects() *ObjectStore {
	return s.objects
}

func (s *Store) Close() error {
	return s.db.Close()
}
