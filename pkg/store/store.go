package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no document matches the query.
	ErrNotFound = errors.New("store: document not found")

	// ErrDuplicateID is returned when inserting a document whose
	// identifier already exists.
	ErrDuplicateID = errors.New("store: duplicate document id")
)

// Entity is a persistable document. Fields returns the declared
// auditable fields only; the identifier and auto-maintained timestamps
// are bookkeeping and must not appear in it.
type Entity interface {
	EntityName() string
	EntityID() string
	Fields() map[string]any
}

// Filter is a flat field-equality query. Keys refer to the same field
// names an entity declares in Fields(), plus "_id" for identity.
type Filter map[string]any

// Store is the persistence interface business services operate on.
// Wrap it with audit.Audited to get change tracking on every write.
type Store[T Entity] interface {
	FindByID(ctx context.Context, id string) (T, error)
	FindOne(ctx context.Context, filter Filter) (T, error)
	Find(ctx context.Context, filter Filter) ([]T, error)

	// Insert persists a new document.
	Insert(ctx context.Context, entity T) error

	// Save replaces the persisted state of an existing document.
	Save(ctx context.Context, entity T) error

	// UpdateOne atomically sets fields on the first document matching
	// the filter.
	UpdateOne(ctx context.Context, filter Filter, set map[string]any) error

	// DeleteByID removes the document with the given identifier.
	DeleteByID(ctx context.Context, id string) error

	// DeleteOne removes the first document matching the filter.
	DeleteOne(ctx context.Context, filter Filter) error
}
