package store

import (
	"context"

	"github.com/oneconcern/pacbox/pkg/model"
)

// A UnitOfWork bundles one store transaction and the changes staged against it.
//
// A unit of work is terminated by exactly one call to Commit or Rollback.
// A unit of work that is never committed does not have any effect on the store.
type UnitOfWork interface {
	Commit(context.Context) error
	Rollback() error

	// Refresh moves the read snapshot to the latest committed state, keeping staged changes
	Refresh() error

	// Events produced by the last successful commit
	Events() []model.Event
}

// ReadOnly queries entities of type E, using transaction handles of type T.
//
// All reads within a unit of work observe the same consistent snapshot.
type ReadOnly[E any, T any] interface {
	FindByID(ctx context.Context, tx T, id string) (E, error)
	FindFirst(ctx context.Context, tx T, predicate func(E) bool) (E, error)
	Find(ctx context.Context, tx T, predicate func(E) bool) ([]E, error)
	All(ctx context.Context, tx T) ([]E, error)
}

// ReadWrite stages changes to entities of type E.
//
// Changes are staged against the unit of work: nothing reaches the store until the unit of work is committed.
type ReadWrite[E any, T any] interface {
	ReadOnly[E, T]

	Add(ctx context.Context, tx T, entity E) error
	Update(ctx context.Context, tx T, entity E) error
	Remove(ctx context.Context, tx T, id string) error

	// EventStore returns the events produced by the most recent successful commit
	EventStore() []model.Event
}

// PackageRepository manages packages, partitioned by section
type PackageRepository[T any] interface {
	ReadWrite[model.Package, T]

	FindBySection(ctx context.Context, tx T, section model.Section) ([]model.Package, error)
	FindInSection(ctx context.Context, tx T, section model.Section, predicate func(model.Package) bool) ([]model.Package, error)

	// AcceptSection visits the package records of a section, in key order
	AcceptSection(ctx context.Context, tx T, section model.Section, visitor func(key string, record model.PackageRecord) Navigation) error
}
