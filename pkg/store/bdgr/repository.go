package bdgr

import (
	"context"
	"sync"

	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

// Codec maps an entity to its persisted projection (DTO) and back
type Codec[E any, D any] interface {
	// ID returns the string-encoded identity of the entity, used as its key
	ID(E) string
	ToDTO(E) D
	ToEntity(D) (E, error)
}

// ChangeKind qualifies a committed change
type ChangeKind int

// Kinds of committed changes
const (
	Added ChangeKind = iota
	Updated
	Removed
)

// Change is a change that has been committed to the store.
//
// Old is set when the entity existed before the commit, New when it exists after.
type Change[E any] struct {
	Kind ChangeKind
	ID   string
	Old  *E
	New  *E
}

// EventMapper maps the changes committed by a repository to domain events
type EventMapper[E any] func([]Change[E]) []model.Event

// RepositoryOption configures a repository
type RepositoryOption[E any] func(*repositoryOptions[E])

type repositoryOptions[E any] struct {
	events EventMapper[E]
}

// WithEvents sets the mapper producing domain events from committed changes
func WithEvents[E any](mapper EventMapper[E]) RepositoryOption[E] {
	return func(o *repositoryOptions[E]) {
		o.events = mapper
	}
}

// Repository is a generic badger-backed repository for entities of type E, persisted as DTOs of type D.
//
// All entities live under the key namespace "<table>:".
type Repository[E any, D any] struct {
	env    *Env
	table  string
	prefix []byte
	codec  Codec[E, D]
	events EventMapper[E]

	mu         sync.Mutex
	lastCommit uint64
	last       []model.Event
}

// NewRepository builds a repository for some table
func NewRepository[E any, D any](env *Env, table string, codec Codec[E, D], opts ...RepositoryOption[E]) *Repository[E, D] {
	var o repositoryOptions[E]
	for _, apply := range opts {
		apply(&o)
	}
	return &Repository[E, D]{
		env:    env,
		table:  table,
		prefix: tablePrefix(table),
		codec:  codec,
		events: o.events,
	}
}

// Table returns the name of the key namespace for this repository
func (r *Repository[E, D]) Table() string {
	return r.table
}

// FindByID looks up an entity by its id.
//
// The version read is remembered by the unit of work: its commit fails with
// status.ErrConflict if another commit changed this entity in the meantime.
func (r *Repository[E, D]) FindByID(ctx context.Context, tx *UnitOfWork, id string) (E, error) {
	var zero E
	if id == "" {
		return zero, status.ErrInvalidArgument.Describe("empty id")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	snap, err := tx.snapshot()
	if err != nil {
		return zero, err
	}

	key := tableKey(r.prefix, id)
	item, err := snap.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			tx.observe(key, 0)
			return zero, status.ErrEntityNotFound.Describe("%s %q", r.table, id)
		}
		return zero, status.ErrOperation.Wrap(err)
	}
	tx.observe(key, item.Version())

	return r.decodeItem(item)
}

// Accept visits all entities in key order, until the visitor returns store.Stop.
//
// Records that cannot be decoded are skipped: the scan goes on and
// all decoding errors are returned together once the scan completes.
func (r *Repository[E, D]) Accept(ctx context.Context, tx *UnitOfWork, visitor store.Visitor[E]) error {
	snap, err := tx.snapshot()
	if err != nil {
		return err
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = r.prefix
	it := snap.NewIterator(opts)
	defer it.Close()

	var errs error
	for it.Seek(r.prefix); it.ValidForPrefix(r.prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}

		item := it.Item()
		key := string(item.Key()[len(r.prefix):])

		entity, err := r.decodeItem(item)
		if err != nil {
			errs = multierr.Append(errs, status.ErrEntityFind.Describe("%s %q", r.table, key).Wrap(err))
			continue
		}

		if visitor(key, entity) == store.Stop {
			break
		}
	}

	return errs
}

// FindFirst returns the first entity in key order matching the predicate
func (r *Repository[E, D]) FindFirst(ctx context.Context, tx *UnitOfWork, predicate func(E) bool) (E, error) {
	var (
		result E
		found  bool
	)
	errs := r.Accept(ctx, tx, func(_ string, entity E) store.Navigation {
		if predicate(entity) {
			result, found = entity, true
			return store.Stop
		}
		return store.Next
	})
	if !found {
		return result, multierr.Append(status.ErrEntityNotFound.Describe("%s", r.table), errs)
	}
	return result, errs
}

// Find returns all entities matching the predicate, in key order.
//
// When some records cannot be decoded, the entities which could are returned together with the error.
func (r *Repository[E, D]) Find(ctx context.Context, tx *UnitOfWork, predicate func(E) bool) ([]E, error) {
	results := make([]E, 0, 10)
	errs := r.Accept(ctx, tx, func(_ string, entity E) store.Navigation {
		if predicate(entity) {
			results = append(results, entity)
		}
		return store.Next
	})
	return results, errs
}

// All entities, in key order
func (r *Repository[E, D]) All(ctx context.Context, tx *UnitOfWork) ([]E, error) {
	return r.Find(ctx, tx, store.Any[E])
}

// Add stages a new entity. An existing entity with the same id is overwritten on commit.
func (r *Repository[E, D]) Add(ctx context.Context, tx *UnitOfWork, entity E) error {
	return r.stageEntity(ctx, tx, opAdd, entity)
}

// Update stages an update to an entity
func (r *Repository[E, D]) Update(ctx context.Context, tx *UnitOfWork, entity E) error {
	return r.stageEntity(ctx, tx, opUpdate, entity)
}

// Remove stages the removal of an entity. Removing an entity that does not exist is not an error.
func (r *Repository[E, D]) Remove(ctx context.Context, tx *UnitOfWork, id string) error {
	if id == "" {
		return status.ErrInvalidArgument.Describe("empty id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var zero E
	return tx.stage(r, r.newChangeSet, func(buf interface{}) {
		buf.(*changeSet[E]).stage(id, opRemove, zero)
	})
}

// Pending returns the change staged for an id in this unit of work.
//
// It returns the staged entity and true if the entity is staged for an upsert,
// a zero entity and true if staged for removal, and false if nothing is staged.
func (r *Repository[E, D]) Pending(tx *UnitOfWork, id string) (E, bool, bool, error) {
	var zero E
	buf, ok, err := tx.staged(r)
	if err != nil || !ok {
		return zero, false, false, err
	}
	op, ok := buf.(*changeSet[E]).get(id)
	if !ok {
		return zero, false, false, nil
	}
	if op.kind == opRemove {
		return zero, true, false, nil
	}
	return op.entity, true, true, nil
}

// EventStore returns the events produced by the most recent successful commit of this repository
func (r *Repository[E, D]) EventStore() []model.Event {
	_, events := r.LastCommit()
	return events
}

// LastCommit returns the sequence number of the most recent successful commit of this repository, with its events
func (r *Repository[E, D]) LastCommit() (uint64, []model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastCommit, append([]model.Event(nil), r.last...)
}

func (r *Repository[E, D]) stageEntity(ctx context.Context, tx *UnitOfWork, kind opKind, entity E) error {
	id := r.codec.ID(entity)
	if id == "" {
		return status.ErrInvalidArgument.Describe("entity without id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.stage(r, r.newChangeSet, func(buf interface{}) {
		buf.(*changeSet[E]).stage(id, kind, entity)
	})
}

func (r *Repository[E, D]) newChangeSet() interface{} {
	return newChangeSet[E]()
}

// flush writes staged changes as upserts and deletes, and records the previous state of each entity
func (r *Repository[E, D]) flush(txn *badger.Txn, staged interface{}) error {
	changes := staged.(*changeSet[E])
	changes.resetPrior()

	return changes.each(func(id string, op *stagedOp[E]) error {
		key := tableKey(r.prefix, id)

		item, err := txn.Get(key)
		switch {
		case err == nil:
			old, derr := r.decodeItem(item)
			if derr != nil {
				r.env.l.Warn("previous record could not be decoded",
					zap.String("table", r.table), zap.String("id", id), zap.Error(derr))
				changes.recordPrior(id, nil)
			} else {
				changes.recordPrior(id, &old)
			}
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}

		if op.kind == opRemove {
			return txn.Delete(key)
		}

		data, err := jsoniter.Marshal(r.codec.ToDTO(op.entity))
		if err != nil {
			return status.ErrInvalidArgument.Describe("cannot encode %s %q", r.table, id).Wrap(err)
		}
		return txn.Set(key, data)
	})
}

// committed builds the events for the changes just written
func (r *Repository[E, D]) committed(commit uint64, staged interface{}) []model.Event {
	changes := staged.(*changeSet[E])

	var events []model.Event
	if r.events != nil {
		if committed := r.changes(changes); len(committed) > 0 {
			events = r.events(committed)
		}
	}

	r.mu.Lock()
	if commit > r.lastCommit {
		r.lastCommit = commit
		r.last = events
	}
	r.mu.Unlock()

	return events
}

func (r *Repository[E, D]) changes(set *changeSet[E]) []Change[E] {
	result := make([]Change[E], 0, set.len())
	_ = set.each(func(id string, op *stagedOp[E]) error {
		old, existed := set.priorOf(id)
		switch {
		case op.kind == opRemove && !existed:
			// removing an absent entity is a no-op
		case op.kind == opRemove:
			result = append(result, Change[E]{Kind: Removed, ID: id, Old: old})
		case existed:
			entity := op.entity
			result = append(result, Change[E]{Kind: Updated, ID: id, Old: old, New: &entity})
		default:
			entity := op.entity
			result = append(result, Change[E]{Kind: Added, ID: id, New: &entity})
		}
		return nil
	})
	return result
}

func (r *Repository[E, D]) decodeItem(item *badger.Item) (E, error) {
	var (
		zero E
		dto  D
	)
	if err := item.Value(func(v []byte) error {
		return jsoniter.Unmarshal(v, &dto)
	}); err != nil {
		return zero, err
	}
	return r.codec.ToEntity(dto)
}
