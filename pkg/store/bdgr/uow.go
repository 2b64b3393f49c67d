package bdgr

import (
	"context"
	"runtime"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

var _ store.UnitOfWork = &UnitOfWork{}

// participant is a repository staging changes in a unit of work
type participant interface {
	// flush writes staged changes to a write transaction
	flush(txn *badger.Txn, staged interface{}) error

	// committed is called once the changes have been committed, and returns the resulting events
	committed(commit uint64, staged interface{}) []model.Event
}

// UnitOfWork is a badger-backed unit of work.
//
// It holds a read snapshot, and the changes staged by every repository used with it.
// Each repository owns its staging buffer exclusively.
//
// Units of work should be obtained through Env.View or Env.Update, which always terminate them.
// The snapshot of a unit of work dropped while still active is released once it is garbage collected.
type UnitOfWork struct {
	env *Env

	mu      sync.Mutex
	snap    *badger.Txn
	order   []participant
	buffers map[participant]interface{}
	events  []model.Event
	done    bool

	// versions of the keys looked up, 0 for a missing key
	reads map[string]uint64
}

func newUnitOfWork(env *Env) *UnitOfWork {
	u := &UnitOfWork{
		env:     env,
		snap:    env.db.NewTransaction(false),
		buffers: make(map[participant]interface{}),
		reads:   make(map[string]uint64),
	}
	runtime.SetFinalizer(u, (*UnitOfWork).release)

	return u
}

// release discards the snapshot of a unit of work left active
func (u *UnitOfWork) release() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.done {
		u.env.l.Debug("releasing abandoned unit of work")
		u.done = true
		u.snap.Discard()
	}
}

// Commit all staged changes as one atomic store transaction.
//
// It fails with status.ErrConflict when an entity read with FindByID has been changed by another commit since.
// On failure, nothing is written and staged changes are retained: the caller may retry or roll back.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return status.ErrDefunctTransaction
	}
	if err := ctx.Err(); err != nil {
		return status.ErrOperation.Wrap(err)
	}

	commit, err := u.env.write(ctx, func(txn *badger.Txn) error {
		if err := u.validate(txn); err != nil {
			return err
		}
		for _, p := range u.order {
			if err := p.flush(txn, u.buffers[p]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, status.ErrConflict) {
			return err
		}
		return status.ErrOperation.Wrap(err)
	}

	var events []model.Event
	for _, p := range u.order {
		events = append(events, p.committed(commit, u.buffers[p])...)
	}
	u.events = events
	u.terminate()

	return nil
}

// Rollback discards all staged changes
func (u *UnitOfWork) Rollback() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return status.ErrDefunctTransaction
	}
	u.terminate()

	return nil
}

// Refresh replaces the read snapshot by a new one, taken now.
//
// Staged changes are kept. Entities read before the refresh are still checked for
// conflicts at commit time, unless they are read again.
func (u *UnitOfWork) Refresh() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return status.ErrDefunctTransaction
	}
	u.snap.Discard()
	u.snap = u.env.db.NewTransaction(false)

	return nil
}

// Events produced by the commit of this unit of work
func (u *UnitOfWork) Events() []model.Event {
	u.mu.Lock()
	defer u.mu.Unlock()

	return append([]model.Event(nil), u.events...)
}

// Active tells if this unit of work may still be used
func (u *UnitOfWork) Active() bool {
	u.mu.Lock()
	defer u.mu.Unlock()

	return !u.done
}

func (u *UnitOfWork) terminate() {
	u.done = true
	u.snap.Discard()
	u.order = nil
	u.buffers = nil
	u.reads = nil
	runtime.SetFinalizer(u, nil)
}

// observe records the version of a key read from the snapshot
func (u *UnitOfWork) observe(key []byte, version uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.done {
		u.reads[string(key)] = version
	}
}

// validate checks that none of the keys read has changed since
func (u *UnitOfWork) validate(txn *badger.Txn) error {
	for key, version := range u.reads {
		var current uint64
		item, err := txn.Get([]byte(key))
		switch {
		case err == nil:
			current = item.Version()
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}
		if current != version {
			return status.ErrConflict.Describe("key %q changed since it was read", key)
		}
	}

	return nil
}

// snapshot returns the read transaction for this unit of work
func (u *UnitOfWork) snapshot() (*badger.Txn, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil, status.ErrDefunctTransaction
	}
	return u.snap, nil
}

// stage runs fn against the staging buffer of a participant, creating it if needed
func (u *UnitOfWork) stage(p participant, create func() interface{}, fn func(interface{})) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return status.ErrDefunctTransaction
	}

	buf, ok := u.buffers[p]
	if !ok {
		buf = create()
		u.buffers[p] = buf
		u.order = append(u.order, p)
	}
	fn(buf)

	return nil
}

// staged returns the staging buffer of a participant, if any
func (u *UnitOfWork) staged(p participant) (interface{}, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return nil, false, status.ErrDefunctTransaction
	}
	buf, ok := u.buffers[p]
	return buf, ok, nil
}
