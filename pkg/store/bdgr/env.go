// Package bdgr implements repositories and units of work on top of
// a badger embedded key-value store.
//
// All repositories sharing an Env share the same badger database: each entity type
// lives in its own key namespace (table). Write transactions are serialized by the
// Env, whereas reads run concurrently against consistent snapshots.
package bdgr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/dlogger"
	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/metrics"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

const (
	defaultCommitRetries = 5
	defaultRetryInterval = 10 * time.Millisecond
)

// Env owns the badger database shared by all repositories.
type Env struct {
	db  *badger.DB
	dir string

	// only one write transaction at a time
	commit  sync.Mutex
	commits atomic.Uint64

	retries       uint64
	retryInterval time.Duration
	onCommit      func(error)
	l             *zap.Logger
	close         sync.Once

	metrics.Enable
	m *metrics.StoreMetrics
}

// Option for the store environment
type Option func(*Env)

// Logger sets a logger for this environment
func Logger(logger *zap.Logger) Option {
	return func(e *Env) {
		if logger != nil {
			e.l = logger
		}
	}
}

// CommitRetries sets the number of times a commit is retried on a transaction conflict
func CommitRetries(n uint64, interval time.Duration) Option {
	return func(e *Env) {
		e.retries = n
		if interval > 0 {
			e.retryInterval = interval
		}
	}
}

// WithMetrics toggles the collection of commit metrics
func WithMetrics(enabled bool) Option {
	return func(e *Env) {
		e.EnableMetrics(enabled)
	}
}

// OnCommit registers a callback called after each commit attempt, with its outcome
func OnCommit(fn func(error)) Option {
	return func(e *Env) {
		e.onCommit = fn
	}
}

func defaultEnv() *Env {
	logger, _ := dlogger.GetLogger(dlogger.LogLevelInfo)
	return &Env{
		retries:       defaultCommitRetries,
		retryInterval: defaultRetryInterval,
		l:             logger,
	}
}

// Open a store environment in some directory.
//
// An empty directory opens an in-memory store.
func Open(dir string, opts ...Option) (*Env, error) {
	env := defaultEnv()
	for _, apply := range opts {
		apply(env)
	}
	env.dir = dir
	if env.MetricsEnabled() {
		env.m = env.EnsureMetrics("", &metrics.StoreMetrics{}).(*metrics.StoreMetrics)
	}

	bopts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{l: env.l.Sugar()}).
		WithLoggingLevel(badger.WARNING)
	if dir == "" {
		bopts = bopts.WithInMemory(true)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, status.ErrOperation.Wrap(fmt.Errorf("open store at %q: %w", dir, err))
	}
	env.db = db
	env.l.Debug("store opened", zap.String("dir", dir), zap.Bool("in-memory", dir == ""))

	return env, nil
}

// Close the store
func (e *Env) Close() error {
	var err error
	e.close.Do(func() {
		err = e.db.Close()
	})
	return err
}

// Begin a new unit of work.
//
// The unit of work reads from a snapshot taken now.
func (e *Env) Begin(ctx context.Context) (*UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newUnitOfWork(e), nil
}

// View runs fn within a unit of work which is always rolled back
func (e *Env) View(ctx context.Context, fn func(*UnitOfWork) error) error {
	uow, err := e.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = uow.Rollback() }()

	return fn(uow)
}

// Update runs fn within a unit of work, committed when fn succeeds and rolled back otherwise.
//
// When the commit conflicts with a concurrent one, fn is run again in a fresh unit of work,
// so fn must only stage changes. It returns the events produced by the commit.
func (e *Env) Update(ctx context.Context, fn func(*UnitOfWork) error) ([]model.Event, error) {
	var events []model.Event
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.retryInterval), e.retries),
		ctx,
	)

	err := backoff.Retry(func() error {
		var err error
		events, err = e.update(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, status.ErrConflict) {
			e.l.Debug("unit of work conflict, running again", zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	if err != nil {
		return nil, err
	}

	return events, nil
}

func (e *Env) update(ctx context.Context, fn func(*UnitOfWork) error) ([]model.Event, error) {
	uow, err := e.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if err = fn(uow); err != nil {
		_ = uow.Rollback()
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		_ = uow.Rollback()
		return nil, err
	}
	return uow.Events(), nil
}

// write applies a set of changes in one badger transaction, serialized with all other writers.
func (e *Env) write(ctx context.Context, apply func(*badger.Txn) error) (commit uint64, err error) {
	e.commit.Lock()
	defer e.commit.Unlock()

	start := time.Now()
	defer func() {
		if e.MetricsEnabled() {
			e.m.Commit(start, err)
		}
		if e.onCommit != nil {
			e.onCommit(err)
		}
	}()

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.retryInterval), e.retries),
		ctx,
	)

	err = backoff.Retry(func() error {
		txn := e.db.NewTransaction(true)
		defer txn.Discard()

		if err := apply(txn); err != nil {
			if errors.Is(err, badger.ErrConflict) {
				return err // retry
			}
			return backoff.Permanent(err)
		}

		if err := txn.Commit(); err != nil {
			if errors.Is(err, badger.ErrConflict) {
				e.l.Debug("commit conflict, retrying", zap.Error(err))
				return err // retry
			}
			return backoff.Permanent(err)
		}
		return nil
	}, policy)
	if err != nil {
		return 0, err
	}

	return e.commits.Inc(), nil
}

// badgerLogger routes badger logs to zap
type badgerLogger struct {
	l *zap.SugaredLogger
}

func (b badgerLogger) Errorf(format string, args ...interface{})   { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...interface{}) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...interface{})    { b.l.Infof(format, args...) }
func (b badgerLogger) Debugf(format string, args ...interface{})   { b.l.Debugf(format, args...) }
