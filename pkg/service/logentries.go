package service

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/events"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store/bdgr"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

const logEntriesTable = "logentries"

type logEntryDTO struct {
	ID      string             `json:"id"`
	Time    time.Time          `json:"time"`
	Type    model.LogEntryType `json:"type"`
	Package model.Package      `json:"package"`
}

type logEntryCodec struct{}

func (logEntryCodec) ID(e model.PackageLogEntry) string { return e.ID }

func (logEntryCodec) ToDTO(e model.PackageLogEntry) logEntryDTO {
	return logEntryDTO(e)
}

func (logEntryCodec) ToEntity(d logEntryDTO) (model.PackageLogEntry, error) {
	if _, err := ksuid.Parse(d.ID); err != nil {
		return model.PackageLogEntry{}, status.ErrInvalidArgument.Describe("log entry id %q", d.ID).Wrap(err)
	}
	return model.PackageLogEntry(d), nil
}

// LogEntries keeps the change log of the box.
//
// Entries are keyed by strictly increasing ksuids, so that listing them yields them in the order they were recorded.
type LogEntries struct {
	env  *bdgr.Env
	repo *bdgr.Repository[model.PackageLogEntry, logEntryDTO]
	ids  sequence
	*options
}

// sequence hands out strictly increasing ksuids.
//
// ksuid timestamps have a one second resolution: ids generated within the same second
// follow the last one handed out.
type sequence struct {
	mu   sync.Mutex
	last ksuid.KSUID
}

func (s *sequence) next(at time.Time) (ksuid.KSUID, error) {
	id, err := ksuid.NewRandomWithTime(at)
	if err != nil {
		return ksuid.Nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ksuid.Compare(id, s.last) <= 0 {
		id = s.last.Next()
	}
	s.last = id

	return id, nil
}

// NewLogEntries builds the change log service, stored in env
func NewLogEntries(env *bdgr.Env, opts ...Option) *LogEntries {
	return &LogEntries{
		env:     env,
		repo:    bdgr.NewRepository[model.PackageLogEntry, logEntryDTO](env, logEntriesTable, logEntryCodec{}),
		options: defaultOptions(opts),
	}
}

// Subscribe records package events from the bus. The returned function unsubscribes.
func (s *LogEntries) Subscribe(bus *events.Bus) (unsubscribe func()) {
	unsubscribers := []func(){
		events.Listen(bus, func(ctx context.Context, e model.PackageAdded) error {
			return s.Record(ctx, model.LogEntryAdd, e.Package)
		}),
		events.Listen(bus, func(ctx context.Context, e model.PackageUpdated) error {
			return s.Record(ctx, model.LogEntryUpdate, e.New)
		}),
		events.Listen(bus, func(ctx context.Context, e model.PackageRemoved) error {
			return s.Record(ctx, model.LogEntryRemove, model.Package{Section: e.ID.Section, Name: e.ID.Name})
		}),
	}
	return func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}
}

// Record a change made to a package, committed right away
func (s *LogEntries) Record(ctx context.Context, typ model.LogEntryType, pkg model.Package) error {
	at := s.now().UTC()
	id, err := s.ids.next(at)
	if err != nil {
		return status.ErrOperation.Describe("log entry id").Wrap(err)
	}
	entry := model.PackageLogEntry{
		ID:      id.String(),
		Time:    at,
		Type:    typ,
		Package: pkg,
	}

	_, err = s.env.Update(ctx, func(uow *bdgr.UnitOfWork) error {
		return s.repo.Add(ctx, uow, entry)
	})
	if err != nil {
		s.l.Error("could not record log entry", zap.String("type", string(typ)), zap.Stringer("package", pkg.ID()), zap.String("chain", errors.Chain(err)))
		return err
	}
	return nil
}

// Events lists all log entries, oldest first
func (s *LogEntries) Events(ctx context.Context) ([]model.PackageLogEntry, error) {
	var entries []model.PackageLogEntry
	err := s.env.View(ctx, func(uow *bdgr.UnitOfWork) error {
		var err error
		entries, err = s.repo.All(ctx, uow)
		return err
	})
	return entries, err
}
