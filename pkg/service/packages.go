package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/box"
	"github.com/oneconcern/pacbox/pkg/dlogger"
	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store/bdgr"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

// Publisher forwards committed events
type Publisher interface {
	Publish(context.Context, ...model.Event) error
}

// Option for services
type Option func(*options)

type options struct {
	l   *zap.Logger
	pub Publisher
	now func() time.Time
}

// Logger for the service
func Logger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.l = l
		}
	}
}

// WithPublisher sets where committed events are published
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		o.pub = p
	}
}

// Clock sets the time source of the service
func Clock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func defaultOptions(opts []Option) *options {
	o := &options{
		l:   dlogger.MustGetLogger(dlogger.LogLevelInfo),
		now: time.Now,
	}
	for _, apply := range opts {
		apply(o)
	}
	return o
}

// Packages manages the packages of the box
type Packages struct {
	box *box.Box
	*options
}

// NewPackages builds the package service
func NewPackages(b *box.Box, opts ...Option) *Packages {
	return &Packages{box: b, options: defaultOptions(opts)}
}

// Add packages, or new pool locations of known packages
func (s *Packages) Add(ctx context.Context, pkgs ...model.Package) error {
	return s.update(ctx, "add", func(uow *bdgr.UnitOfWork) error {
		for _, pkg := range pkgs {
			if err := s.box.Add(ctx, uow, pkg); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update packages at their pool location
func (s *Packages) Update(ctx context.Context, pkgs ...model.Package) error {
	return s.update(ctx, "update", func(uow *bdgr.UnitOfWork) error {
		for _, pkg := range pkgs {
			if err := s.box.Update(ctx, uow, pkg); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove packages, at all their pool locations. Unknown packages are ignored.
func (s *Packages) Remove(ctx context.Context, ids ...model.PackageID) error {
	return s.update(ctx, "remove", func(uow *bdgr.UnitOfWork) error {
		for _, id := range ids {
			if err := s.box.Remove(ctx, uow, id.String()); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveAt removes the description of a package at one pool location only
func (s *Packages) RemoveAt(ctx context.Context, id model.PackageID, loc model.PoolLocation) error {
	return s.update(ctx, "remove", func(uow *bdgr.UnitOfWork) error {
		return s.box.RemoveAt(ctx, uow, id, loc)
	})
}

// Move a package to another section
func (s *Packages) Move(ctx context.Context, id model.PackageID, to model.Section) error {
	return s.update(ctx, "move", func(uow *bdgr.UnitOfWork) error {
		return s.box.Move(ctx, uow, id, to)
	})
}

// List the packages of a section, at their preferred location
func (s *Packages) List(ctx context.Context, section model.Section) ([]model.Package, error) {
	if !s.box.HasSection(section) {
		return nil, status.ErrUnknownSection.Describe("%s", section)
	}

	var pkgs []model.Package
	err := s.box.View(ctx, func(uow *bdgr.UnitOfWork) error {
		var err error
		pkgs, err = s.box.FindBySection(ctx, uow, section)
		return err
	})
	return pkgs, err
}

// Get a package, at its preferred location
func (s *Packages) Get(ctx context.Context, id model.PackageID) (model.Package, error) {
	var pkg model.Package
	err := s.box.View(ctx, func(uow *bdgr.UnitOfWork) error {
		var err error
		pkg, err = s.box.FindByID(ctx, uow, id.String())
		return err
	})
	return pkg, err
}

func (s *Packages) update(ctx context.Context, op string, fn func(*bdgr.UnitOfWork) error) error {
	events, err := s.box.Env().Update(ctx, fn)
	if err != nil {
		s.l.Warn("package operation failed", zap.String("op", op), zap.String("chain", errors.Chain(err)))
		return err
	}
	s.l.Debug("package operation committed", zap.String("op", op), zap.Int("events", len(events)))

	if s.pub == nil || len(events) == 0 {
		return nil
	}
	if err = s.pub.Publish(ctx, events...); err != nil {
		s.l.Error("could not publish events", zap.String("op", op), zap.Int("events", len(events)), zap.Error(err))
	}
	return nil
}
