package box

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/dlogger"
	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store"
	"github.com/oneconcern/pacbox/pkg/store/bdgr"
	"github.com/oneconcern/pacbox/pkg/store/status"
)

const (
	packagesTable = "packages"
	dirPerm       = 0o755
)

var _ store.PackageRepository[*bdgr.UnitOfWork] = &Box{}

type recordRepository = bdgr.Repository[model.PackageRecord, recordDTO]

// Box is the package repository, partitioned by section.
//
// Every operation on a package is routed to the store of the package's section.
type Box struct {
	env      *bdgr.Env
	fs       afero.Fs
	dir      string
	l        *zap.Logger
	sections []model.Section
	stores   map[model.Section]*recordRepository
}

// Option for the box
type Option func(*Box)

// Logger for the box
func Logger(l *zap.Logger) Option {
	return func(b *Box) {
		if l != nil {
			b.l = l
		}
	}
}

// Filesystem used to create section directories and to describe package files
func Filesystem(fs afero.Fs) Option {
	return func(b *Box) {
		if fs != nil {
			b.fs = fs
		}
	}
}

// Dir is the root directory of the box on the filesystem
func Dir(dir string) Option {
	return func(b *Box) {
		b.dir = dir
	}
}

// New box, with one package store per section known by the section repository
func New(ctx context.Context, env *bdgr.Env, sections store.ReadOnly[model.Section, *bdgr.UnitOfWork], opts ...Option) (*Box, error) {
	b := &Box{
		env:    env,
		fs:     afero.NewOsFs(),
		dir:    ".",
		l:      dlogger.MustGetLogger(dlogger.LogLevelInfo),
		stores: make(map[model.Section]*recordRepository),
	}
	for _, apply := range opts {
		apply(b)
	}

	var known []model.Section
	if err := env.View(ctx, func(uow *bdgr.UnitOfWork) error {
		var err error
		known, err = sections.All(ctx, uow)
		return err
	}); err != nil {
		return nil, err
	}
	model.SortSections(known)

	for _, section := range known {
		dir := b.SectionDir(section)
		if err := b.fs.MkdirAll(dir, dirPerm); err != nil {
			return nil, status.ErrOperation.Describe("create section directory %q", dir).Wrap(err)
		}
		b.stores[section] = bdgr.NewRepository[model.PackageRecord, recordDTO](
			env,
			packagesTable+"/"+section.String(),
			recordCodec{},
			bdgr.WithEvents(recordEvents),
		)
		b.sections = append(b.sections, section)
	}
	b.l.Info("box opened", zap.String("dir", b.dir), zap.Int("sections", len(b.sections)))

	return b, nil
}

// Env returns the store environment shared by all sections
func (b *Box) Env() *bdgr.Env {
	return b.env
}

// View runs fn within a read-only unit of work
func (b *Box) View(ctx context.Context, fn func(*bdgr.UnitOfWork) error) error {
	return b.env.View(ctx, fn)
}

// Sections known by the box, sorted
func (b *Box) Sections() []model.Section {
	return append([]model.Section(nil), b.sections...)
}

// HasSection tells if a section is known by the box
func (b *Box) HasSection(section model.Section) bool {
	_, ok := b.stores[section]
	return ok
}

// SectionDir is the directory of a section on the filesystem
func (b *Box) SectionDir(section model.Section) string {
	return filepath.Join(b.dir, filepath.FromSlash(section.String()))
}

// FindByID looks up a package by its id, as rendered by model.PackageID.String()
func (b *Box) FindByID(ctx context.Context, tx *bdgr.UnitOfWork, id string) (model.Package, error) {
	pid, err := model.ParsePackageID(id)
	if err != nil {
		return model.Package{}, status.ErrInvalidArgument.Wrap(err)
	}
	repo, err := b.store(pid.Section)
	if err != nil {
		return model.Package{}, err
	}
	record, err := repo.FindByID(ctx, tx, id)
	if err != nil {
		return model.Package{}, err
	}
	pkg, ok := record.Preferred()
	if !ok {
		return model.Package{}, status.ErrEntityNotFound.Describe("package %q has no description", id)
	}
	return pkg, nil
}

// FindRecord looks up the record of a package, with its descriptions at all pool locations
func (b *Box) FindRecord(ctx context.Context, tx *bdgr.UnitOfWork, id model.PackageID) (model.PackageRecord, error) {
	repo, err := b.store(id.Section)
	if err != nil {
		return model.PackageRecord{}, err
	}
	return repo.FindByID(ctx, tx, id.String())
}

// FindFirst returns the first package matching the predicate, scanning sections in order
func (b *Box) FindFirst(ctx context.Context, tx *bdgr.UnitOfWork, predicate func(model.Package) bool) (model.Package, error) {
	var errs error
	for _, section := range b.sections {
		var (
			result model.Package
			found  bool
		)
		err := b.acceptPackages(ctx, tx, section, func(pkg model.Package) store.Navigation {
			if predicate(pkg) {
				result, found = pkg, true
				return store.Stop
			}
			return store.Next
		})
		errs = multierr.Append(errs, err)
		if found {
			return result, errs
		}
		if ctx.Err() != nil {
			return model.Package{}, errs
		}
	}
	return model.Package{}, multierr.Append(status.ErrEntityNotFound.Describe("package"), errs)
}

// Find all packages matching the predicate, by section then key order
func (b *Box) Find(ctx context.Context, tx *bdgr.UnitOfWork, predicate func(model.Package) bool) ([]model.Package, error) {
	var (
		results []model.Package
		errs    error
	)
	for _, section := range b.sections {
		found, err := b.FindInSection(ctx, tx, section, predicate)
		results = append(results, found...)
		errs = multierr.Append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return results, errs
}

// All packages, by section then key order
func (b *Box) All(ctx context.Context, tx *bdgr.UnitOfWork) ([]model.Package, error) {
	return b.Find(ctx, tx, store.Any[model.Package])
}

// FindBySection returns all packages of a section, in key order
func (b *Box) FindBySection(ctx context.Context, tx *bdgr.UnitOfWork, section model.Section) ([]model.Package, error) {
	return b.FindInSection(ctx, tx, section, store.Any[model.Package])
}

// FindInSection returns the packages of a section matching the predicate, in key order
func (b *Box) FindInSection(ctx context.Context, tx *bdgr.UnitOfWork, section model.Section, predicate func(model.Package) bool) ([]model.Package, error) {
	results := make([]model.Package, 0, 10)
	err := b.acceptPackages(ctx, tx, section, func(pkg model.Package) store.Navigation {
		if predicate(pkg) {
			results = append(results, pkg)
		}
		return store.Next
	})
	return results, err
}

// AcceptSection visits the package records of a section, in key order
func (b *Box) AcceptSection(ctx context.Context, tx *bdgr.UnitOfWork, section model.Section, visitor func(string, model.PackageRecord) store.Navigation) error {
	repo, err := b.store(section)
	if err != nil {
		return err
	}
	return repo.Accept(ctx, tx, visitor)
}

// Add a package, described at its pool location.
//
// Descriptions of the same package at other locations are kept. Adding a package again overwrites its description,
// and is a no-op when the description is unchanged.
func (b *Box) Add(ctx context.Context, tx *bdgr.UnitOfWork, pkg model.Package) error {
	return b.merge(ctx, tx, pkg)
}

// Update a package at its pool location. The package is created if it does not exist yet.
func (b *Box) Update(ctx context.Context, tx *bdgr.UnitOfWork, pkg model.Package) error {
	return b.merge(ctx, tx, pkg)
}

// Remove a package, at all its pool locations
func (b *Box) Remove(ctx context.Context, tx *bdgr.UnitOfWork, id string) error {
	pid, err := model.ParsePackageID(id)
	if err != nil {
		return status.ErrInvalidArgument.Wrap(err)
	}
	repo, err := b.store(pid.Section)
	if err != nil {
		return err
	}
	return repo.Remove(ctx, tx, id)
}

// RemoveAt removes the description of a package at one pool location only.
//
// The package is removed when it is left without any description.
func (b *Box) RemoveAt(ctx context.Context, tx *bdgr.UnitOfWork, id model.PackageID, loc model.PoolLocation) error {
	if err := id.Validate(); err != nil {
		return status.ErrInvalidArgument.Wrap(err)
	}
	repo, err := b.store(id.Section)
	if err != nil {
		return err
	}
	record, exists, err := b.current(ctx, tx, repo, id)
	if err != nil || !exists {
		return err
	}

	record = record.Without(loc)
	if record.IsEmpty() {
		return repo.Remove(ctx, tx, id.String())
	}
	return repo.Update(ctx, tx, record)
}

// Move a package to another section, in the same unit of work.
//
// Descriptions the destination already holds are kept, except at the pool locations the moved package is described at.
func (b *Box) Move(ctx context.Context, tx *bdgr.UnitOfWork, id model.PackageID, to model.Section) error {
	if _, err := b.store(to); err != nil {
		return err
	}
	repo, err := b.store(id.Section)
	if err != nil {
		return err
	}
	record, exists, err := b.current(ctx, tx, repo, id)
	if err != nil {
		return err
	}
	if !exists {
		return status.ErrEntityNotFound.Describe("package %q", id)
	}
	if id.Section == to {
		return nil
	}

	if err = repo.Remove(ctx, tx, id.String()); err != nil {
		return err
	}

	dest := b.stores[to]
	destID := model.PackageID{Section: to, Name: id.Name}
	existing, destExists, err := b.current(ctx, tx, dest, destID)
	if err != nil {
		return err
	}
	moved := model.NewPackageRecord(destID)
	for loc, desc := range existing.Descriptions {
		moved.Descriptions[loc] = desc
	}
	for loc, desc := range record.Descriptions {
		moved.Descriptions[loc] = desc
	}
	if destExists {
		return dest.Update(ctx, tx, moved)
	}
	return dest.Add(ctx, tx, moved)
}

// EventStore returns the events produced by the most recent successful commit involving the box
func (b *Box) EventStore() []model.Event {
	var (
		latest uint64
		events []model.Event
	)
	for _, section := range b.sections {
		commit, last := b.stores[section].LastCommit()
		switch {
		case commit > latest:
			latest, events = commit, last
		case commit == latest && commit > 0:
			events = append(events, last...)
		}
	}
	return events
}

// Describe builds the description of a package, with the size and checksum of its artifact when available
func (b *Box) Describe(pkg model.Package) (model.Description, error) {
	desc := model.DescribePackage(pkg)

	f, err := b.fs.Open(pkg.Filepath)
	if err != nil {
		if os.IsNotExist(err) {
			b.l.Debug("package file not found, describing without checksum", zap.String("path", pkg.Filepath))
			return desc, nil
		}
		return model.Description{}, status.ErrOperation.Describe("open %q", pkg.Filepath).Wrap(err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return model.Description{}, status.ErrOperation.Describe("read %q", pkg.Filepath).Wrap(err)
	}
	desc.Desc = desc.Desc.
		With(model.DescCSize, strconv.FormatInt(size, 10)).
		With(model.DescSHA256Sum, hex.EncodeToString(h.Sum(nil)))

	return desc, nil
}

func (b *Box) merge(ctx context.Context, tx *bdgr.UnitOfWork, pkg model.Package) error {
	id := pkg.ID()
	if err := id.Validate(); err != nil {
		return status.ErrInvalidArgument.Wrap(err)
	}
	if loc := pkg.Location; loc != model.LocationUnset && !loc.Valid() {
		return status.ErrInvalidArgument.Describe("unknown pool location %q", loc)
	}
	repo, err := b.store(id.Section)
	if err != nil {
		return err
	}

	record, exists, err := b.current(ctx, tx, repo, id)
	if err != nil {
		return err
	}
	desc, err := b.Describe(pkg)
	if err != nil {
		return err
	}

	if known, ok := record.Descriptions[pkg.Location.OrDefault()]; exists && ok && known == desc {
		return nil
	}

	record = record.With(pkg, desc)
	if exists {
		return repo.Update(ctx, tx, record)
	}
	return repo.Add(ctx, tx, record)
}

// current returns the record of a package as seen by the unit of work: staged changes first, then the snapshot
func (b *Box) current(ctx context.Context, tx *bdgr.UnitOfWork, repo *recordRepository, id model.PackageID) (model.PackageRecord, bool, error) {
	key := id.String()

	staged, isStaged, upsert, err := repo.Pending(tx, key)
	if err != nil {
		return model.PackageRecord{}, false, err
	}
	if isStaged {
		if upsert {
			return staged, true, nil
		}
		return model.NewPackageRecord(id), false, nil
	}

	record, err := repo.FindByID(ctx, tx, key)
	switch {
	case err == nil:
		return record, true, nil
	case errors.Is(err, status.ErrEntityNotFound):
		return model.NewPackageRecord(id), false, nil
	default:
		return model.PackageRecord{}, false, err
	}
}

func (b *Box) acceptPackages(ctx context.Context, tx *bdgr.UnitOfWork, section model.Section, visitor func(model.Package) store.Navigation) error {
	return b.AcceptSection(ctx, tx, section, func(_ string, record model.PackageRecord) store.Navigation {
		pkg, ok := record.Preferred()
		if !ok {
			return store.Next
		}
		return visitor(pkg)
	})
}

func (b *Box) store(section model.Section) (*recordRepository, error) {
	repo, ok := b.stores[section]
	if !ok {
		return nil, status.ErrUnknownSection.Describe("%s", section)
	}
	return repo, nil
}

// recordEvents maps committed record changes to package events
func recordEvents(changes []bdgr.Change[model.PackageRecord]) []model.Event {
	events := make([]model.Event, 0, len(changes))
	for _, change := range changes {
		switch change.Kind {
		case bdgr.Removed:
			id, err := model.ParsePackageID(change.ID)
			if err != nil && change.Old != nil {
				id = change.Old.ID
			}
			events = append(events, model.PackageRemoved{ID: id})

		case bdgr.Updated:
			pkg, ok := change.New.Preferred()
			if !ok {
				continue
			}
			if change.Old == nil {
				events = append(events, model.PackageAdded{Package: pkg})
				continue
			}
			old, ok := change.Old.Preferred()
			if !ok {
				events = append(events, model.PackageAdded{Package: pkg})
				continue
			}
			events = append(events, model.PackageUpdated{Old: old, New: pkg})

		case bdgr.Added:
			if pkg, ok := change.New.Preferred(); ok {
				events = append(events, model.PackageAdded{Package: pkg})
			}
		}
	}
	return events
}
