// Package export materializes the box into package manager databases.
//
// For each dirty section, the exporter wipes the section directory, then writes
// a compressed database archive holding one desc entry per package, and symlinks
// the package files (and their signatures) from the pool into the section.
package export

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/dlogger"
	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/export/status"
	"github.com/oneconcern/pacbox/pkg/metrics"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store"
	"github.com/oneconcern/pacbox/pkg/store/bdgr"
	storestatus "github.com/oneconcern/pacbox/pkg/store/status"
)

const (
	dbSuffix      = ".db"
	archiveSuffix = ".db.tar."
	descFile      = "desc"
	sectionPerm   = 0o755
)

// ErrorPolicy tells what to do when a package cannot be exported
type ErrorPolicy string

// Error policies
const (
	// StopOnError aborts the export of the section: the section is left dirty
	StopOnError ErrorPolicy = "stop"

	// SkipOnError skips the package and carries on with the section
	SkipOnError ErrorPolicy = "skip"
)

// ParseErrorPolicy parses an error policy. An empty string yields StopOnError.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "", StopOnError:
		return StopOnError, nil
	case SkipOnError:
		return SkipOnError, nil
	default:
		return "", storestatus.ErrInvalidArgument.Describe("unknown export error policy %q", s)
	}
}

// Source is the package store exported by the exporter
type Source interface {
	View(ctx context.Context, fn func(*bdgr.UnitOfWork) error) error
	HasSection(model.Section) bool
	SectionDir(model.Section) string
	AcceptSection(ctx context.Context, tx *bdgr.UnitOfWork, section model.Section, visitor func(string, model.PackageRecord) store.Navigation) error
}

// Exporter writes package manager databases for dirty sections
type Exporter struct {
	source      Source
	dirty       *DirtySet
	fs          afero.Fs
	compression Compression
	policy      ErrorPolicy
	l           *zap.Logger

	// one pass at a time
	pass sync.Mutex

	metrics.Enable
	m *metrics.ExportMetrics
}

// Option for the exporter
type Option func(*Exporter)

// Logger for the exporter
func Logger(l *zap.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.l = l
		}
	}
}

// Filesystem the databases are written to. It must support symlinks.
func Filesystem(fs afero.Fs) Option {
	return func(e *Exporter) {
		if fs != nil {
			e.fs = fs
		}
	}
}

// WithCompression sets the compression of database archives
func WithCompression(c Compression) Option {
	return func(e *Exporter) {
		if c != "" {
			e.compression = c
		}
	}
}

// WithErrorPolicy sets what to do when a package cannot be exported
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(e *Exporter) {
		if p != "" {
			e.policy = p
		}
	}
}

// WithDirtySet shares a set of dirty sections with other components
func WithDirtySet(d *DirtySet) Option {
	return func(e *Exporter) {
		if d != nil {
			e.dirty = d
		}
	}
}

// WithMetrics toggles the collection of export metrics
func WithMetrics(enabled bool) Option {
	return func(e *Exporter) {
		e.EnableMetrics(enabled)
	}
}

// New exporter for a package store
func New(source Source, opts ...Option) *Exporter {
	e := &Exporter{
		source:      source,
		dirty:       NewDirtySet(),
		fs:          afero.NewOsFs(),
		compression: DefaultCompression,
		policy:      StopOnError,
		l:           dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
	for _, apply := range opts {
		apply(e)
	}
	if e.MetricsEnabled() {
		e.m = e.EnsureMetrics("export", &metrics.ExportMetrics{}).(*metrics.ExportMetrics)
	}
	return e
}

// Dirty returns the set of sections waiting for an export
func (e *Exporter) Dirty() *DirtySet {
	return e.dirty
}

// AddDirtySections marks sections for the next export pass
func (e *Exporter) AddDirtySections(sections ...model.Section) {
	e.dirty.Mark(sections...)
}

// ArchivePath is the path to the database archive of a section
func (e *Exporter) ArchivePath(section model.Section) string {
	return filepath.Join(e.source.SectionDir(section), section.Repository+archiveSuffix+e.compression.Extension())
}

// ExportToDisk runs one export pass over all dirty sections.
//
// Sections which could not be exported remain dirty. Sections marked while the pass runs are left for the next pass.
// A failure to clean up a section directory aborts the whole pass.
func (e *Exporter) ExportToDisk(ctx context.Context) (err error) {
	e.pass.Lock()
	defer e.pass.Unlock()

	sections := e.dirty.Drain()
	if len(sections) == 0 {
		return nil
	}
	e.l.Info("export pass started", zap.Int("sections", len(sections)))

	var failed []model.Section
	defer func() {
		e.dirty.Restore(failed...)
		if e.MetricsEnabled() {
			e.m.Pass(err, e.dirty.Len())
		}
	}()

	for i, section := range sections {
		if cerr := ctx.Err(); cerr != nil {
			failed = append(failed, sections[i:]...)
			return multierr.Append(err, cerr)
		}

		if !e.source.HasSection(section) {
			e.l.Warn("dropping unknown dirty section", zap.Stringer("section", section))
			err = multierr.Append(err, storestatus.ErrUnknownSection.Describe("%s", section))
			continue
		}

		fatal, serr := e.exportSection(ctx, section)
		if serr == nil {
			continue
		}
		err = multierr.Append(err, serr)
		if fatal {
			e.l.Error("export pass aborted", zap.Stringer("section", section), zap.String("chain", errors.Chain(serr)))
			failed = append(failed, sections[i:]...)
			return err
		}
		e.l.Error("section export failed", zap.Stringer("section", section), zap.String("chain", errors.Chain(serr)))
		failed = append(failed, section)
	}

	return err
}

// exportSection rebuilds the directory of a section. It reports whether a failure is fatal to the whole pass.
func (e *Exporter) exportSection(ctx context.Context, section model.Section) (fatal bool, err error) {
	start := time.Now()
	dir := e.source.SectionDir(section)
	l := e.l.With(zap.Stringer("section", section))
	l.Info("section export started")

	defer func() {
		if e.MetricsEnabled() {
			e.m.Section(start, err)
		}
	}()

	if err = e.cleanup(dir); err != nil {
		return true, err
	}

	archivePath := e.ArchivePath(section)
	writer, err := createArchive(e.fs, archivePath, e.compression)
	if err != nil {
		return false, err
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = Symlink(e.fs, archivePath, filepath.Join(dir, section.Repository+dbSuffix)); err != nil {
		return false, status.ErrSymlink.Describe("database link for %s", section).Wrap(err)
	}

	var (
		exported int
		skipped  int
		stopErr  error
	)
	err = e.source.View(ctx, func(uow *bdgr.UnitOfWork) error {
		return e.source.AcceptSection(ctx, uow, section, func(key string, record model.PackageRecord) store.Navigation {
			perr := e.exportPackage(writer, section, dir, key, record)
			if e.MetricsEnabled() {
				e.m.Package(perr)
			}
			if perr == nil {
				exported++
				return store.Next
			}

			if e.policy == SkipOnError {
				skipped++
				l.Warn("package skipped", zap.String("key", key), zap.String("chain", errors.Chain(perr)))
				return store.Next
			}
			stopErr = perr
			return store.Stop
		})
	})
	if stopErr != nil {
		return false, multierr.Append(stopErr, err)
	}
	if err != nil {
		if e.policy != SkipOnError || !errors.Is(err, storestatus.ErrEntityFind) {
			return false, err
		}
		// undecodable records are skipped like any other package
		l.Warn("undecodable records skipped", zap.String("chain", errors.Chain(err)))
		err = nil
	}

	if err = writer.Close(); err != nil {
		return false, err
	}

	fields := []zap.Field{zap.Int("packages", exported), zap.Int("skipped", skipped), zap.Duration("elapsed", time.Since(start))}
	if info, serr := e.fs.Stat(archivePath); serr == nil {
		fields = append(fields, zap.String("size", units.HumanSize(float64(info.Size()))))
		if e.MetricsEnabled() {
			e.m.Archive(info.Size(), e.compression.String())
		}
	}
	l.Info("section export finished", fields...)

	return false, nil
}

// cleanup removes all entries of a section directory, creating it if needed
func (e *Exporter) cleanup(dir string) error {
	if err := e.fs.MkdirAll(dir, sectionPerm); err != nil {
		return status.ErrFilesystem.Describe("create %q", dir).Wrap(err)
	}
	entries, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return status.ErrFilesystem.Describe("list %q", dir).Wrap(err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if err := e.fs.RemoveAll(path); err != nil {
			return status.ErrFilesystem.Describe("remove %q", path).Wrap(err)
		}
	}
	return nil
}

// exportPackage writes the description of a package to the archive, and links its files into the section
func (e *Exporter) exportPackage(writer *archiveWriter, section model.Section, dir, key string, record model.PackageRecord) error {
	id, err := model.ParsePackageID(key)
	if err != nil {
		return status.ErrInvalidKey.Describe("%q", key).Wrap(err)
	}
	if id.Section != section {
		return status.ErrInvalidKey.Describe("%q does not belong to section %s", key, section)
	}

	loc, ok := record.PreferredLocation()
	if !ok {
		return status.ErrNoLocation.Describe("%q", key)
	}
	description := record.Descriptions[loc]

	version, _ := description.Desc.Get(model.DescVersion)
	if version == "" {
		return status.ErrNoVersion.Describe("%q", key)
	}

	if err = writer.WriteFile(id.Name+"-"+version+"/"+descFile, []byte(description.Desc)); err != nil {
		return status.ErrWriteDesc.Describe("%s/%s-%s", section, id.Name, version).Wrap(err)
	}

	if err = Symlink(e.fs, description.Filepath, filepath.Join(dir, filepath.Base(description.Filepath))); err != nil {
		return status.ErrSymlink.Describe("package file for %s/%s-%s", section, id.Name, version).Wrap(err)
	}
	if description.HasSignature() {
		if err = Symlink(e.fs, description.SignaturePath, filepath.Join(dir, filepath.Base(description.SignaturePath))); err != nil {
			return status.ErrSymlink.Describe("signature file for %s/%s-%s", section, id.Name, version).Wrap(err)
		}
	}
	return nil
}
