// Package watcher follows the manual pool location.
//
// Package files dropped by maintainers into <pool>/manual/<branch>/<repository>/<architecture>
// are added to the box as manual packages, and removed from it when deleted.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/dlogger"
	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/model"
)

const (
	signatureExt = ".sig"
	dirPerm      = 0o755
)

// ErrWatch is returned when the pool cannot be watched
var ErrWatch = errors.New("cannot watch pool")

// Store receives the changes found in the pool
type Store interface {
	Add(ctx context.Context, pkgs ...model.Package) error
	RemoveAt(ctx context.Context, id model.PackageID, loc model.PoolLocation) error
}

// Watcher of the manual pool location
type Watcher struct {
	dir      string
	sections map[string]model.Section
	store    Store
	l        *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	stopped chan struct{}
}

// Option for the watcher
type Option func(*Watcher)

// Logger for the watcher
func Logger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.l = l
		}
	}
}

// New watcher of the manual location under pool, for the given sections
func New(pool string, sections []model.Section, store Store, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      filepath.Join(pool, string(model.LocationManual)),
		sections: make(map[string]model.Section, len(sections)),
		store:    store,
		l:        dlogger.MustGetLogger(dlogger.LogLevelInfo),
	}
	for _, apply := range opts {
		apply(w)
	}
	for _, section := range sections {
		w.sections[w.SectionDir(section)] = section
	}
	return w
}

// SectionDir is the directory watched for a section
func (w *Watcher) SectionDir(section model.Section) string {
	return filepath.Join(w.dir, filepath.FromSlash(section.String()))
}

// Start watching. Package files already present are added first.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return ErrWatch.Wrap(err)
	}
	for dir := range w.sections {
		if err = os.MkdirAll(dir, dirPerm); err != nil {
			_ = fsw.Close()
			return ErrWatch.Describe("create %q", dir).Wrap(err)
		}
		if err = fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return ErrWatch.Describe("watch %q", dir).Wrap(err)
		}
	}

	if err = w.Scan(ctx); err != nil {
		_ = fsw.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.stopped = make(chan struct{})
	go w.run(ctx, fsw, w.stopped)

	w.l.Info("watching manual pool", zap.String("dir", w.dir), zap.Int("sections", len(w.sections)))
	return nil
}

// Stop watching
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fsw == nil {
		return nil
	}
	w.cancel()
	err := w.fsw.Close()
	<-w.stopped
	w.fsw = nil
	return err
}

// Scan adds all package files found in the watched directories
func (w *Watcher) Scan(ctx context.Context) error {
	var pkgs []model.Package
	for dir, section := range w.sections {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return ErrWatch.Describe("list %q", dir).Wrap(err)
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() || !model.IsPackageFile(path) {
				continue
			}
			pkg, err := w.parse(section, path)
			if err != nil {
				w.l.Warn("ignoring pool file", zap.String("path", path), zap.Error(err))
				continue
			}
			pkgs = append(pkgs, pkg)
		}
	}
	if len(pkgs) == 0 {
		return nil
	}
	return w.store.Add(ctx, pkgs...)
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher, stopped chan<- struct{}) {
	defer close(stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if err := w.handle(ctx, event); err != nil {
				w.l.Error("pool change not applied", zap.Stringer("event", event), zap.String("chain", errors.Chain(err)))
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.l.Error("pool watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) error {
	section, ok := w.sections[filepath.Dir(event.Name)]
	if !ok {
		return nil
	}

	path := event.Name
	if strings.HasSuffix(path, signatureExt) {
		// a signature change updates its package, if present
		path = strings.TrimSuffix(path, signatureExt)
		if !model.IsPackageFile(path) || !exists(path) {
			return nil
		}
		return w.add(ctx, section, path)
	}
	if !model.IsPackageFile(path) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		pkg, err := model.ParseFilename(section, path)
		if err != nil {
			return err
		}
		w.l.Info("manual package removed", zap.Stringer("package", pkg.ID()))
		return w.store.RemoveAt(ctx, pkg.ID(), model.LocationManual)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return w.add(ctx, section, path)
	default:
		return nil
	}
}

func (w *Watcher) add(ctx context.Context, section model.Section, path string) error {
	pkg, err := w.parse(section, path)
	if err != nil {
		return err
	}
	w.l.Info("manual package found", zap.Stringer("package", pkg.ID()), zap.Bool("signed", pkg.HasSignature))
	return w.store.Add(ctx, pkg)
}

func (w *Watcher) parse(section model.Section, path string) (model.Package, error) {
	pkg, err := model.ParseFilename(section, path)
	if err != nil {
		return model.Package{}, err
	}
	pkg.Location = model.LocationManual
	pkg.HasSignature = exists(path + signatureExt)
	return pkg, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
