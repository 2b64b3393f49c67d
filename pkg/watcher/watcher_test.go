package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/model"
)

var stableCore = model.Section{Branch: "stable", Repository: "core", Architecture: "x86_64"}

// memStore keeps the manual packages reported by the watcher
type memStore struct {
	mu   sync.Mutex
	pkgs map[model.PackageID]model.Package
}

func newMemStore() *memStore {
	return &memStore{pkgs: make(map[model.PackageID]model.Package)}
}

func (m *memStore) Add(_ context.Context, pkgs ...model.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pkg := range pkgs {
		m.pkgs[pkg.ID()] = pkg
	}
	return nil
}

func (m *memStore) RemoveAt(_ context.Context, id model.PackageID, loc model.PoolLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pkg, ok := m.pkgs[id]; ok && pkg.Location == loc {
		delete(m.pkgs, id)
	}
	return nil
}

func (m *memStore) Get(id model.PackageID) (model.Package, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pkg, ok := m.pkgs[id]
	return pkg, ok
}

func writeFile(t testing.TB, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestWatcher(t *testing.T) {
	pool := t.TempDir()
	store := newMemStore()
	w := New(pool, []model.Section{stableCore}, store, Logger(zap.NewNop()))
	dir := w.SectionDir(stableCore)
	assert.Equal(t, filepath.Join(pool, "manual", "stable", "core", "x86_64"), dir)

	// files present before the watcher starts are picked up
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeFile(t, filepath.Join(dir, "bar-2.0-1-x86_64.pkg.tar.zst"), "bar")
	writeFile(t, filepath.Join(dir, "README"), "not a package")

	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	bar, ok := store.Get(model.PackageID{Section: stableCore, Name: "bar"})
	require.True(t, ok)
	assert.Equal(t, model.LocationManual, bar.Location)
	assert.Equal(t, "2.0-1", bar.Version.String())

	fooID := model.PackageID{Section: stableCore, Name: "foo"}
	fooPath := filepath.Join(dir, "foo-1.0-1-x86_64.pkg.tar.zst")
	writeFile(t, fooPath, "foo")
	require.Eventually(t, func() bool {
		_, ok := store.Get(fooID)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	foo, _ := store.Get(fooID)
	assert.Equal(t, fooPath, foo.Filepath)
	assert.Equal(t, "x86_64", foo.Architecture)
	assert.False(t, foo.HasSignature)

	writeFile(t, fooPath+".sig", "signature")
	require.Eventually(t, func() bool {
		foo, ok := store.Get(fooID)
		return ok && foo.HasSignature
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(fooPath))
	require.Eventually(t, func() bool {
		_, ok := store.Get(fooID)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcherIgnoresUnknownFiles(t *testing.T) {
	pool := t.TempDir()
	store := newMemStore()
	w := New(pool, []model.Section{stableCore}, store, Logger(zap.NewNop()))
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()), "starting twice is a no-op")

	dir := w.SectionDir(stableCore)
	writeFile(t, filepath.Join(dir, "garbage.pkg.tar.zst"), "bad name")
	writeFile(t, filepath.Join(dir, "notes.txt"), "text")
	writeFile(t, filepath.Join(dir, "baz-1.0-1-any.pkg.tar.xz"), "baz")

	require.Eventually(t, func() bool {
		_, ok := store.Get(model.PackageID{Section: stableCore, Name: "baz"})
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Len(t, store.pkgs, 1)
}
