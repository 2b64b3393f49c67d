package export

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"

	"github.com/oneconcern/pacbox/pkg/box"
	"github.com/oneconcern/pacbox/pkg/model"
	"github.com/oneconcern/pacbox/pkg/store/bdgr"
)

var (
	stableCore  = model.Section{Branch: "stable", Repository: "core", Architecture: "x86_64"}
	stableExtra = model.Section{Branch: "stable", Repository: "extra", Architecture: "x86_64"}
)

type fixture struct {
	root string
	pool string
	box  *box.Box
}

func newFixture(t testing.TB) *fixture {
	root := t.TempDir()
	env, err := bdgr.Open("", bdgr.Logger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	ctx := context.Background()
	sections := box.NewSectionRepository(env)
	require.NoError(t, box.SeedSections(ctx, env, sections, stableCore, stableExtra))

	b, err := box.New(ctx, env, sections,
		box.Logger(zap.NewNop()),
		box.Filesystem(afero.NewOsFs()),
		box.Dir(filepath.Join(root, "box")),
	)
	require.NoError(t, err)

	return &fixture{root: root, pool: filepath.Join(root, "pool"), box: b}
}

// poolFile creates a package file in the pool, with its signature when signed
func (f *fixture) poolFile(t testing.TB, loc model.PoolLocation, section model.Section, name, version string, signed bool) model.Package {
	path := filepath.Join(f.pool, string(loc), name+"-"+version+"-x86_64.pkg.tar.zst")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(name+" "+version), 0o600))
	if signed {
		require.NoError(t, os.WriteFile(path+".sig", []byte("signature"), 0o600))
	}

	return model.Package{
		Section:      section,
		Name:         name,
		Version:      model.ParseVersion(version),
		Architecture: "x86_64",
		Filepath:     path,
		HasSignature: signed,
		Location:     loc,
	}
}

func (f *fixture) add(t testing.TB, pkgs ...model.Package) {
	ctx := context.Background()
	_, err := f.box.Env().Update(ctx, func(uow *bdgr.UnitOfWork) error {
		for _, pkg := range pkgs {
			if err := f.box.Add(ctx, uow, pkg); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func (f *fixture) exporter(opts ...Option) *Exporter {
	return New(f.box, append([]Option{Logger(zap.NewNop()), Filesystem(afero.NewOsFs())}, opts...)...)
}

type archiveEntry struct {
	Content string
	Format  tar.Format
}

// readArchive decompresses and reads all entries of an archive
func readArchive(t testing.TB, fs afero.Fs, path string, compression Compression) map[string]archiveEntry {
	file, err := fs.Open(path)
	require.NoError(t, err)
	defer func() { _ = file.Close() }()

	var r io.Reader
	switch compression {
	case CompressionZstd:
		zr, err := zstd.NewReader(file)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	case CompressionGzip:
		gr, err := gzip.NewReader(file)
		require.NoError(t, err)
		r = gr
	case CompressionXZ:
		xr, err := xz.NewReader(file)
		require.NoError(t, err)
		r = xr
	}

	entries := make(map[string]archiveEntry)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := io.ReadAll(tr)
		require.NoError(t, err)
		entries[hdr.Name] = archiveEntry{Content: string(content), Format: hdr.Format}
	}
	return entries
}

func entryNames(entries map[string]archiveEntry) []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	return names
}
