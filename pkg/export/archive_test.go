package export

import (
	"archive/tar"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneconcern/pacbox/pkg/errors"
	"github.com/oneconcern/pacbox/pkg/export/status"
)

func TestParseCompression(t *testing.T) {
	for _, toPin := range []struct {
		Input    string
		Expected Compression
	}{
		{Input: "", Expected: CompressionZstd},
		{Input: "zstd", Expected: CompressionZstd},
		{Input: ".zst", Expected: CompressionZstd},
		{Input: "GZIP", Expected: CompressionGzip},
		{Input: "gz", Expected: CompressionGzip},
		{Input: "xz", Expected: CompressionXZ},
	} {
		testCase := toPin
		t.Run(testCase.Input, func(t *testing.T) {
			c, err := ParseCompression(testCase.Input)
			require.NoError(t, err)
			assert.Equal(t, testCase.Expected, c)
		})
	}

	_, err := ParseCompression("lz4")
	assert.True(t, errors.Is(err, status.ErrCompression))

	_, err = Compression("bz2").NewWriter(&strings.Builder{})
	assert.True(t, errors.Is(err, status.ErrCompression))
}

func TestArchiveWriter(t *testing.T) {
	long := strings.Repeat("a-very-long-package-name-", 7) + "1.0-1/desc"
	require.Greater(t, len(long), 160)

	for _, compression := range []Compression{CompressionZstd, CompressionGzip, CompressionXZ} {
		compression := compression
		t.Run(compression.String(), func(t *testing.T) {
			fs := afero.NewOsFs()
			path := filepath.Join(t.TempDir(), "core.db.tar."+compression.Extension())

			writer, err := createArchive(fs, path, compression)
			require.NoError(t, err)
			require.NoError(t, writer.WriteFile("foo-1.0-1/desc", []byte("%NAME%\nfoo\n\n")))
			require.NoError(t, writer.WriteFile(long, []byte("%NAME%\nlong\n\n")))
			require.NoError(t, writer.Close())
			require.NoError(t, writer.Close(), "closing twice is a no-op")

			entries := readArchive(t, fs, path, compression)
			require.Len(t, entries, 2)

			short := entries["foo-1.0-1/desc"]
			assert.Equal(t, "%NAME%\nfoo\n\n", short.Content)
			assert.Equal(t, tar.FormatUSTAR, short.Format)

			promoted := entries[long]
			assert.Equal(t, "%NAME%\nlong\n\n", promoted.Content)
			assert.Equal(t, tar.FormatPAX, promoted.Format)
		})
	}
}

func TestCreateArchiveFailure(t *testing.T) {
	_, err := createArchive(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/core.db.tar.zst", CompressionZstd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrFilesystem))
}
