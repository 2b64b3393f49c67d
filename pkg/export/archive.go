package export

import (
	"archive/tar"
	"io"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/oneconcern/pacbox/pkg/export/status"
)

const descPerm = 0o644

// archiveWriter writes a compressed tar archive to a file.
//
// Headers are written as USTAR whenever possible, and promoted to PAX when a
// field does not fit (e.g. long names).
type archiveWriter struct {
	path       string
	file       afero.File
	compressor io.WriteCloser
	tw         *tar.Writer
	modTime    time.Time
	closed     bool
}

func createArchive(fs afero.Fs, path string, compression Compression) (*archiveWriter, error) {
	file, err := fs.Create(path)
	if err != nil {
		return nil, status.ErrFilesystem.Describe("create archive %q", path).Wrap(err)
	}

	compressor, err := compression.NewWriter(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	return &archiveWriter{
		path:       path,
		file:       file,
		compressor: compressor,
		tw:         tar.NewWriter(compressor),
		modTime:    time.Now().Truncate(time.Second),
	}, nil
}

// WriteFile adds a regular file entry to the archive
func (a *archiveWriter) WriteFile(name string, content []byte) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     descPerm,
		Size:     int64(len(content)),
		ModTime:  a.modTime,
		Format:   tar.FormatPAX,
	}
	if err := a.tw.WriteHeader(hdr); err != nil {
		return status.ErrArchive.Describe("header for %q", name).Wrap(err)
	}
	if _, err := a.tw.Write(content); err != nil {
		return status.ErrArchive.Describe("content of %q", name).Wrap(err)
	}
	return nil
}

// Close flushes the archive, its compression filter and the file. It may be called several times.
func (a *archiveWriter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	var err error
	if e := a.tw.Close(); e != nil {
		err = multierr.Append(err, status.ErrArchive.Describe("close tar stream").Wrap(e))
	}
	if e := a.compressor.Close(); e != nil {
		err = multierr.Append(err, status.ErrArchive.Describe("close compression filter").Wrap(e))
	}
	if e := a.file.Close(); e != nil {
		err = multierr.Append(err, status.ErrFilesystem.Describe("close archive %q", a.path).Wrap(e))
	}
	return err
}
