package export

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/oneconcern/pacbox/pkg/export/status"
)

// Compression filter applied to database archives
type Compression string

// Supported compressions
const (
	CompressionZstd Compression = "zst"
	CompressionGzip Compression = "gz"
	CompressionXZ   Compression = "xz"

	DefaultCompression = CompressionZstd
)

// ParseCompression parses a compression name, such as "zst", ".gz" or "xz".
//
// An empty name yields the default compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "":
		return DefaultCompression, nil
	case "zst", "zstd":
		return CompressionZstd, nil
	case "gz", "gzip":
		return CompressionGzip, nil
	case "xz":
		return CompressionXZ, nil
	default:
		return "", status.ErrCompression.Describe("%q", s)
	}
}

func (c Compression) String() string {
	return string(c)
}

// Extension of archives compressed with this filter, without a leading dot
func (c Compression) Extension() string {
	return string(c)
}

// NewWriter wraps a writer with this compression filter.
//
// Closing the returned writer flushes the compressed stream, but does not close the underlying writer.
func (c Compression) NewWriter(w io.Writer) (io.WriteCloser, error) {
	var (
		compressor io.WriteCloser
		err        error
	)
	switch c {
	case CompressionZstd:
		compressor, err = zstd.NewWriter(w)
	case CompressionGzip:
		compressor, err = gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case CompressionXZ:
		compressor, err = xz.NewWriter(w)
	default:
		return nil, status.ErrCompression.Describe("%q", c)
	}
	if err != nil {
		return nil, status.ErrArchive.Wrap(err)
	}
	return compressor, nil
}
