// Package reference loads the read-only reference data of a run (reaction,
// compound, reference sequence and chemical network tables) into an
// immutable Context, and reads the compound input of a run.
package reference

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/TimothyStephens/magi/pkg/errors"
)

// Compression of a file, from its extension.
type Compression int

const (
	None Compression = iota
	Gzip
	Zstd
)

// CompressionOf detects compression from the file extension.
func CompressionOf(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// stripCompression removes a compression extension from path.
func stripCompression(path string) string {
	if CompressionOf(path) == None {
		return path
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading, decompressing .gz and .zst files.  "-"
// reads standard input.
func Open(path string) (io.ReadCloser, error) {
	var f *os.File
	if path == "-" {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to open "+path)
		}
	}
	return Decompress(f, CompressionOf(path))
}

// Decompress wraps an open file for the given compression.  Closing the
// result closes f.
func Decompress(f io.ReadCloser, c Compression) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		zr, err := gzip.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to read gzip stream")
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close, f.Close}}, nil
	case Zstd:
		zr, err := zstd.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to read zstd stream")
		}
		return &readCloser{Reader: zr, closers: []func() error{func() error { zr.Close(); return nil }, f.Close}}, nil
	default:
		return f, nil
	}
}

type writeCloser struct {
	io.Writer
	closers []func() error
}

func (w *writeCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Create creates path for writing, compressing .gz and .zst files.  "-"
// writes standard output.
func Create(path string) (io.WriteCloser, error) {
	var f io.WriteCloser
	if path == "-" {
		f = nopWriteCloser{os.Stdout}
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to create output directory")
		}
		file, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to create "+path)
		}
		f = file
	}
	return Compress(f, CompressionOf(path))
}

// Compress wraps w for the given compression.  Closing the result flushes
// the compressor and closes w.
func Compress(w io.WriteCloser, c Compression) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		zw := gzip.NewWriter(w)
		return &writeCloser{Writer: zw, closers: []func() error{zw.Close, w.Close}}, nil
	case Zstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			w.Close()
			return nil, errors.Wrap(err, errors.ErrCodeIO, "failed to create zstd stream")
		}
		return &writeCloser{Writer: zw, closers: []func() error{zw.Close, w.Close}}, nil
	default:
		return w, nil
	}
}
