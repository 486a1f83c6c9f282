// Package input turns log files into lazy line sequences. The decompressor
// is chosen by file extension; the rest of the loader only sees lines.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// maxLineSize bounds a single log line. Zeek lines with large vectors can
// exceed bufio's 64 KiB default.
const maxLineSize = 16 << 20

// LineSource is a lazy sequence of lines with the bufio.Scanner calling
// convention.
type LineSource interface {
	Next() bool
	Line() string
	Err() error
	Close() error
}

// Decompressor wraps a raw file stream.
type Decompressor func(r io.Reader) (io.ReadCloser, error)

var decompressors = map[string]Decompressor{
	".gz":   gunzip,
	".gzip": gunzip,
	".zst":  unzstd,
	".zstd": unzstd,
}

func gunzip(r io.Reader) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	return gz, nil
}

func unzstd(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("open zstd reader: %w", err)
	}
	return dec.IOReadCloser(), nil
}

// DecompressorFor returns the decompressor for path's extension, or nil for
// plain text.
func DecompressorFor(path string) Decompressor {
	return decompressors[strings.ToLower(filepath.Ext(path))]
}

// Open returns a LineSource over path, decompressing by extension.
// Stdin ("-") is read as plain text.
func Open(path string) (LineSource, error) {
	if path == Stdin {
		return NewLineSource(io.NopCloser(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "opening %s: %v", path, err)
	}
	dec := DecompressorFor(path)
	if dec == nil {
		return NewLineSource(f), nil
	}
	rc, err := dec(f)
	if err != nil {
		_ = f.Close()
		return nil, apperrors.Newf(apperrors.ErrInput, apperrors.ExitInput, "%s: %v", path, err)
	}
	return NewLineSource(&stackedCloser{ReadCloser: rc, under: f}), nil
}

// NewLineSource scans r line by line. Trailing carriage returns are removed.
func NewLineSource(r io.ReadCloser) LineSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &scannerSource{sc: sc, rc: r}
}

type scannerSource struct {
	sc   *bufio.Scanner
	rc   io.ReadCloser
	line string
}

func (s *scannerSource) Next() bool {
	if !s.sc.Scan() {
		return false
	}
	s.line = strings.TrimSuffix(s.sc.Text(), "\r")
	return true
}

func (s *scannerSource) Line() string { return s.line }

func (s *scannerSource) Err() error { return s.sc.Err() }

func (s *scannerSource) Close() error { return s.rc.Close() }

// stackedCloser closes the decompressor and then the file beneath it.
type stackedCloser struct {
	io.ReadCloser
	under io.Closer
}

func (s *stackedCloser) Close() error {
	err := s.ReadCloser.Close()
	if uerr := s.under.Close(); err == nil {
		err = uerr
	}
	return err
}
