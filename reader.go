package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// readChunkSize is the granularity at which the parser interleaves work
// with progress reporting and cancellation checks.
const readChunkSize = 64 * 1024

// ErrEncoding reports input that is fundamentally non-text. Most G-code is
// plain ASCII, so this only fires on binary input (e.g. a raw STL uploaded
// by mistake).
var ErrEncoding = errors.New("input is not text")

// LineReader lazily yields text lines from a byte source. Lines stream
// through a fixed-size buffer, so megabyte-scale files are never loaded as
// one allocation. Consumed byte counts drive progress estimation only,
// never correctness.
type LineReader struct {
	open     func() (io.ReadCloser, error)
	size     int64
	rc       io.ReadCloser
	br       *bufio.Reader
	consumed int64
	line     int
	sniffed  bool
}

// NewLineReader builds a reader from an opener so the sequence is
// restartable from the start. size is the total byte count when known,
// 0 otherwise (progress ratios then stay at 0).
func NewLineReader(open func() (io.ReadCloser, error), size int64) *LineReader {
	return &LineReader{open: open, size: size}
}

// BytesLineReader wraps an in-memory buffer (e.g. an uploaded file or a
// decompressed archive entry).
func BytesLineReader(data []byte) *LineReader {
	return NewLineReader(func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, int64(len(data)))
}

// FileLineReader opens a file on disk. A missing or unreadable file is a
// terminal I/O error: no partial result is possible.
func FileLineReader(path string) (*LineReader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return NewLineReader(func() (io.ReadCloser, error) {
		return os.Open(path)
	}, info.Size()), nil
}

func (r *LineReader) ensureOpen() error {
	if r.br != nil {
		return nil
	}
	rc, err := r.open()
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	r.rc = rc
	r.br = bufio.NewReaderSize(rc, readChunkSize)
	return nil
}

// Next returns the next line with its trailing newline (and any carriage
// return) stripped. It returns io.EOF after the final line. A final line
// without a newline is still returned.
func (r *LineReader) Next() (string, error) {
	if err := r.ensureOpen(); err != nil {
		return "", err
	}
	if !r.sniffed {
		if err := r.sniff(); err != nil {
			return "", err
		}
	}
	raw, err := r.br.ReadString('\n')
	r.consumed += int64(len(raw))
	if err != nil {
		if err == io.EOF {
			if raw == "" {
				return "", io.EOF
			}
			// Truncated final line, common with upload tools.
			r.line++
			return strings.TrimRight(raw, "\r"), nil
		}
		return "", fmt.Errorf("read line %d: %w", r.line+1, err)
	}
	r.line++
	return strings.TrimRight(raw, "\r\n"), nil
}

// sniff rejects binary input by checking the first buffered window for NUL
// bytes. Heuristic: text G-code never contains NUL.
func (r *LineReader) sniff() error {
	r.sniffed = true
	window, err := r.br.Peek(4096)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return fmt.Errorf("read source: %w", err)
	}
	if bytes.IndexByte(window, 0) >= 0 {
		return ErrEncoding
	}
	return nil
}

// Restart rewinds to the beginning of the source.
func (r *LineReader) Restart() error {
	if r.rc != nil {
		r.rc.Close()
		r.rc = nil
		r.br = nil
	}
	r.consumed = 0
	r.line = 0
	r.sniffed = false
	return nil
}

// Close releases the underlying source.
func (r *LineReader) Close() error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	r.br = nil
	return err
}

// Line returns the number of lines yielded so far.
func (r *LineReader) Line() int { return r.line }

// Consumed returns the number of source bytes consumed so far.
func (r *LineReader) Consumed() int64 { return r.consumed }

// Size returns the total source size in bytes, or 0 when unknown.
func (r *LineReader) Size() int64 { return r.size }

// Ratio estimates progress in [0,1] from consumed bytes.
func (r *LineReader) Ratio() float64 {
	if r.size <= 0 {
		return 0
	}
	ratio := float64(r.consumed) / float64(r.size)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}
