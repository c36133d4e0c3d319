// Package source provides sequential, seekable access to the lines of a log.
//
// A Reader yields one record (line) per call with terminators stripped and
// keeps a byte offset that counts the terminators, so Tell after a read is
// the offset of the next line.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reader is the record source consumed by the evaluation engine.
// ReadRecord returns io.EOF at end-of-stream; any other error is an I/O failure.
type Reader interface {
	ReadRecord() (string, error)
	SeekTo(offset int64) error
	Tell() int64
}

// LineReader reads lines from any io.ReadSeeker.
type LineReader struct {
	rs  io.ReadSeeker
	buf *bufio.Reader
	pos int64
}

// NewLineReader wraps rs, starting at its current position (assumed 0).
func NewLineReader(rs io.ReadSeeker) *LineReader {
	return &LineReader{
		rs:  rs,
		buf: bufio.NewReader(rs),
	}
}

// NewStringReader returns a reader over an in-memory log.
func NewStringReader(s string) *LineReader {
	return NewLineReader(strings.NewReader(s))
}

// ReadRecord returns the next line without its "\n" or "\r\n" terminator.
// A final line without terminator is returned as-is; the call after it
// returns io.EOF.
func (r *LineReader) ReadRecord() (string, error) {
	line, err := r.buf.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if len(line) == 0 {
		return "", io.EOF
	}
	r.pos += int64(len(line))

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// SeekTo repositions the reader at a byte offset. Buffered data is discarded.
func (r *LineReader) SeekTo(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("negative offset %d", offset)
	}
	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	r.buf.Reset(r.rs)
	r.pos = offset
	return nil
}

// Tell returns the byte offset of the next line to be read.
func (r *LineReader) Tell() int64 {
	return r.pos
}

// LogFile is a LineReader over an opened file.
type LogFile struct {
	*LineReader
	file *os.File
}

// Open opens a log file for sequential reading from offset 0.
func Open(path string) (*LogFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &LogFile{
		LineReader: NewLineReader(f),
		file:       f,
	}, nil
}

// Name returns the path the file was opened with.
func (f *LogFile) Name() string {
	return f.file.Name()
}

// Size returns the current file size in bytes.
func (f *LogFile) Size() (int64, error) {
	info, err := f.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close closes the underlying file.
func (f *LogFile) Close() error {
	return f.file.Close()
}
