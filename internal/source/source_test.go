package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func readAll(t *testing.T, r Reader) ([]string, []int64) {
	t.Helper()
	var lines []string
	var offsets []int64
	for {
		offsets = append(offsets, r.Tell())
		line, err := r.ReadRecord()
		if err == io.EOF {
			return lines, offsets
		}
		if err != nil {
			t.Fatalf("ReadRecord() error = %v, want nil", err)
		}
		lines = append(lines, line)
	}
}

func TestLineReader_StripsTerminators(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantLines   []string
		wantOffsets []int64
	}{
		{
			name:        "unix newlines",
			input:       "a\nbb\nccc\n",
			wantLines:   []string{"a", "bb", "ccc"},
			wantOffsets: []int64{0, 2, 5, 9},
		},
		{
			name:        "windows newlines counted in offsets",
			input:       "a\r\nbb\r\n",
			wantLines:   []string{"a", "bb"},
			wantOffsets: []int64{0, 3, 7},
		},
		{
			name:        "final line without terminator",
			input:       "first\nlast",
			wantLines:   []string{"first", "last"},
			wantOffsets: []int64{0, 6, 10},
		},
		{
			name:        "empty lines are records",
			input:       "\n\nx\n",
			wantLines:   []string{"", "", "x"},
			wantOffsets: []int64{0, 1, 2, 4},
		},
		{
			name:        "empty input",
			input:       "",
			wantLines:   nil,
			wantOffsets: []int64{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, offsets := readAll(t, NewStringReader(tt.input))
			if len(lines) != len(tt.wantLines) {
				t.Fatalf("lines = %q, want %q", lines, tt.wantLines)
			}
			for i := range lines {
				if lines[i] != tt.wantLines[i] {
					t.Errorf("line[%d] = %q, want %q", i, lines[i], tt.wantLines[i])
				}
			}
			for i := range offsets {
				if offsets[i] != tt.wantOffsets[i] {
					t.Errorf("offset[%d] = %d, want %d", i, offsets[i], tt.wantOffsets[i])
				}
			}
		})
	}
}

func TestLineReader_EOFIsSticky(t *testing.T) {
	r := NewStringReader("only\n")
	if _, err := r.ReadRecord(); err != nil {
		t.Fatalf("ReadRecord() error = %v, want nil", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := r.ReadRecord(); err != io.EOF {
			t.Errorf("ReadRecord() call %d error = %v, want io.EOF", i, err)
		}
	}
}

func TestLineReader_SeekTo(t *testing.T) {
	r := NewStringReader("one\ntwo\nthree\n")

	if err := r.SeekTo(4); err != nil {
		t.Fatalf("SeekTo() error = %v, want nil", err)
	}
	if r.Tell() != 4 {
		t.Errorf("Tell() = %d, want 4", r.Tell())
	}
	line, err := r.ReadRecord()
	if err != nil {
		t.Fatalf("ReadRecord() error = %v, want nil", err)
	}
	if line != "two" {
		t.Errorf("ReadRecord() = %q, want %q", line, "two")
	}
	if r.Tell() != 8 {
		t.Errorf("Tell() = %d, want 8", r.Tell())
	}

	// Seeking back discards buffered data.
	if err := r.SeekTo(0); err != nil {
		t.Fatalf("SeekTo(0) error = %v, want nil", err)
	}
	line, _ = r.ReadRecord()
	if line != "one" {
		t.Errorf("ReadRecord() after rewind = %q, want %q", line, "one")
	}

	if err := r.SeekTo(-1); err == nil {
		t.Error("SeekTo(-1) error = nil, want error")
	}
}

type failingReadSeeker struct{}

func (failingReadSeeker) Read([]byte) (int, error)       { return 0, errors.New("disk on fire") }
func (failingReadSeeker) Seek(int64, int) (int64, error) { return 0, nil }

func TestLineReader_PropagatesIOError(t *testing.T) {
	r := NewLineReader(failingReadSeeker{})
	_, err := r.ReadRecord()
	if err == nil || err == io.EOF {
		t.Fatalf("ReadRecord() error = %v, want I/O error", err)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("hello\nworld\n"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v, want nil", err)
	}
	defer f.Close()

	size, err := f.Size()
	if err != nil {
		t.Fatalf("Size() error = %v, want nil", err)
	}
	if size != 12 {
		t.Errorf("Size() = %d, want 12", size)
	}

	lines, _ := readAll(t, f)
	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "world" {
		t.Errorf("lines = %q, want [hello world]", lines)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Error("Open() missing file error = nil, want error")
	}
}

func TestReader_NotAnIOSeeker(t *testing.T) {
	readers := []Reader{NewLineReader(failingReadSeeker{}), &LogFile{LineReader: NewLineReader(failingReadSeeker{})}}
	for _, r := range readers {
		if _, ok := r.(io.Seeker); ok {
			t.Errorf("%T implements io.Seeker, want only SeekTo", r)
		}
	}
}
