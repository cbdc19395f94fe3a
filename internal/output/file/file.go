package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
)

const bufSize = 64 * 1024 // 64KB

// Option configures a file Output.
type Option func(*Output)

// WithKeep keeps up to n previous exports as {path}.1 .. {path}.n instead
// of overwriting them. 0 (default) truncates the existing file.
func WithKeep(n int) Option {
	return func(o *Output) { o.keep = n }
}

// Output writes CSV documents to a file with buffered I/O.
type Output struct {
	w    *bufio.Writer
	f    *os.File
	mu   sync.Mutex
	path string
	keep int
}

// New creates (or truncates) the file at path.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{path: path}
	for _, opt := range opts {
		opt(o)
	}
	if o.keep > 0 {
		if err := o.rotate(); err != nil {
			return nil, fmt.Errorf("file output: rotate: %w", err)
		}
	}
	if err := o.openFile(); err != nil {
		return nil, err
	}
	return o, nil
}

// Write appends the document to the file.
func (o *Output) Write(_ context.Context, csv string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.w.WriteString(csv); err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		o.f.Close()
		return fmt.Errorf("file output: flush: %w", err)
	}
	return o.f.Close()
}

// openFile creates or truncates the output file and wraps it in a bufio.Writer.
func (o *Output) openFile() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	o.f = f
	o.w = bufio.NewWriterSize(f, bufSize)
	return nil
}

// rotate shifts {path}.i to {path}.i+1, dropping anything past keep, and
// renames the current file to {path}.1. A missing file is not an error.
func (o *Output) rotate() error {
	if _, err := os.Stat(o.path); os.IsNotExist(err) {
		return nil
	}

	os.Remove(fmt.Sprintf("%s.%d", o.path, o.keep))
	for i := o.keep - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", o.path, i)
		to := fmt.Sprintf("%s.%d", o.path, i+1)
		os.Rename(from, to) // ignore errors: file may not exist
	}
	return os.Rename(o.path, o.path+".1")
}
