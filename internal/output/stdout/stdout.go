package stdout

import (
	"context"
	"fmt"
	"io"
)

// Output writes CSV documents to stdout.
type Output struct {
	w io.Writer
}

// New creates an Output writing to w, normally os.Stdout.
func New(w io.Writer) *Output {
	return &Output{w: w}
}

func (o *Output) Write(_ context.Context, csv string) error {
	if _, err := io.WriteString(o.w, csv); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
