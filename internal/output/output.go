package output

import "context"

// Output defines the interface for CSV document destinations.
type Output interface {
	Write(ctx context.Context, csv string) error
	Close() error
}
