package multi

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/crimson-sun/bugsnag-events/internal/output"
)

// Multi fans out documents to multiple output.Output implementations.
// Each Write call delivers the document to every wrapped output sequentially.
// If one output fails, the remaining outputs still receive it.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi that fans out to the given outputs.
func New(outputs ...output.Output) *Multi {
	return &Multi{outputs: outputs}
}

// Write delivers csv to every wrapped output. Errors are collected
// but do not prevent delivery to subsequent outputs.
func (m *Multi) Write(ctx context.Context, csv string) error {
	var errs *multierror.Error
	for _, o := range m.outputs {
		if err := o.Write(ctx, csv); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Close calls Close on every wrapped output, collecting errors.
func (m *Multi) Close() error {
	var errs *multierror.Error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
