// Package apperr defines the error kinds shared across the export pipeline.
//
// ValidationError is the only kind that is ever merged: every component
// validates its own required inputs at construction, and the command
// collapses those failures into a single error carrying the union of
// offending attribute names. UpstreamError and MappingLoadError surface
// as soon as they happen.
package apperr

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ValidationError lists required inputs that were missing or invalid.
type ValidationError struct {
	Attributes []string
}

// NewValidationError returns a ValidationError for the given attribute names.
// Blank and repeated names are dropped; first-seen order is kept.
func NewValidationError(attrs ...string) *ValidationError {
	e := &ValidationError{}
	e.add(attrs...)
	return e
}

func (e *ValidationError) add(attrs ...string) {
	for _, a := range attrs {
		if a == "" || slices.Contains(e.Attributes, a) {
			continue
		}
		e.Attributes = append(e.Attributes, a)
	}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Attributes, ", ")
}

// Has reports whether attr is one of the offending attributes.
func (e *ValidationError) Has(attr string) bool {
	return slices.Contains(e.Attributes, attr)
}

// UpstreamError wraps a failure talking to the remote error-tracking API.
type UpstreamError struct {
	Op  string // e.g. "list events"
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MappingLoadError reports a field-map source that was supplied but could
// not be read or parsed.
type MappingLoadError struct {
	Path string
	Line int // 1-based; 0 when the failure is not tied to a line
	Err  error
}

func (e *MappingLoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("field map %s: line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("field map %s: %v", e.Path, e.Err)
}

func (e *MappingLoadError) Unwrap() error { return e.Err }

// Collapse reduces independently collected construction failures to the
// error a caller should see. All ValidationErrors are merged into one whose
// attributes are the de-duplicated union; if there are none, a single
// failure is returned unwrapped and several are returned as the multierror.
func Collapse(merr *multierror.Error) error {
	if merr == nil || len(merr.Errors) == 0 {
		return nil
	}

	var merged *ValidationError
	for _, err := range merr.Errors {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			continue
		}
		if merged == nil {
			merged = &ValidationError{}
		}
		merged.add(verr.Attributes...)
	}
	if merged != nil {
		return merged
	}

	if len(merr.Errors) == 1 {
		return merr.Errors[0]
	}
	return merr
}
