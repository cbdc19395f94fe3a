// Package converter renders error events as CSV according to a field map.
package converter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/bugsnag-events/internal/apperr"
	"github.com/crimson-sun/bugsnag-events/internal/fieldmap"
	"github.com/crimson-sun/bugsnag-events/internal/model"
)

// TimeLayout is how timestamps are rendered, always in UTC with a literal
// " UTC" suffix appended.
const TimeLayout = "2006-01-02 15:04:05.000"

// CsvConverter turns events into CSV text. It is safe for concurrent use.
type CsvConverter struct {
	fields *fieldmap.FieldMap
}

// New validates csvMapPath and loads the field map from it. A blank path is
// an *apperr.ValidationError for "csv_map_path"; a path that can't be read
// or parsed is an *apperr.MappingLoadError.
func New(csvMapPath string) (*CsvConverter, error) {
	if csvMapPath == "" {
		return nil, apperr.NewValidationError("csv_map_path")
	}
	fm, err := fieldmap.Load(csvMapPath)
	if err != nil {
		return nil, err
	}
	return NewWithFieldMap(fm), nil
}

// NewWithFieldMap returns a converter for an already loaded field map.
func NewWithFieldMap(fm *fieldmap.FieldMap) *CsvConverter {
	return &CsvConverter{fields: fm}
}

// Headers returns the CSV header row.
func (c *CsvConverter) Headers() []string {
	return c.fields.Headers()
}

// Convert renders events as a CSV document: the header row, then one row
// per event in input order, each line ending in "\n".
func (c *CsvConverter) Convert(events []model.ErrorEvent) (string, error) {
	var buf bytes.Buffer
	if err := c.Write(&buf, events); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Write streams the same document Convert returns to w.
func (c *CsvConverter) Write(w io.Writer, events []model.ErrorEvent) error {
	cw := csv.NewWriter(w)
	columns := c.fields.Columns()

	if err := cw.Write(c.fields.Headers()); err != nil {
		return fmt.Errorf("converter: write header: %w", err)
	}

	row := make([]string, len(columns))
	for i, e := range events {
		tree := e.Fields()
		for j, col := range columns {
			v, _ := col.Path.Lookup(tree)
			if s, ok := v.(string); ok && isTimestampKey(col.Path.LastKey()) {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					v = t
				}
			}
			cell, err := Render(v)
			if err != nil {
				return fmt.Errorf("converter: event %s column %q: %w", eventRef(e, i), col.Name, err)
			}
			row[j] = cell
		}
		if len(row) == 1 && row[0] == "" {
			// A lone empty field would be a blank line, which readers skip.
			cw.Flush()
			if err := cw.Error(); err != nil {
				return fmt.Errorf("converter: flush: %w", err)
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return fmt.Errorf("converter: write row %d: %w", i+1, err)
			}
			continue
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("converter: write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("converter: flush: %w", err)
	}
	return nil
}

// isTimestampKey reports whether an attribute name follows the API's
// "<something>_at" timestamp convention.
func isTimestampKey(key string) bool {
	return strings.HasSuffix(key, "_at")
}

func eventRef(e model.ErrorEvent, i int) string {
	if e.ID != "" {
		return e.ID
	}
	return "#" + strconv.Itoa(i+1)
}

// Render returns the cell text for a value found in an event's field tree.
// nil renders as an empty cell; maps and lists render as compact JSON.
func Render(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return x.UTC().Format(TimeLayout) + " UTC", nil
	case json.Number:
		return x.String(), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case fmt.Stringer:
		return x.String(), nil
	case map[string]any, []any, []map[string]any, []string, map[string]string:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(x); err != nil {
			return "", err
		}
		return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
	}
	return fmt.Sprint(v), nil
}
