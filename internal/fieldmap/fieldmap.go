// Package fieldmap loads the column definitions that drive CSV rendering.
//
// A field map is an ordered list of (column name, field path) pairs read
// from a CSV or YAML file:
//
//	header,path
//	id,id
//	class,exceptions[0].error_class
//	received_at,received_at
//
//	# the same as YAML
//	- header: id
//	  path: id
//	- header: class
//	  path: exceptions[0].error_class
//
// Output column order is declaration order. Names may repeat.
package fieldmap

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/bugsnag-events/internal/apperr"
)

// Column is one output column.
type Column struct {
	Name string
	Path Path
}

// FieldMap is an ordered, immutable list of columns.
type FieldMap struct {
	columns []Column
}

// New builds a FieldMap from columns in output order.
func New(columns ...Column) *FieldMap {
	return &FieldMap{columns: append([]Column(nil), columns...)}
}

// Columns returns a copy of the columns in output order.
func (m *FieldMap) Columns() []Column {
	return append([]Column(nil), m.columns...)
}

// Headers returns the column names in output order.
func (m *FieldMap) Headers() []string {
	h := make([]string, len(m.columns))
	for i, c := range m.columns {
		h[i] = c.Name
	}
	return h
}

// Len returns the number of columns.
func (m *FieldMap) Len() int { return len(m.columns) }

var errNoColumns = errors.New("no columns defined")

// Load reads a field map from path. Files ending in .yml or .yaml are parsed
// as YAML, anything else as CSV. Every failure is an *apperr.MappingLoadError.
func Load(path string) (*FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &apperr.MappingLoadError{Path: path, Err: err}
	}

	var m *FieldMap
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		m, err = ParseYAML(bytes.NewReader(data))
	default:
		m, err = ParseCSV(bytes.NewReader(data))
	}
	if err != nil {
		var lerr *apperr.MappingLoadError
		if errors.As(err, &lerr) {
			lerr.Path = path
			return nil, lerr
		}
		return nil, &apperr.MappingLoadError{Path: path, Err: err}
	}
	return m, nil
}

var (
	headerNames = map[string]bool{"header": true, "csv_header": true, "column": true}
	pathNames   = map[string]bool{"path": true, "field": true, "field_path": true, "source_field": true}
)

// ParseCSV reads two-column CSV rows of (column name, field path). A first
// row naming those columns is skipped. Blank lines and a leading UTF-8 BOM
// are ignored.
func ParseCSV(r io.Reader) (*FieldMap, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var columns []Column
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &apperr.MappingLoadError{Line: perr.StartLine, Err: perr.Err}
			}
			return nil, &apperr.MappingLoadError{Err: err}
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != 2 {
			return nil, &apperr.MappingLoadError{Line: line, Err: fmt.Errorf("expected 2 fields, got %d", len(rec))}
		}
		if row == 0 && isHeaderRow(rec) {
			continue
		}

		col, err := newColumn(rec[0], rec[1])
		if err != nil {
			return nil, &apperr.MappingLoadError{Line: line, Err: err}
		}
		columns = append(columns, col)
	}

	if len(columns) == 0 {
		return nil, &apperr.MappingLoadError{Err: errNoColumns}
	}
	return New(columns...), nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a UTF-8 byte order mark, as written by Excel and other
// Windows tools.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

func isHeaderRow(rec []string) bool {
	return headerNames[strings.ToLower(strings.TrimSpace(rec[0]))] &&
		pathNames[strings.ToLower(strings.TrimSpace(rec[1]))]
}

type yamlColumn struct {
	Header string `yaml:"header"`
	Path   string `yaml:"path"`
}

// ParseYAML reads a YAML sequence of {header, path} mappings.
func ParseYAML(r io.Reader) (*FieldMap, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, &apperr.MappingLoadError{Err: errNoColumns}
		}
		return nil, &apperr.MappingLoadError{Err: err}
	}

	var items []*yaml.Node
	if len(doc.Content) > 0 {
		list := doc.Content[0]
		if list.Kind != yaml.SequenceNode {
			return nil, &apperr.MappingLoadError{Line: list.Line, Err: errors.New("expected a list of columns")}
		}
		items = list.Content
	}

	columns := make([]Column, 0, len(items))
	for _, n := range items {
		var yc yamlColumn
		if err := n.Decode(&yc); err != nil {
			return nil, &apperr.MappingLoadError{Line: n.Line, Err: err}
		}
		col, err := newColumn(yc.Header, yc.Path)
		if err != nil {
			return nil, &apperr.MappingLoadError{Line: n.Line, Err: err}
		}
		columns = append(columns, col)
	}

	if len(columns) == 0 {
		return nil, &apperr.MappingLoadError{Err: errNoColumns}
	}
	return New(columns...), nil
}

func newColumn(name, path string) (Column, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return Column{}, errors.New("empty column name")
	}
	p, err := ParsePath(path)
	if err != nil {
		return Column{}, err
	}
	return Column{Name: name, Path: p}, nil
}
