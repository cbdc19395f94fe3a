package fieldmap

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses a value inside an event's field tree, e.g.
// "received_at", "exceptions[0].error_class" or "metaData.request.url".
// Bare numeric segments index lists too: "exception.0.message".
type Path struct {
	raw   string
	steps []step
}

type step struct {
	key     string
	index   int
	isIndex bool
}

// ParsePath parses a dotted path with optional [n] indices.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, fmt.Errorf("empty path")
	}

	var steps []step
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return Path{}, fmt.Errorf("path %q: empty segment", s)
		}

		key, rest, _ := strings.Cut(seg, "[")
		if strings.Contains(key, "]") {
			return Path{}, fmt.Errorf("path %q: unexpected ']'", s)
		}
		if key != "" {
			if n, err := strconv.Atoi(key); err == nil && n >= 0 {
				steps = append(steps, step{index: n, isIndex: true})
			} else {
				steps = append(steps, step{key: key})
			}
		}
		if rest == "" {
			if strings.Contains(seg, "[") {
				return Path{}, fmt.Errorf("path %q: unterminated index", s)
			}
			continue
		}

		// rest is "n]" or "n][m]..."
		for rest != "" {
			idx, after, ok := strings.Cut(rest, "]")
			if !ok {
				return Path{}, fmt.Errorf("path %q: unterminated index", s)
			}
			n, err := strconv.Atoi(idx)
			if err != nil || n < 0 {
				return Path{}, fmt.Errorf("path %q: invalid index %q", s, idx)
			}
			steps = append(steps, step{index: n, isIndex: true})
			if after == "" {
				break
			}
			if !strings.HasPrefix(after, "[") {
				return Path{}, fmt.Errorf("path %q: unexpected %q after index", s, after)
			}
			rest = after[1:]
		}
	}

	return Path{raw: s, steps: steps}, nil
}

// MustParsePath is ParsePath that panics on error. For literals in code and
// tests.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return p.raw }

// LastKey returns the key of the final step, or "" when it is an index.
func (p Path) LastKey() string {
	if len(p.steps) == 0 {
		return ""
	}
	last := p.steps[len(p.steps)-1]
	if last.isIndex {
		return ""
	}
	return last.key
}

// Lookup walks the path through nested maps and slices. ok is false when
// any step is absent: a missing key, an index past the end, or a step into
// a value that is not a container. An index step into a map looks up the
// decimal key.
func (p Path) Lookup(root any) (v any, ok bool) {
	v = root
	for _, s := range p.steps {
		if s.isIndex {
			v, ok = index(v, s.index)
		} else {
			v, ok = field(v, s.key)
		}
		if !ok {
			return nil, false
		}
	}
	return v, true
}

func field(v any, key string) (any, bool) {
	switch m := v.(type) {
	case map[string]any:
		x, ok := m[key]
		return x, ok
	case map[string]string:
		x, ok := m[key]
		return x, ok
	}
	return nil, false
}

func index(v any, i int) (any, bool) {
	switch s := v.(type) {
	case []any:
		if i < len(s) {
			return s[i], true
		}
	case []map[string]any:
		if i < len(s) {
			return s[i], true
		}
	case []string:
		if i < len(s) {
			return s[i], true
		}
	case map[string]any:
		x, ok := s[strconv.Itoa(i)]
		return x, ok
	}
	return nil, false
}
