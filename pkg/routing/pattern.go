package routing

import (
	"fmt"
	"strings"
)

// Pattern matches a host/pathname pair and yields named capture groups.
// Path patterns use ":name" for single-segment parameters and "*name"
// for a trailing catch-all. An empty Host matches any host.
type Pattern struct {
	host     string
	segments []segment
	raw      string
}

type segment struct {
	literal  string
	name     string // parameter or catch-all name; empty for literals
	catchAll bool
}

// CompilePattern parses a path pattern such as "/posts/:id" or
// "/files/*path".
func CompilePattern(raw string) (*Pattern, error) {
	return CompileHostPattern("", raw)
}

// CompileHostPattern parses a pattern constrained to an exact host. An
// empty host leaves the pattern host-agnostic.
func CompileHostPattern(host, raw string) (*Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("routing: pattern %q must start with /", raw)
	}

	p := &Pattern{host: host, raw: raw}
	for i, seg := range splitPath(raw) {
		switch {
		case strings.HasPrefix(seg, "*"):
			name := seg[1:]
			if name == "" {
				return nil, fmt.Errorf("routing: pattern %q: catch-all needs a name", raw)
			}
			if i != len(splitPath(raw))-1 {
				return nil, fmt.Errorf("routing: pattern %q: catch-all must be last", raw)
			}
			p.segments = append(p.segments, segment{name: name, catchAll: true})
		case strings.HasPrefix(seg, ":"):
			name := seg[1:]
			if name == "" {
				return nil, fmt.Errorf("routing: pattern %q: parameter needs a name", raw)
			}
			p.segments = append(p.segments, segment{name: name})
		case seg == "":
			return nil, fmt.Errorf("routing: pattern %q has an empty segment", raw)
		default:
			p.segments = append(p.segments, segment{literal: seg})
		}
	}
	return p, nil
}

// MustCompilePattern is CompilePattern that panics on error, for
// building static route tables.
func MustCompilePattern(raw string) *Pattern {
	p, err := CompilePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the raw pattern.
func (p *Pattern) String() string { return p.raw }

// Match tests the pattern against a host and an already-normalized path.
// On success it returns the named captures.
func (p *Pattern) Match(host, path string) (map[string]string, bool) {
	if p.host != "" && !hostEqual(p.host, host) {
		return nil, false
	}

	parts := splitPath(path)
	params := make(map[string]string)

	for i, seg := range p.segments {
		if seg.catchAll {
			if i >= len(parts) {
				return nil, false
			}
			params[seg.name] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}
		switch {
		case seg.name != "":
			params[seg.name] = parts[i]
		case seg.literal != parts[i]:
			return nil, false
		}
	}

	if len(parts) != len(p.segments) {
		return nil, false
	}
	return params, true
}

// splitPath splits a path into segments, treating "/" as empty.
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// hostEqual compares hosts ignoring case and any port on the request
// side.
func hostEqual(want, got string) bool {
	if i := strings.LastIndexByte(got, ':'); i != -1 && !strings.Contains(got[i:], "]") {
		got = got[:i]
	}
	return strings.EqualFold(want, got)
}
