package routing

import "strings"

// PathPattern matches paths segment by segment; "{name}" segments match any
// single non-empty segment. A parameter may be followed by a literal
// suffix, as in "{registry}:export".
type PathPattern struct {
	raw      string
	segments []string
}

func parsePathPattern(raw string) (PathPattern, bool) {
	if !strings.Contains(raw, "{") {
		return PathPattern{}, false
	}
	if raw == "" || raw[0] != '/' {
		return PathPattern{}, false
	}

	parts := splitPathSegments(raw)
	for _, s := range parts {
		if s == "" {
			return PathPattern{}, false
		}
		if strings.Contains(s, "{") || strings.Contains(s, "}") {
			if _, _, ok := paramSegment(s); !ok {
				return PathPattern{}, false
			}
		}
	}
	return PathPattern{raw: raw, segments: parts}, true
}

func (p PathPattern) Match(path string) bool {
	_, ok := p.Extract(path)
	return ok
}

// Extract returns the parameter values when path matches.
func (p PathPattern) Extract(path string) (map[string]string, bool) {
	if p.raw == "" {
		return nil, false
	}
	in := splitPathSegments(path)
	if len(in) != len(p.segments) {
		return nil, false
	}
	params := map[string]string{}
	for i, want := range p.segments {
		got := in[i]
		if got == "" {
			return nil, false
		}
		if name, suffix, ok := paramSegment(want); ok {
			v, found := strings.CutSuffix(got, suffix)
			if !found || v == "" {
				return nil, false
			}
			params[name] = v
			continue
		}
		if got != want {
			return nil, false
		}
	}
	return params, true
}

func splitPathSegments(path string) []string {
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// paramSegment parses "{name}" or "{name}suffix".
func paramSegment(s string) (name string, suffix string, ok bool) {
	if !strings.HasPrefix(s, "{") {
		return "", "", false
	}
	end := strings.Index(s, "}")
	if end < 2 {
		return "", "", false
	}
	suffix = s[end+1:]
	if strings.ContainsAny(suffix, "{}") {
		return "", "", false
	}
	return s[1:end], suffix, true
}
