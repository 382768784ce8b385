package routing

import (
	"errors"
	"strings"
)

type RouteClass string

const (
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassAuthn       RouteClass = "authn"
	RouteClassOps         RouteClass = "ops"
	RouteClassUnknown     RouteClass = "unknown"
)

// Classifier maps a request path to its route class: allowlisted paths
// first, then the /{module}/api/* convention.
type Classifier struct {
	entrypoint        string
	allowExact        map[string]RouteClass
	allowPathPatterns []pathPatternRoute
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	exact := make(map[string]RouteClass, len(ep.Routes))
	var patterns []pathPatternRoute
	for _, r := range ep.Routes {
		if r.Path == "" || r.RouteClass == "" {
			return nil, errors.New("allowlist: invalid route")
		}
		if p, ok := parsePathPattern(r.Path); ok {
			patterns = append(patterns, pathPatternRoute{pattern: p, rc: RouteClass(r.RouteClass)})
			continue
		}
		exact[r.Path] = RouteClass(r.RouteClass)
	}
	return &Classifier{entrypoint: entrypoint, allowExact: exact, allowPathPatterns: patterns}, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if rc, ok := c.allowExact[path]; ok {
		return rc
	}
	for _, p := range c.allowPathPatterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}
	if isModuleInternalAPI(path) {
		return RouteClassInternalAPI
	}
	return RouteClassUnknown
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// isModuleInternalAPI matches /{module}/api and /{module}/api/*.
func isModuleInternalAPI(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	rest := strings.TrimPrefix(path, "/")
	module, after, ok := strings.Cut(rest, "/")
	if !ok || module == "" {
		return false
	}
	return hasPrefixSegment("/"+after, "/api")
}

type pathPatternRoute struct {
	pattern PathPattern
	rc      RouteClass
}
