package routing

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/jacksonlee411/registry-console/internal/logging"
)

// Router dispatches on exact paths first, then on "{param}" patterns whose
// values are exposed through Request.PathValue.
type Router struct {
	classifier *Classifier
	routes     map[string]map[string]routeEntry
	patterns   []patternRoutes
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

type patternRoutes struct {
	pattern PathPattern
	methods map[string]routeEntry
}

func NewRouter(classifier *Classifier) *Router {
	return &Router{
		classifier: classifier,
		routes:     make(map[string]map[string]routeEntry),
	}
}

func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	entry := routeEntry{rc: rc, handler: recoverer(rc, h)}
	if p, ok := parsePathPattern(path); ok {
		for i := range r.patterns {
			if r.patterns[i].pattern.raw == path {
				r.patterns[i].methods[method] = entry
				return
			}
		}
		r.patterns = append(r.patterns, patternRoutes{pattern: p, methods: map[string]routeEntry{method: entry}})
		return
	}
	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}
	r.routes[path][method] = entry
}

func recoverer(rc RouteClass, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error(logging.CatHTTP, "panic", "path", req.URL.Path, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
				WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		h.ServeHTTP(w, req)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		for _, p := range r.patterns {
			params, matched := p.pattern.Extract(req.URL.Path)
			if !matched {
				continue
			}
			for k, v := range params {
				req.SetPathValue(k, v)
			}
			methods, ok = p.methods, true
			break
		}
	}
	if !ok {
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
		return
	}
	entry, ok := methods[req.Method]
	if !ok {
		WriteError(w, req, entrypointClass(methods, r.classifier.Classify(req.URL.Path)), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	entry.handler.ServeHTTP(w, req)
}

func entrypointClass(methods map[string]routeEntry, fallback RouteClass) RouteClass {
	for _, e := range methods {
		return e.rc
	}
	return fallback
}
