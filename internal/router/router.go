// Package router resolves inbound method+path pairs to fully-qualified
// downstream endpoints. Route patterns use {name} placeholders matched one
// path segment at a time; no regular expressions are built at lookup time.
package router

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrRouteNotFound   = errors.New("router: route not found")
	ErrServiceNotFound = errors.New("router: service not found")
)

// Route maps an HTTP method and path pattern to a downstream service and
// target path template. Placeholders shared between pattern and target are
// substituted during resolution; a placeholder that appears only in the
// target is left verbatim.
type Route struct {
	Method  string
	Pattern string
	Service string
	Target  string

	segments []segment
}

type segment struct {
	literal string
	param   string // non-empty when the segment is a {name} placeholder
}

// Endpoint is the result of a successful resolution.
type Endpoint struct {
	Service string
	URL     string
	Params  map[string]string
}

// Router holds the route table and the service registry. Both are guarded
// by a lock so routes and services can be registered at runtime; lookups
// take the read side only.
type Router struct {
	mu       sync.RWMutex
	exact    map[string]Route   // "GET /api/v1/users"
	patterns map[string][]Route // parameterized routes by method
	services map[string]string  // service name -> base URL
}

// New builds an empty router.
func New() *Router {
	return &Router{
		exact:    make(map[string]Route),
		patterns: make(map[string][]Route),
		services: make(map[string]string),
	}
}

// RegisterService maps a service name to its base URL, replacing any prior
// registration.
func (r *Router) RegisterService(name, baseURL string) {
	name = strings.TrimSpace(name)
	baseURL = strings.TrimSpace(baseURL)
	if name == "" || baseURL == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = baseURL
}

// Register adds a route to the table. Registering the same method and
// pattern again replaces the prior entry.
func (r *Router) Register(route Route) error {
	route.Method = strings.ToUpper(strings.TrimSpace(route.Method))
	route.Pattern = normalizePath(route.Pattern)
	if route.Method == "" {
		return errors.New("router: method is required")
	}
	if route.Pattern == "" {
		return errors.New("router: pattern is required")
	}
	if strings.TrimSpace(route.Service) == "" {
		return errors.New("router: service is required")
	}

	segs, parameterized, err := splitPattern(route.Pattern)
	if err != nil {
		return err
	}
	route.segments = segs

	r.mu.Lock()
	defer r.mu.Unlock()

	if !parameterized {
		r.exact[route.Method+" "+route.Pattern] = route
		return nil
	}
	list := r.patterns[route.Method]
	for i, existing := range list {
		if existing.Pattern == route.Pattern {
			list[i] = route
			return nil
		}
	}
	r.patterns[route.Method] = append(list, route)
	return nil
}

// Resolve maps an inbound method and path to a downstream endpoint.
// Matching is exact-method only: a pattern registered for another verb does
// not satisfy the request.
func (r *Router) Resolve(method, path string) (Endpoint, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	path = normalizePath(path)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if route, ok := r.exact[method+" "+path]; ok {
		return r.endpoint(route, nil)
	}

	pathSegs := splitPath(path)
	for _, route := range r.patterns[method] {
		params, ok := matchSegments(route.segments, pathSegs)
		if !ok {
			continue
		}
		return r.endpoint(route, params)
	}
	return Endpoint{}, fmt.Errorf("%w: %s %s", ErrRouteNotFound, method, path)
}

func (r *Router) endpoint(route Route, params map[string]string) (Endpoint, error) {
	base, ok := r.services[route.Service]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrServiceNotFound, route.Service)
	}
	target := substitute(route.Target, params)
	url := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(target, "/")
	return Endpoint{Service: route.Service, URL: url, Params: params}, nil
}

// normalizePath strips the query string and the trailing slash; the root
// path stays "/".
func normalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return path
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

func splitPattern(pattern string) ([]segment, bool, error) {
	parts := splitPath(pattern)
	segs := make([]segment, 0, len(parts))
	parameterized := false
	for _, part := range parts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := strings.TrimSpace(part[1 : len(part)-1])
			if name == "" {
				return nil, false, fmt.Errorf("router: empty placeholder in pattern %q", pattern)
			}
			segs = append(segs, segment{param: name})
			parameterized = true
			continue
		}
		if strings.ContainsAny(part, "{}") {
			return nil, false, fmt.Errorf("router: malformed placeholder in pattern %q", pattern)
		}
		segs = append(segs, segment{literal: part})
	}
	return segs, parameterized, nil
}

// matchSegments compares pattern segments against path segments
// positionally. Placeholders capture exactly one segment, so they never
// match across slashes.
func matchSegments(segs []segment, pathSegs []string) (map[string]string, bool) {
	if len(segs) != len(pathSegs) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range segs {
		if seg.param != "" {
			if pathSegs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.param] = pathSegs[i]
			continue
		}
		if seg.literal != pathSegs[i] {
			return nil, false
		}
	}
	return params, true
}

func substitute(target string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(target, "{") {
		return target
	}
	for name, value := range params {
		target = strings.ReplaceAll(target, "{"+name+"}", value)
	}
	return target
}
