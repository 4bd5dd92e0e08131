// File: protocol/httpproc/router.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package httpproc

import (
	"sort"
	"strings"

	"github.com/momentics/hioload-async/api"
	"github.com/valyala/fasthttp"
)

// Endpoint produces the response for a routed request. A returned error is
// rendered by the ErrorHandler instead of resp.
type Endpoint func(req *fasthttp.Request, resp *fasthttp.Response) error

// Router dispatches on exact method and path. Routes are registered before
// serving starts; lookups are read-only and safe for concurrent use.
type Router struct {
	routes map[string]map[string]Endpoint
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]map[string]Endpoint)}
}

// Handle registers ep for method and path, replacing any previous route.
func (r *Router) Handle(method, path string, ep Endpoint) *Router {
	methods, ok := r.routes[path]
	if !ok {
		methods = make(map[string]Endpoint)
		r.routes[path] = methods
	}
	methods[strings.ToUpper(method)] = ep
	return r
}

// GET is shorthand for Handle(fasthttp.MethodGet, ...).
func (r *Router) GET(path string, ep Endpoint) *Router {
	return r.Handle(fasthttp.MethodGet, path, ep)
}

// POST is shorthand for Handle(fasthttp.MethodPost, ...).
func (r *Router) POST(path string, ep Endpoint) *Router {
	return r.Handle(fasthttp.MethodPost, path, ep)
}

// Route finds the endpoint for method and path.
func (r *Router) Route(method, path []byte) (Endpoint, error) {
	methods, ok := r.routes[string(path)]
	if !ok {
		return nil, api.NewError(api.ErrCodeNotFound, "no route").
			WithContext("path", string(path))
	}
	if ep, ok := methods[string(method)]; ok {
		return ep, nil
	}
	if string(method) == fasthttp.MethodHead {
		if ep, ok := methods[fasthttp.MethodGet]; ok {
			return ep, nil
		}
	}
	return nil, api.NewError(api.ErrCodeMethodNotAllowed, "method not allowed").
		WithContext("method", string(method)).
		WithContext("allow", r.allowed(methods))
}

func (r *Router) allowed(methods map[string]Endpoint) string {
	names := make([]string, 0, len(methods))
	for m := range methods {
		names = append(names, m)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
