package server

import "net/http"

// Router sends a fixed set of exact paths to their handlers and every
// other path to the command handler.
//
// http.ServeMux is not used for the command space because it redirects
// paths containing "//", "." or ".." segments to their cleaned form, and
// those segments are legitimate command arguments: GET /GET/.. reads the
// key "..".
type Router struct {
	routes   map[string]http.Handler
	commands http.Handler
}

// NewRouter creates a router falling back to commands.
func NewRouter(commands http.Handler) *Router {
	return &Router{
		routes:   make(map[string]http.Handler),
		commands: commands,
	}
}

// Handle registers h for an exact path. Empty paths are ignored.
func (rt *Router) Handle(path string, h http.Handler) {
	if path == "" {
		return
	}
	rt.routes[path] = h
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := rt.routes[r.URL.Path]; ok {
		h.ServeHTTP(w, r)
		return
	}
	rt.commands.ServeHTTP(w, r)
}
