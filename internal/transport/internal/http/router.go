package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jamesprial/mcp-oauth-tools/internal/transport/transportcore"
)

// router implements transportcore.Router on a chi mux. Middleware is
// applied per route at registration time, so Use only affects routes
// registered after it.
type router struct {
	mux         chi.Router
	middlewares []transportcore.Middleware
}

// NewRouter creates a router. Unmatched paths and methods get JSON errors
// from responder.
func NewRouter(responder transportcore.ErrorResponder) transportcore.Router {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responder.NotFound(w, nil)
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responder.MethodNotAllowed(w)
	})

	return &router{
		mux: mux,
	}
}

// Handle registers handler for every method on pattern.
func (r *router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, r.applyMiddleware(handler))
}

// Method registers handler for a single method on pattern.
func (r *router) Method(method, pattern string, handler http.Handler) {
	r.mux.Method(method, pattern, r.applyMiddleware(handler))
}

func (r *router) Use(middlewares ...transportcore.Middleware) {
	r.middlewares = append(r.middlewares, middlewares...)
}

func (r *router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// applyMiddleware wraps handler so the first registered middleware is the
// outermost layer.
func (r *router) applyMiddleware(handler http.Handler) http.Handler {
	wrapped := handler
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}
	return wrapped
}
