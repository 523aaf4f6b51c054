package server

import (
	"context"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"

	"github.com/omnierp/controlplane/pkg/application"
)

// HTTPServer assembles the control plane's API surface: every registered
// controller mounts on one mux router behind the shared middleware chain, and
// the whole tree is served gzip-compressed.
type HTTPServer struct {
	app                     application.Application
	notFoundHandler         http.Handler
	methodNotAllowedHandler http.Handler

	srv *http.Server
}

func NewHTTPServer(
	app application.Application,
	notFoundHandler, methodNotAllowedHandler http.Handler,
) *HTTPServer {
	return &HTTPServer{
		app:                     app,
		notFoundHandler:         notFoundHandler,
		methodNotAllowedHandler: methodNotAllowedHandler,
	}
}

func (s *HTTPServer) Router() *mux.Router {
	r := mux.NewRouter()
	middlewares := s.app.Middleware()
	r.Use(middlewares...)
	for _, controller := range s.app.Controllers() {
		controller.Register(r)
	}

	// mux skips r.Use for its fallback handlers; wrap them by hand so 404s
	// still log and carry request IDs.
	r.NotFoundHandler = wrap(s.notFoundHandler, middlewares)
	r.MethodNotAllowedHandler = wrap(s.methodNotAllowedHandler, middlewares)
	return r
}

func wrap(h http.Handler, middlewares []mux.MiddlewareFunc) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func (s *HTTPServer) Handler() http.Handler {
	return gziphandler.GzipHandler(s.Router())
}

func (s *HTTPServer) Start(socketAddress string) error {
	s.srv = &http.Server{
		Addr:              socketAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.srv.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
