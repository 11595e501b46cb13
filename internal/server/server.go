// Package server wires the daemon's HTTP surface: health and version
// probes, wrapped in request-ID propagation and panic recovery, using
// chi the way the teacher's retrieved services do.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kluhan/kraken/internal/kerrors"
	"github.com/kluhan/kraken/internal/server/handlers"
	kmw "github.com/kluhan/kraken/internal/server/middleware"
)

// Version is the daemon build version reported by /version. cmd/kraken
// does not set it; it can be overridden at link time via -ldflags -X.
var Version = "dev"

// Server is the daemon's HTTP surface.
type Server struct {
	host string
	port int
	mux  *chi.Mux
}

// New builds a Server bound to host:port. It does not start listening;
// callers drive http.Server themselves using Handler().
func New(host string, port int) *Server {
	s := &Server{host: host, port: port}
	s.mux = s.buildRouter()
	return s
}

// Port returns the port this Server was constructed with.
func (s *Server) Port() int { return s.port }

// Handler returns the Server's http.Handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(kmw.RequestID)
	r.Use(kmw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		kerrors.RespondWithError(w, "NOT_FOUND", "no route matches "+req.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		kerrors.RespondWithError(w, "METHOD_NOT_ALLOWED", req.Method+" not allowed on "+req.URL.Path)
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)

	r.Get("/version", s.versionHandler)

	return r
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"version":"` + Version + `"}`))
}
