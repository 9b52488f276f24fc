package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"engram/internal/config"
	"engram/internal/logging"
)

// callRequest is the wire shape of POST /api/call.
type callRequest struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Server exposes the dispatcher over local HTTP. Tool failures ride inside
// the envelope, so every well-formed exchange answers 200; transport-level
// statuses are reserved for the router itself.
type Server struct {
	dispatcher *Dispatcher
	cfg        *config.Config
	http       *http.Server
}

// NewServer binds the RPC surface to the configured daemon address.
func NewServer(d *Dispatcher, cfg *config.Config) *Server {
	s := &Server{dispatcher: d, cfg: cfg}
	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Daemon.Host, cfg.Daemon.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler assembles the router. Split out so tests can drive it with
// httptest without opening a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/api/call", s.handleCall)
	r.Get("/health", s.handleHealth)
	if s.cfg.Daemon.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Start serves until the listener closes. A graceful Shutdown is not an
// error.
func (s *Server) Start() error {
	logging.Dispatch("RPC listening on http://%s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests until
// ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Dispatch("RPC shutting down")
	return s.http.Shutdown(ctx)
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, errorEnvelope(Errorf(KindBadRequest, "malformed request body: %v", err)))
		return
	}
	writeJSON(w, s.dispatcher.Dispatch(r.Context(), req.Tool, req.Arguments))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":  "healthy",
		"server":  config.ServerName,
		"version": config.Version,
	})
}

func writeJSON(w http.ResponseWriter, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.DispatchError("Failed to encode RPC response: %v", err)
	}
}
