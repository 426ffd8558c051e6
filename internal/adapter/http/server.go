// Package http serves the operational endpoints of a running client: health, readiness
// against the BioSim server, a status summary and Prometheus metrics.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Climate is the part of the climate service the endpoints report on. Readiness is the
// server answering its model list.
type Climate interface {
	sharedobs.ReadinessChecker
	ModelList(ctx context.Context) ([]string, error)
	ServerLoad(ctx context.Context) (int, error)
	CachedHandles() int
}

// Server exposes /healthz, /readyz, /status and /metrics.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server reporting on climate.
func NewServer(addr string, climate Climate, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(climate))
	mux.HandleFunc("GET /status", s.handleStatus(climate))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type status struct {
	Models        []string `json:"models"`
	ServerLoad    int      `json:"server_load"`
	CachedHandles int      `json:"cached_handles"`
}

func (s *Server) handleStatus(climate Climate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		models, err := climate.ModelList(ctx)
		if err != nil {
			s.logger.Warn("status: model list unavailable", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		load, err := climate.ServerLoad(ctx)
		if err != nil {
			s.logger.Warn("status: server load unavailable", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, status{Models: models, ServerLoad: load, CachedHandles: climate.CachedHandles()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
