// Package api serves the daemon's operational HTTP surface: health,
// Prometheus metrics and read-only backup state.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/mariaback/internal/backup"
	"github.com/edvin/mariaback/internal/scheduler"
)

// Server is the daemon's status server.
type Server struct {
	router chi.Router
	logger zerolog.Logger
	root   string
	sched  *scheduler.Scheduler
}

// NewServer builds the status server over the storage root and scheduler.
func NewServer(logger zerolog.Logger, root string, sched *scheduler.Scheduler) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.With().Str("component", "api").Logger(),
		root:   root,
		sched:  sched,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/backups", s.handleBackups)
		r.Get("/schedule", s.handleSchedule)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBackups(w http.ResponseWriter, _ *http.Request) {
	groups, err := backup.ListAll(s.root)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing backups failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing backups failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hosts": groups})
}

func (s *Server) handleSchedule(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"units": s.sched.Snapshot()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Serve runs the server until ctx is canceled, then shuts down cleanly.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", addr).Msg("status server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
