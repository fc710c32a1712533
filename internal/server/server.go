// Package server exposes health, metrics and run summaries over HTTP while
// verifications are in progress.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/srcverify/internal/observability/metrics"
	"github.com/pendergraft/srcverify/internal/verification/domain"
)

// maxRuns bounds how many run summaries are kept.
const maxRuns = 256

// RunSummary describes one finished verification run.
type RunSummary struct {
	RunID      string    `json:"runId"`
	Network    string    `json:"network"`
	Address    string    `json:"address"`
	Verified   bool      `json:"verified"`
	Outcome    string    `json:"outcome"`
	Stage      string    `json:"stage"`
	Message    string    `json:"message,omitempty"`
	GUID       string    `json:"guid,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Server is the HTTP server
type Server struct {
	logger *slog.Logger
	router *chi.Mux

	mu   sync.RWMutex
	runs []RunSummary

	httpServer *http.Server
	listener   net.Listener
}

// New creates a new server
func New(logger *slog.Logger) *Server {
	s := &Server{
		logger: logger,
		router: chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(NewLoggingMiddleware(logger))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())
	s.router.Get("/runs", s.handleRuns)

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Record stores the summary of a finished run.
func (s *Server) Record(req domain.Request, res *domain.Result) {
	summary := RunSummary{
		RunID:      res.RunID,
		Network:    req.Network,
		Address:    req.Address,
		Verified:   res.Verified(),
		Outcome:    res.Outcome.String(),
		Stage:      res.Stage.String(),
		Message:    res.Message,
		GUID:       res.GUID,
		FinishedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, summary)
	if len(s.runs) > maxRuns {
		s.runs = s.runs[len(s.runs)-maxRuns:]
	}
}

// Runs returns the recorded summaries, oldest first.
func (s *Server) Runs() []RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunSummary, len(s.runs))
	copy(out, s.runs)
	return out
}

// Start listens on addr and serves in the background. The listen error is
// returned synchronously.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("metrics server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.Runs()
	verified := 0
	for _, run := range runs {
		if run.Verified {
			verified++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    len(runs),
		"verified": verified,
		"runs":     runs,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
