// Package server exposes the pipeline over HTTP: an interview endpoint, an
// SSE-streamed run endpoint, roadmap reads, session progress updates, and a
// per-session video retry.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jonathan/roadmap-agent/internal/config"
	"github.com/jonathan/roadmap-agent/internal/db"
	"github.com/jonathan/roadmap-agent/internal/pipeline"
)

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	database *db.DB
	orch     *pipeline.Orchestrator
	finder   pipeline.VideoFinder
	jwt      *JWTService
	validate *validator.Validate
	logger   *zap.Logger

	mu   sync.Mutex
	runs map[string]*pipeline.State

	httpServer *http.Server
}

// New assembles the server. The run registry is in-memory: runs do not
// survive a restart, and a multi-process deployment needs an external store
// behind the same interface.
func New(cfg *config.Config, database *db.DB, orch *pipeline.Orchestrator, finder pipeline.VideoFinder, logger *zap.Logger) (*Server, error) {
	if err := cfg.RequireAuth(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		database: database,
		orch:     orch,
		finder:   finder,
		jwt:      NewJWTService(cfg.JWTSecret, cfg.JWTExpiryHours),
		validate: validator.New(),
		logger:   logger,
		runs:     make(map[string]*pipeline.State),
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /auth/token", s.handleToken)
	mux.HandleFunc("POST /api/roadmaps/interview", s.requireAuth(s.handleInterview))
	mux.HandleFunc("POST /api/roadmaps", s.requireAuth(s.handleRun))
	mux.HandleFunc("GET /api/roadmaps/{id}", s.requireAuth(s.handleGetRoadmap))
	mux.HandleFunc("PATCH /api/sessions/{id}", s.requireAuth(s.handleUpdateSession))
	mux.HandleFunc("POST /api/sessions/{id}/videos/retry", s.requireAuth(s.handleVideoRetry))
	return mux
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// takeRun removes and returns a registered run. A run can be started exactly
// once.
func (s *Server) takeRun(pipelineID string) (*pipeline.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.runs[pipelineID]
	if ok {
		delete(s.runs, pipelineID)
	}
	return state, ok
}

func (s *Server) registerRun(state *pipeline.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[state.PipelineID] = state
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeAndValidate parses a JSON body and runs struct validation on it.
func (s *Server) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
