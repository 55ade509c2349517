package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/roadmap-agent/internal/db"
	"github.com/jonathan/roadmap-agent/internal/pipeline"
	"github.com/jonathan/roadmap-agent/internal/types"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tokenRequest struct {
	UserID   string `json:"user_id" validate:"required,min=1,max=128"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.cfg.CheckPassword(req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := s.jwt.GenerateToken(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
	})
}

type interviewRequest struct {
	Topic string `json:"topic" validate:"required,min=2,max=2000"`
}

// handleInterview starts a run: it creates the pipeline state, generates the
// interview questions, and registers the run for a later POST /api/roadmaps.
func (s *Server) handleInterview(w http.ResponseWriter, r *http.Request) {
	var req interviewRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state := pipeline.NewState(userID(r.Context()), req.Topic)
	questions, err := s.orch.StartInterview(r.Context(), state)
	if err != nil {
		s.logger.Error("interview failed", zap.String("pipeline_id", state.PipelineID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "interview generation failed")
		return
	}

	s.registerRun(state)
	writeJSON(w, http.StatusOK, map[string]any{
		"pipeline_id": state.PipelineID,
		"language":    state.Language,
		"questions":   questions,
	})
}

type runRequest struct {
	PipelineID     string                  `json:"pipeline_id" validate:"required"`
	Answers        []types.InterviewAnswer `json:"answers" validate:"dive"`
	ConfirmedTitle string                  `json:"confirmed_title" validate:"max=200"`
}

// handleRun executes the pipeline for a registered run, streaming progress
// as SSE. The run itself uses a context detached from the request so a
// closed browser never aborts generation or persistence.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, ok := s.takeRun(req.PipelineID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown pipeline_id")
		return
	}
	if state.UserID != userID(r.Context()) {
		writeError(w, http.StatusForbidden, "not your run")
		return
	}
	state.ConfirmedTitle = req.ConfirmedTitle

	sse, err := NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	runCtx := context.WithoutCancel(r.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.orch.Run(runCtx, state, req.Answers, sse.Sink())
	}()

	// Hold the response open until the run finishes; if the client has
	// disconnected, the goroutine still completes and persists.
	<-done
}

func (s *Server) handleGetRoadmap(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid roadmap id")
		return
	}

	roadmap, err := s.database.GetRoadmap(r.Context(), id, userID(r.Context()))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "roadmap not found")
			return
		}
		s.logger.Error("get roadmap failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load roadmap")
		return
	}
	writeJSON(w, http.StatusOK, roadmap)
}

type sessionUpdateRequest struct {
	Completed *bool   `json:"completed" validate:"required"`
	Notes     *string `json:"notes" validate:"omitempty,max=10000"`
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	var req sessionUpdateRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}

	if err := s.database.UpdateSessionProgress(r.Context(), id, userID(r.Context()), *req.Completed, notes); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error("session update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleVideoRetry re-runs the video finder for one persisted session.
// Retries are capped per session; the cap lives in the store.
func (s *Server) handleVideoRetry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	uid := userID(r.Context())

	if err := s.database.RequestVideoRetry(r.Context(), id, uid); err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, db.ErrRetryBudgetExhausted):
			writeError(w, http.StatusTooManyRequests, "video retry budget exhausted")
		default:
			s.logger.Error("video retry request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to request retry")
		}
		return
	}

	stored, err := s.database.GetSession(r.Context(), id, uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	session := &types.ResearchedSession{
		OutlineID:   stored.OutlineID,
		Title:       stored.Title,
		SessionType: types.ParseSessionType(stored.SessionType),
		Order:       stored.Order,
		Content:     stored.Content,
		KeyConcepts: stored.KeyConcepts,
	}
	videos := s.finder.FindVideos(r.Context(), session, s.cfg.MaxVideos)

	if err := s.database.CompleteVideoRetry(r.Context(), id, videos); err != nil {
		s.logger.Error("video retry save failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save videos")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  id,
		"videos":      videos,
		"retry_count": stored.VideoRetryCount,
	})
}
