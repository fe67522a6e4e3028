package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/mathquest/mathquest/internal/app/achievement"
	"github.com/mathquest/mathquest/internal/domain"
)

// ─── Request Types ──────────────────────────────────────────────────────────

type eventBody struct {
	AttemptID    string    `json:"attempt_id"`
	ExerciseType string    `json:"exercise_type"`
	Correct      bool      `json:"correct"`
	DurationMs   int64     `json:"duration_ms"`
	At           time.Time `json:"at"`
}

func (e *eventBody) toDomain() *domain.TriggeringEvent {
	if e == nil {
		return nil
	}
	return &domain.TriggeringEvent{
		AttemptID:    e.AttemptID,
		ExerciseType: e.ExerciseType,
		Correct:      e.Correct,
		Duration:     time.Duration(e.DurationMs) * time.Millisecond,
		At:           e.At,
	}
}

type checkRequest struct {
	UserID       string          `json:"user_id"`
	Requirements json.RawMessage `json:"requirements"`
	Event        *eventBody      `json:"event"`
	UseCache     bool            `json:"use_cache"`
}

type checkResponse struct {
	UserID string                 `json:"user_id"`
	Kind   domain.RequirementKind `json:"kind"`
	Result domain.CheckResult     `json:"result"`
}

type progressRequest struct {
	UserID       string          `json:"user_id"`
	Requirements json.RawMessage `json:"requirements"`
	UseCache     bool            `json:"use_cache"`
}

type progressResponse struct {
	UserID     string                 `json:"user_id"`
	Kind       domain.RequirementKind `json:"kind"`
	Applicable bool                   `json:"applicable"`
	Fraction   float64                `json:"fraction"`
	Current    int                    `json:"current"`
	Target     int                    `json:"target"`
}

type evaluateRequest struct {
	Event *eventBody `json:"event"`
}

// ─── Handlers ───────────────────────────────────────────────────────────────

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !s.decode(w, r, checkValidator, &req, false) {
		return
	}
	schema, err := domain.ParseRequirementSchema(req.Requirements)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cache *domain.StatsCache
	if req.UseCache {
		cache, _ = s.engine.BuildStats(r.Context(), req.UserID)
	}
	result := s.engine.CheckRequirements(r.Context(), req.UserID, schema, req.Event.toDomain(), cache)

	writeJSON(w, http.StatusOK, checkResponse{
		UserID: req.UserID,
		Kind:   achievement.DetectKind(schema),
		Result: result,
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if !s.decode(w, r, progressValidator, &req, false) {
		return
	}
	schema, err := domain.ParseRequirementSchema(req.Requirements)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var cache *domain.StatsCache
	if req.UseCache {
		cache, _ = s.engine.BuildStats(r.Context(), req.UserID)
	}
	p, ok := s.engine.RequirementProgress(r.Context(), req.UserID, schema, cache)

	writeJSON(w, http.StatusOK, progressResponse{
		UserID:     req.UserID,
		Kind:       achievement.DetectKind(schema),
		Applicable: ok,
		Fraction:   p.Fraction,
		Current:    p.Current,
		Target:     p.Target,
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req evaluateRequest
	if !s.decode(w, r, evaluateValidator, &req, true) {
		return
	}

	res, err := s.evaluator.EvaluateUser(r.Context(), userID, req.Event.toDomain(), achievement.TriggerAPI)
	if err != nil {
		s.logger.Error("evaluation pass failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decode reads, validates and unmarshals the request body into dst. On
// failure it writes a 400 and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any, allowEmpty bool) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return false
	}
	if len(raw) == 0 {
		if allowEmpty {
			return true
		}
		writeError(w, http.StatusBadRequest, "request body required")
		return false
	}
	if err := validateBody(schema, raw); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
