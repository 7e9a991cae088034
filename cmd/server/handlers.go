package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skillforge/engine/internal/challenge"
	"github.com/skillforge/engine/internal/engine"
	"github.com/skillforge/engine/internal/platform/cache"
	"github.com/skillforge/engine/internal/platform/database"
	"github.com/skillforge/engine/internal/report"
	"github.com/skillforge/engine/internal/streak"
)

const maxBodyBytes = 64 * 1024

type server struct {
	recorder *engine.Recorder
	db       *database.DB
	cache    *cache.Cache
}

// newMux creates the HTTP router. The routes are a thin host around the
// engine's three logical operations plus health and export endpoints.
func newMux(s *server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /users/{id}/progress", s.handleProgress)
	mux.HandleFunc("GET /users/{id}/progress/export", s.handleExport)
	mux.HandleFunc("GET /users/{id}/records", s.handleRecords)
	mux.HandleFunc("POST /users/{id}/training", s.handleSubmitTraining)
	mux.HandleFunc("POST /users/{id}/skip-level", s.handleSkipLevel)
	mux.HandleFunc("GET /skip-level/{level}/questions", s.handleQuestions)
	return mux
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
	}
	if s.cache != nil {
		if err := s.cache.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "cache unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := s.recorder.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	snap, err := s.recorder.Progress(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "progress-"+userID+".xlsx"))
	if err := report.Write(w, snap); err != nil {
		slog.Error("progress export failed", "user_id", userID, "error", err)
	}
}

func (s *server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.recorder.Records(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *server) handleSubmitTraining(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := validateSchema(submitTrainingSchema, body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var payload engine.TrainingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
		return
	}

	snap, changes, err := s.recorder.SubmitTraining(r.Context(), r.PathValue("id"), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":      snap,
		"score_changes": changes,
	})
}

func (s *server) handleSkipLevel(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := validateSchema(skipLevelSchema, body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var req struct {
		TargetLevel int                `json:"target_level"`
		Answers     []challenge.Answer `json:"answers"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
		return
	}

	outcome, snap, err := s.recorder.SkipLevel(r.Context(), r.PathValue("id"), req.TargetLevel, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"outcome": outcome}
	if snap != nil {
		resp["snapshot"] = snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(r.PathValue("level"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "level must be an integer"})
		return
	}
	questions, err := s.recorder.Questions(level)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	// Strip answers before they leave the server.
	type question struct {
		ID     string `json:"id"`
		Prompt string `json:"prompt"`
	}
	out := make([]question, 0, len(questions))
	for _, q := range questions {
		out = append(out, question{ID: q.ID, Prompt: q.Prompt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": out})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("request body unreadable or too large")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encoding failed", "error", err)
	}
}

// writeError maps engine errors onto HTTP statuses. Business-rule rejections
// are 4xx; invariant violations are 500 because they indicate a bug upstream.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidPayload):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, streak.ErrDayNotUnlocked), errors.Is(err, engine.ErrAlreadyReached):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable, retry with the same idempotency key"})
	case errors.Is(err, engine.ErrStateInvariant):
		slog.Error("state invariant violation", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal state error"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
