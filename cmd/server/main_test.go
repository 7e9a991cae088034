package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skillforge/engine/internal/content"
	"github.com/skillforge/engine/internal/engine"
)

func setupServer(t *testing.T) *http.ServeMux {
	t.Helper()
	dir := t.TempDir()

	levels := `levels:
  - number: 1
    name: Foundations
    through_day: 10
    exercises:
      - id: l1e1
        prompt: first drill
        answer: one
      - id: l1e2
        prompt: second drill
        answer: two
  - number: 2
    name: Technique
    through_day: 30
    exercises:
      - id: l2e1
        prompt: technique drill
        answer: pivot
`
	skills := `skills:
  - id: basics
    name: Basics
    level: 1
    conditions:
      - kind: level
        target: 1
`
	if err := os.WriteFile(filepath.Join(dir, "core.levels.yaml"), []byte(levels), 0o644); err != nil {
		t.Fatalf("write levels fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "core.skills.yaml"), []byte(skills), 0o644); err != nil {
		t.Fatalf("write skills fixture: %v", err)
	}

	lib, err := content.NewLibrary(dir)
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	recorder, err := engine.NewRecorder(engine.RecorderConfig{Library: lib})
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	return newMux(&server{recorder: recorder})
}

func TestHealthEndpoints(t *testing.T) {
	mux := setupServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz returns 200",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if strings.TrimSpace(rec.Body.String()) != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestTrainingRoundTrip(t *testing.T) {
	mux := setupServer(t)

	body := `{"idempotency_key":"k1","day_number":1,"duration_minutes":25,"rating":4}`
	req := httptest.NewRequest(http.MethodPost, "/users/u1/training", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Snapshot     engine.Snapshot     `json:"snapshot"`
		ScoreChanges engine.ScoreChanges `json:"score_changes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ScoreChanges.Experience == 0 {
		t.Error("a training submission should award experience")
	}
	if resp.Snapshot.Progress.CurrentDay != 2 {
		t.Errorf("CurrentDay = %d, want 2", resp.Snapshot.Progress.CurrentDay)
	}

	req = httptest.NewRequest(http.MethodGet, "/users/u1/progress", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("progress status = %d, want 200", rec.Code)
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Progress.CurrentDay != 2 {
		t.Errorf("persisted CurrentDay = %d, want 2", snap.Progress.CurrentDay)
	}
}

func TestTrainingSchemaValidation(t *testing.T) {
	mux := setupServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"missing key", `{"day_number":1}`},
		{"both day and exercise", `{"idempotency_key":"k","day_number":1,"exercise_id":"l1e1"}`},
		{"unknown field", `{"idempotency_key":"k","day_number":1,"bogus":true}`},
		{"not JSON", `day one was great`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/users/u1/training", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTrainingDayConflict(t *testing.T) {
	mux := setupServer(t)

	body := `{"idempotency_key":"k1","day_number":7}`
	req := httptest.NewRequest(http.MethodPost, "/users/u1/training", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for an out-of-order day", rec.Code)
	}
}

func TestQuestionsHideAnswers(t *testing.T) {
	mux := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/skip-level/2/questions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "pivot") {
		t.Error("question payload must not leak expected answers")
	}
	if !strings.Contains(rec.Body.String(), "l2e1") {
		t.Error("question payload should include exercise IDs")
	}

	req = httptest.NewRequest(http.MethodGet, "/skip-level/9/questions", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for an undefined level", rec.Code)
	}
}

func TestSkipLevelAlreadyReached(t *testing.T) {
	mux := setupServer(t)

	// Finish both level-1 exercises so the user stands at level 2.
	for _, body := range []string{
		`{"idempotency_key":"k1","exercise_id":"l1e1"}`,
		`{"idempotency_key":"k2","exercise_id":"l1e2"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/users/u1/training", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("training status = %d; body = %s", rec.Code, rec.Body.String())
		}
	}

	body := `{"target_level":2,"answers":[]}`
	req := httptest.NewRequest(http.MethodPost, "/users/u1/skip-level", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409; body = %s", rec.Code, rec.Body.String())
	}
}

func TestExportReturnsWorkbook(t *testing.T) {
	mux := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/users/u1/progress/export", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q, want an xlsx content type", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("export body should not be empty")
	}
}
