package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lodgeline/internal/blob"
	"lodgeline/internal/catalog"
	"lodgeline/internal/config"
	"lodgeline/internal/engine"
	"lodgeline/internal/facility"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, auth AuthConfig) http.Handler {
	t.Helper()
	store, err := blob.OpenSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Hotels = []config.Hotel{{ID: "h1", Name: "Harbour View"}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := engine.New(store, cat, facility.NewResolver(), cfg, log)
	e.Now = func() time.Time { return testNow }
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatal(err)
	}
	return handler
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, AuthConfig{})
	rec := doJSON(t, h, http.MethodGet, "/v0/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d: %s", rec.Code, rec.Body)
	}
}

func TestApplicableTasksPreconditionFailed(t *testing.T) {
	h := newTestHandler(t, AuthConfig{})
	rec := doJSON(t, h, http.MethodGet, "/v0/hotels/h1/tasks/applicable", nil)
	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 before facilities setup, got %d: %s", rec.Code, rec.Body)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "facilities_setup_incomplete" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
}

func TestUploadHistoryScoreFlow(t *testing.T) {
	h := newTestHandler(t, AuthConfig{})

	upload := map[string]any{
		"report_date": "2025-06-01",
		"filename":    "fra.pdf",
		"content":     base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
	}
	rec := doJSON(t, h, http.MethodPost, "/v0/hotels/h1/tasks/fire_risk_assessment/upload", upload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/v0/hotels/h1/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d: %s", rec.Code, rec.Body)
	}
	var hist HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatal(err)
	}
	entries := hist.Tasks["fire_risk_assessment"]
	if len(entries) != 1 || entries[0].ReportDate != "2025-06-01" {
		t.Fatalf("unexpected history: %+v", hist.Tasks)
	}

	rec = doJSON(t, h, http.MethodGet, "/v0/approvals", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approvals = %d: %s", rec.Code, rec.Body)
	}

	approve := map[string]string{"timestamp": entries[0].Timestamp()}
	rec = doJSON(t, h, http.MethodPost, "/v0/hotels/h1/tasks/fire_risk_assessment/approve", approve)
	if rec.Code >= 300 {
		t.Fatalf("approve = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/v0/hotels/h1/score", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("score = %d: %s", rec.Code, rec.Body)
	}
	var score struct {
		Score    int     `json:"score"`
		MaxScore int     `json:"max_score"`
		Percent  float64 `json:"percent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &score); err != nil {
		t.Fatal(err)
	}
	if score.Score != 20 {
		t.Fatalf("expected 20 points from valid annual upload, got %+v", score)
	}
}

func TestUploadRejectsBadReportDate(t *testing.T) {
	h := newTestHandler(t, AuthConfig{})
	upload := map[string]any{
		"report_date": "junk",
		"content":     base64.StdEncoding.EncodeToString([]byte("x")),
	}
	rec := doJSON(t, h, http.MethodPost, "/v0/hotels/h1/tasks/eicr/upload", upload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body)
	}
}

func TestAuthEnforcedWhenSecretConfigured(t *testing.T) {
	h := newTestHandler(t, AuthConfig{JWTSecret: "test-secret"})

	rec := doJSON(t, h, http.MethodGet, "/v0/tasks", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// Health stays open.
	rec = doJSON(t, h, http.MethodGet, "/v0/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health must bypass auth, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v0/tasks", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestFacilitiesRoundTrip(t *testing.T) {
	h := newTestHandler(t, AuthConfig{})

	profile := map[string]any{
		"hotelId": "h1",
		"fireSafety": map[string]any{
			"fireAlarmSystem": true,
		},
	}
	rec := doJSON(t, h, http.MethodPut, "/v0/hotels/h1/facilities", profile)
	if rec.Code != http.StatusOK {
		t.Fatalf("save facilities = %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/v0/hotels/h1/tasks/applicable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("applicable after setup = %d: %s", rec.Code, rec.Body)
	}
	var tasks []facility.ApplicableTask
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, task := range tasks {
		if task.TaskID == "fire_alarm_service_certificate" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected alarm service task for hotel with alarm system: %s", summary(tasks))
	}
}

func summary(tasks []facility.ApplicableTask) string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.TaskID)
	}
	return fmt.Sprint(ids)
}
