package scoring

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"lodgeline/internal/blob"
	"lodgeline/internal/catalog"
	"lodgeline/internal/submission"
)

func newTestEngine(t *testing.T) (*Engine, blob.Store) {
	t.Helper()
	store, err := blob.OpenSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return NewEngine(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func putUpload(t *testing.T, store blob.Store, hotelID, taskID, reportDate string) {
	t.Helper()
	m := submission.UploadMeta{
		ReportDate: reportDate,
		UploadedAt: reportDate + "T09:00:00Z",
		Filename:   reportDate + ".pdf",
		Type:       "upload",
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	key := submission.UploadPrefix(hotelID, taskID) + reportDate + "_" + m.Filename + ".json"
	if err := store.Put(context.Background(), key, data); err != nil {
		t.Fatal(err)
	}
}

func putConfirmation(t *testing.T, store blob.Store, hotelID, taskID, confirmedAt string) {
	t.Helper()
	at, err := time.Parse(time.RFC3339, confirmedAt)
	if err != nil {
		t.Fatal(err)
	}
	rec := submission.Confirmation{
		HotelID: hotelID, TaskID: taskID,
		ConfirmedBy: "tester", ConfirmedAt: confirmedAt, Type: "confirmation",
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), submission.ConfirmationKey(hotelID, taskID, at), data); err != nil {
		t.Fatal(err)
	}
}

func testCatalog(rules ...catalog.Rule) catalog.Catalog {
	return catalog.Catalog{Sections: []catalog.Section{{Name: "Test", Tasks: rules}}}
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestComputeScoreNoSubmissions(t *testing.T) {
	e, _ := newTestEngine(t)
	c := testCatalog(
		catalog.Rule{TaskID: "fire_risk_assessment", Label: "FRA", Type: catalog.TypeUpload, Frequency: "Annually", Points: 20},
		catalog.Rule{TaskID: "fire_drill_record", Label: "Drill", Type: catalog.TypeConfirmation, Frequency: "Monthly", Points: 5},
	)
	s := e.ComputeScore(context.Background(), c, "h1", testNow)
	if s.Score != 0 {
		t.Fatalf("expected zero score, got %d", s.Score)
	}
	if s.MaxScore != 25 {
		t.Fatalf("max score must sum full catalog, got %d", s.MaxScore)
	}
	if s.Percent != 0 {
		t.Fatalf("expected 0 percent, got %v", s.Percent)
	}
	if s.TaskBreakdown["fire_risk_assessment"] != 0 {
		t.Fatalf("expected zero breakdown, got %+v", s.TaskBreakdown)
	}
}

func TestComputeScoreValidAnnualUpload(t *testing.T) {
	e, store := newTestEngine(t)
	c := testCatalog(catalog.Rule{TaskID: "fire_risk_assessment", Label: "FRA", Type: catalog.TypeUpload, Frequency: "Annually", Points: 20})

	putUpload(t, store, "h1", "fire_risk_assessment", "2025-03-01")
	s := e.ComputeScore(context.Background(), c, "h1", testNow)

	if s.Score != 20 {
		t.Fatalf("expected full 20 points, got %d", s.Score)
	}
	if s.Percent != 100.0 {
		t.Fatalf("expected 100%%, got %v", s.Percent)
	}
	if b := s.MonthlyHistory["2025-03"]; b.Score != 20 {
		t.Fatalf("expected month bucket 20, got %+v", s.MonthlyHistory)
	}
}

func TestComputeScoreStaleUploadEarnsNothing(t *testing.T) {
	e, store := newTestEngine(t)
	c := testCatalog(catalog.Rule{TaskID: "fire_risk_assessment", Label: "FRA", Type: catalog.TypeUpload, Frequency: "Annually", Points: 20})

	// 2024-01-01 is beyond 365+30 days before the fixed clock.
	putUpload(t, store, "h1", "fire_risk_assessment", "2024-01-01")
	s := e.ComputeScore(context.Background(), c, "h1", testNow)

	if s.Score != 0 {
		t.Fatalf("stale upload must earn nothing, got %d", s.Score)
	}
	// The month bucket still records the submission.
	if b := s.MonthlyHistory["2024-01"]; b.Score != 20 {
		t.Fatalf("expected month bucket for stale upload, got %+v", s.MonthlyHistory)
	}
}

func TestComputeScoreMonthlyProration(t *testing.T) {
	e, store := newTestEngine(t)
	c := testCatalog(catalog.Rule{TaskID: "water_log", Label: "Water Log", Type: catalog.TypeUpload, Frequency: "Monthly", Points: 12})

	// Six uploads inside the 30+30 day validity window: half of the
	// twelve expected monthly submissions.
	for _, d := range []string{"2025-06-10", "2025-06-01", "2025-05-25", "2025-05-15", "2025-05-05", "2025-04-25"} {
		putUpload(t, store, "h1", "water_log", d)
	}
	s := e.ComputeScore(context.Background(), c, "h1", testNow)
	if s.Score != 6 {
		t.Fatalf("expected round(12*6/12)=6, got %d", s.Score)
	}
}

func TestComputeScoreProrationCapsAtPoints(t *testing.T) {
	e, store := newTestEngine(t)
	c := testCatalog(catalog.Rule{TaskID: "pest_control_inspection", Label: "Pest", Type: catalog.TypeUpload, Frequency: "Quarterly", Points: 10})

	// Six valid submissions against four expected must not exceed the
	// task's points.
	for _, d := range []string{"2025-06-10", "2025-06-01", "2025-05-20", "2025-05-10", "2025-04-20", "2025-04-10"} {
		putUpload(t, store, "h1", "pest_control_inspection", d)
	}
	s := e.ComputeScore(context.Background(), c, "h1", testNow)
	if s.Score != 10 {
		t.Fatalf("expected cap at 10, got %d", s.Score)
	}
}

func TestComputeScoreConfirmationWindow(t *testing.T) {
	e, store := newTestEngine(t)
	c := testCatalog(catalog.Rule{TaskID: "fire_drill_record", Label: "Drill", Type: catalog.TypeConfirmation, Frequency: "Monthly", Points: 5})
	ctx := context.Background()

	// 26 days before the clock: inside the 30+30 window.
	putConfirmation(t, store, "h1", "fire_drill_record", "2025-05-20T10:00:00Z")
	s := e.ComputeScore(ctx, c, "h1", testNow)
	if s.Score != 5 {
		t.Fatalf("recent confirmation must earn full points, got %d", s.Score)
	}
	if b := s.MonthlyHistory["2025-05"]; b.Score != 5 {
		t.Fatalf("expected month bucket for confirmation, got %+v", s.MonthlyHistory)
	}

	// A hotel whose only confirmation is far outside the window.
	putConfirmation(t, store, "h2", "fire_drill_record", "2025-03-01T10:00:00Z")
	s = e.ComputeScore(ctx, c, "h2", testNow)
	if s.Score != 0 {
		t.Fatalf("expired confirmation must earn nothing, got %d", s.Score)
	}
}

func TestComputeScoreZeroGraceDisablesGrace(t *testing.T) {
	e, store := newTestEngine(t)
	c := testCatalog(catalog.Rule{TaskID: "fire_drill_record", Label: "Drill", Type: catalog.TypeConfirmation, Frequency: "Monthly", Points: 5})
	ctx := context.Background()

	// 36 days before the clock: past the 30-day validity but inside
	// the default 30-day grace.
	putConfirmation(t, store, "h1", "fire_drill_record", "2025-05-10T10:00:00Z")

	s := e.ComputeScore(ctx, c, "h1", testNow)
	if s.Score != 5 {
		t.Fatalf("expected grace period to cover the confirmation, got %d", s.Score)
	}

	e.GraceDays = 0
	s = e.ComputeScore(ctx, c, "h1", testNow)
	if s.Score != 0 {
		t.Fatalf("zero grace must expire the confirmation, got %d", s.Score)
	}
}

func TestComputeScoreSkipsMalformedBlobs(t *testing.T) {
	e, store := newTestEngine(t)
	c := testCatalog(catalog.Rule{TaskID: "eicr", Label: "EICR", Type: catalog.TypeUpload, Frequency: "Every 5 Years", Points: 15})
	ctx := context.Background()

	putUpload(t, store, "h1", "eicr", "2025-01-15")
	if err := store.Put(ctx, submission.UploadPrefix("h1", "eicr")+"junk.json", []byte("{broken")); err != nil {
		t.Fatal(err)
	}
	s := e.ComputeScore(ctx, c, "h1", testNow)
	if s.Score != 15 {
		t.Fatalf("malformed blob must not poison the scan, got %d", s.Score)
	}
}

func TestPercentRounding(t *testing.T) {
	e, store := newTestEngine(t)
	c := testCatalog(
		catalog.Rule{TaskID: "a", Label: "A", Type: catalog.TypeUpload, Frequency: "Annually", Points: 10},
		catalog.Rule{TaskID: "b", Label: "B", Type: catalog.TypeUpload, Frequency: "Annually", Points: 20},
	)
	putUpload(t, store, "h1", "a", "2025-06-01")
	s := e.ComputeScore(context.Background(), c, "h1", testNow)
	// 10/30 = 33.333... rounds to one decimal.
	if s.Percent != 33.3 {
		t.Fatalf("expected 33.3, got %v", s.Percent)
	}
}

func TestSaveSnapshot(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	s := Score{Score: 42, MaxScore: 100, Percent: 42.0, TaskBreakdown: map[string]int{}, MonthlyHistory: map[string]MonthBucket{}}
	if err := e.SaveSnapshot(ctx, "h1", s); err != nil {
		t.Fatal(err)
	}
	data, err := store.Get(ctx, SnapshotKey("h1"))
	if err != nil {
		t.Fatal(err)
	}
	var got Score
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Score != 42 || got.Percent != 42.0 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}
