package duetask

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

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestProjector(t *testing.T) (*Projector, blob.Store) {
	t.Helper()
	store, err := blob.OpenSQLiteStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return &Projector{Store: store, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}, store
}

func putUpload(t *testing.T, store blob.Store, hotelID, taskID, reportDate string) {
	t.Helper()
	m := submission.UploadMeta{ReportDate: reportDate, UploadedAt: reportDate + "T09:00:00Z", Filename: reportDate + ".pdf", Type: "upload"}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	key := submission.UploadPrefix(hotelID, taskID) + reportDate + "_" + m.Filename + ".json"
	if err := store.Put(context.Background(), key, data); err != nil {
		t.Fatal(err)
	}
}

func quarterlyRule(id string) catalog.Rule {
	return catalog.Rule{TaskID: id, Label: id, Type: catalog.TypeUpload, Frequency: "Quarterly", Points: 10}
}

func testCatalog(rules ...catalog.Rule) catalog.Catalog {
	return catalog.Catalog{Sections: []catalog.Section{{Name: "Test", Tasks: rules}}}
}

func dueIDs(rules []catalog.Rule) map[string]bool {
	out := map[string]bool{}
	for _, r := range rules {
		out[r.TaskID] = true
	}
	return out
}

func TestNeverSubmittedIsDueThisMonth(t *testing.T) {
	p, _ := newTestProjector(t)
	proj := p.DueTasks(context.Background(), testCatalog(quarterlyRule("pool_water_testing")), "h1", testNow)
	if !dueIDs(proj.DueThisMonth)["pool_water_testing"] {
		t.Fatalf("never-submitted task must be due this month: %+v", proj)
	}
}

func TestOverdueTaskIsDueThisMonth(t *testing.T) {
	p, store := newTestProjector(t)
	// Next due 2025-01-10 + 90d = 2025-04-10, long past.
	putUpload(t, store, "h1", "pool_water_testing", "2025-01-10")
	proj := p.DueTasks(context.Background(), testCatalog(quarterlyRule("pool_water_testing")), "h1", testNow)
	if !dueIDs(proj.DueThisMonth)["pool_water_testing"] {
		t.Fatalf("overdue task must be due this month: %+v", proj)
	}
}

func TestDueInsideCurrentMonthWindow(t *testing.T) {
	p, store := newTestProjector(t)
	// Monthly task submitted 31 days before the month start: next due
	// lands inside the current month.
	rule := catalog.Rule{TaskID: "water_log", Label: "Water Log", Type: catalog.TypeUpload, Frequency: "Monthly", Points: 5}
	putUpload(t, store, "h1", "water_log", "2025-05-01")
	proj := p.DueTasks(context.Background(), testCatalog(rule), "h1", testNow)
	if !dueIDs(proj.DueThisMonth)["water_log"] {
		t.Fatalf("task due inside current month must be listed: %+v", proj)
	}
}

func TestDueNextMonthBucket(t *testing.T) {
	p, store := newTestProjector(t)
	// 2025-04-10 + 90d = 2025-07-09: inside next month's window.
	putUpload(t, store, "h1", "pool_water_testing", "2025-04-10")
	proj := p.DueTasks(context.Background(), testCatalog(quarterlyRule("pool_water_testing")), "h1", testNow)
	if dueIDs(proj.DueThisMonth)["pool_water_testing"] {
		t.Fatalf("task is not due yet this month: %+v", proj)
	}
	if !dueIDs(proj.NextMonthUploadable)["pool_water_testing"] {
		t.Fatalf("task must be in next month bucket: %+v", proj)
	}
}

func TestAcknowledgmentSuppressesNextMonth(t *testing.T) {
	p, store := newTestProjector(t)
	ctx := context.Background()
	putUpload(t, store, "h1", "pool_water_testing", "2025-04-10")

	if err := p.Acknowledge(ctx, "h1", "pool_water_testing", "2025-07", "manager", testNow); err != nil {
		t.Fatal(err)
	}
	proj := p.DueTasks(ctx, testCatalog(quarterlyRule("pool_water_testing")), "h1", testNow)
	if len(proj.NextMonthUploadable) != 0 {
		t.Fatalf("acknowledged reminder must be suppressed: %+v", proj)
	}
	// Acknowledgment never touches the due-this-month bucket.
	if err := p.Acknowledge(ctx, "h1", "eicr", "2025-06", "manager", testNow); err != nil {
		t.Fatal(err)
	}
	proj = p.DueTasks(ctx, testCatalog(quarterlyRule("eicr")), "h1", testNow)
	if !dueIDs(proj.DueThisMonth)["eicr"] {
		t.Fatalf("due-this-month must ignore acknowledgments: %+v", proj)
	}
}

func TestFarFutureDueIsOmitted(t *testing.T) {
	p, store := newTestProjector(t)
	// 2025-06-10 + 90d = 2025-09-08: beyond both windows.
	putUpload(t, store, "h1", "pool_water_testing", "2025-06-10")
	proj := p.DueTasks(context.Background(), testCatalog(quarterlyRule("pool_water_testing")), "h1", testNow)
	if len(proj.DueThisMonth) != 0 || len(proj.NextMonthUploadable) != 0 {
		t.Fatalf("task due far in the future must be omitted: %+v", proj)
	}
}

func TestUnknownFrequencyAndConfirmationsSkipped(t *testing.T) {
	p, _ := newTestProjector(t)
	c := testCatalog(
		catalog.Rule{TaskID: "odd_task", Label: "Odd", Type: catalog.TypeUpload, Frequency: "Fortnightly", Points: 5},
		catalog.Rule{TaskID: "fire_drill_record", Label: "Drill", Type: catalog.TypeConfirmation, Frequency: "Monthly", Points: 5},
	)
	proj := p.DueTasks(context.Background(), c, "h1", testNow)
	if len(proj.DueThisMonth) != 0 || len(proj.NextMonthUploadable) != 0 {
		t.Fatalf("unmapped frequencies and confirmations must be skipped: %+v", proj)
	}
}
