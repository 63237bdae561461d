// Package submission defines the stored shapes of compliance
// submissions and the blob key layout they live under.
package submission

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"lodgeline/internal/blob"
)

// DateLayout is the report date wire format.
const DateLayout = "2006-01-02"

const compactStampLayout = "20060102150405"

// UploadMeta is the metadata object written next to each uploaded
// document, and the unit the read-side scans consume.
type UploadMeta struct {
	ReportDate string `json:"report_date"`
	UploadedAt string `json:"uploaded_at"`
	Filename   string `json:"filename"`
	FileURL    string `json:"fileUrl,omitempty"`
	UploadedBy string `json:"uploaded_by,omitempty"`
	Type       string `json:"type,omitempty"`
	Approved   bool   `json:"approved,omitempty"`
	LoggedAt   string `json:"loggedAt,omitempty"`
}

// Confirmation records a human check-off for a confirmation task.
type Confirmation struct {
	HotelID     string `json:"hotel_id"`
	TaskID      string `json:"task_id"`
	ConfirmedBy string `json:"confirmed_by"`
	ConfirmedAt string `json:"confirmed_at"`
	ReportDate  string `json:"report_date,omitempty"`
	Type        string `json:"type"`
}

// UploadPrefix is where a task's upload blobs and metadata live.
func UploadPrefix(hotelID, taskID string) string {
	return hotelID + "/compliance/" + taskID + "/"
}

// UploadKey builds the blob key for an uploaded document.
func UploadKey(hotelID, taskID, reportDate string, now time.Time, filename string) string {
	compactDate := strings.ReplaceAll(reportDate, "-", "")
	return UploadPrefix(hotelID, taskID) + compactDate + "_" + now.UTC().Format(compactStampLayout) + "_" + filename
}

// MetaKey is the metadata object key for an upload blob.
func MetaKey(uploadKey string) string {
	return uploadKey + ".json"
}

// ConfirmationPrefix is where a task's confirmation records live.
func ConfirmationPrefix(hotelID, taskID string) string {
	return hotelID + "/compliance/confirmations/" + taskID + "/"
}

// ConfirmationKey builds the blob key for a confirmation record.
func ConfirmationKey(hotelID, taskID string, now time.Time) string {
	return ConfirmationPrefix(hotelID, taskID) + now.UTC().Format(compactStampLayout) + "_confirmation.json"
}

// AcknowledgmentKey marks a "due next month" reminder as seen for one
// task and month. Only the key's existence matters.
func AcknowledgmentKey(hotelID, taskID, yearMonth string) string {
	return hotelID + "/acknowledged/" + taskID + "-" + yearMonth + ".json"
}

// ScanUploads reads every parseable upload metadata object under the
// task prefix. Unreadable or malformed objects are skipped with a
// warning; a scan never fails because one blob is corrupt.
func ScanUploads(ctx context.Context, store blob.Store, log *slog.Logger, hotelID, taskID string) []UploadMeta {
	prefix := UploadPrefix(hotelID, taskID)
	keys, err := store.List(ctx, prefix)
	if err != nil {
		log.Warn("list uploads failed", "prefix", prefix, "error", err)
		return nil
	}
	var out []UploadMeta
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := store.Get(ctx, key)
		if err != nil {
			log.Warn("read upload metadata failed", "key", key, "error", err)
			continue
		}
		var m UploadMeta
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn("malformed upload metadata skipped", "key", key, "error", err)
			continue
		}
		out = append(out, m)
	}
	return out
}

// LatestUploadDate returns the most recent parseable report date for a
// task, or false when the task has never been submitted.
func LatestUploadDate(ctx context.Context, store blob.Store, log *slog.Logger, hotelID, taskID string) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, m := range ScanUploads(ctx, store, log, hotelID, taskID) {
		d, err := time.Parse(DateLayout, m.ReportDate)
		if err != nil {
			continue
		}
		if !found || d.After(latest) {
			latest = d
			found = true
		}
	}
	return latest, found
}

// LatestConfirmation returns the most recent confirmation record for a
// task, dated by confirmed_at or report_date, whichever is present.
func LatestConfirmation(ctx context.Context, store blob.Store, log *slog.Logger, hotelID, taskID string) (Confirmation, time.Time, bool) {
	prefix := ConfirmationPrefix(hotelID, taskID)
	keys, err := store.List(ctx, prefix)
	if err != nil {
		log.Warn("list confirmations failed", "prefix", prefix, "error", err)
		return Confirmation{}, time.Time{}, false
	}
	var (
		best   Confirmation
		bestAt time.Time
		found  bool
	)
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		data, err := store.Get(ctx, key)
		if err != nil {
			log.Warn("read confirmation failed", "key", key, "error", err)
			continue
		}
		var c Confirmation
		if err := json.Unmarshal(data, &c); err != nil {
			log.Warn("malformed confirmation skipped", "key", key, "error", err)
			continue
		}
		at, ok := confirmationTime(c)
		if !ok {
			continue
		}
		if !found || at.After(bestAt) {
			best, bestAt, found = c, at, true
		}
	}
	return best, bestAt, found
}

func confirmationTime(c Confirmation) (time.Time, bool) {
	if c.ConfirmedAt != "" {
		if t, err := time.Parse(time.RFC3339, c.ConfirmedAt); err == nil {
			return t, true
		}
	}
	if c.ReportDate != "" {
		if t, err := time.Parse(DateLayout, c.ReportDate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
