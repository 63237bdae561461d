package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"lodgeline/internal/blob"
)

const approvalLogKey = "logs/compliance-history/approval_log.json"

// ApprovalEntry is one unapproved upload awaiting human sign-off.
type ApprovalEntry struct {
	HotelID    string `json:"hotel_id"`
	TaskID     string `json:"task_id"`
	ReportDate string `json:"report_date,omitempty"`
	UploadedAt string `json:"uploaded_at"`
	Filename   string `json:"filename,omitempty"`
	FileURL    string `json:"fileUrl,omitempty"`
	UploadedBy string `json:"uploaded_by,omitempty"`
	Type       string `json:"type"`
}

// ApprovalLog is the single global review queue, freshest-first.
type ApprovalLog struct {
	Store blob.Store
	Log   *slog.Logger
}

func (l *ApprovalLog) load(ctx context.Context) []ApprovalEntry {
	data, err := l.Store.Get(ctx, approvalLogKey)
	if err != nil {
		return nil
	}
	var entries []ApprovalEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.Log.Warn("corrupt approval log, starting fresh", "error", err)
		return nil
	}
	return entries
}

func (l *ApprovalLog) save(ctx context.Context, entries []ApprovalEntry) error {
	if entries == nil {
		entries = []ApprovalEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := l.Store.Put(ctx, approvalLogKey, data); err != nil {
		return fmt.Errorf("save approval log: %w", err)
	}
	return nil
}

// Add inserts an entry at the head, replacing any prior entry for the
// same (hotel, task, report_date).
func (l *ApprovalLog) Add(ctx context.Context, e ApprovalEntry) error {
	entries := l.load(ctx)
	kept := entries[:0:0]
	for _, old := range entries {
		if old.HotelID == e.HotelID && old.TaskID == e.TaskID && old.ReportDate == e.ReportDate {
			continue
		}
		kept = append(kept, old)
	}
	return l.save(ctx, append([]ApprovalEntry{e}, kept...))
}

// Remove drops entries matching (hotel, task, uploaded_at).
func (l *ApprovalLog) Remove(ctx context.Context, hotelID, taskID, uploadedAt string) error {
	entries := l.load(ctx)
	kept := entries[:0:0]
	for _, e := range entries {
		if e.HotelID == hotelID && e.TaskID == taskID && e.UploadedAt == uploadedAt {
			continue
		}
		kept = append(kept, e)
	}
	return l.save(ctx, kept)
}

// List returns the queue, freshest-first.
func (l *ApprovalLog) List(ctx context.Context) ([]ApprovalEntry, error) {
	entries := l.load(ctx)
	if entries == nil {
		entries = []ApprovalEntry{}
	}
	return entries, nil
}
