// Package history maintains the bounded per-hotel submission history
// and the global approval queue, both stored as whole JSON blobs with
// read-modify-write updates (last writer wins; see DESIGN.md).
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"lodgeline/internal/blob"
)

// DefaultCap bounds each task's history list.
const DefaultCap = 50

// Entry is one retained submission record. Both current snake_case and
// legacy camelCase timestamp spellings are kept readable because older
// history blobs used the camelCase form.
type Entry struct {
	Type              string `json:"type"`
	ReportDate        string `json:"report_date,omitempty"`
	UploadedAt        string `json:"uploaded_at,omitempty"`
	ConfirmedAt       string `json:"confirmed_at,omitempty"`
	LegacyUploadedAt  string `json:"uploadedAt,omitempty"`
	LegacyConfirmedAt string `json:"confirmedAt,omitempty"`
	Filename          string `json:"filename,omitempty"`
	FileURL           string `json:"fileUrl,omitempty"`
	UploadedBy        string `json:"uploaded_by,omitempty"`
	ConfirmedBy       string `json:"confirmedBy,omitempty"`
	Approved          bool   `json:"approved,omitempty"`
	LoggedAt          string `json:"loggedAt,omitempty"`
}

// Timestamp returns the entry's submission time under whichever field
// spelling it carries.
func (e Entry) Timestamp() string {
	for _, ts := range []string{e.UploadedAt, e.LegacyUploadedAt, e.ConfirmedAt, e.LegacyConfirmedAt} {
		if ts != "" {
			return ts
		}
	}
	return ""
}

// Manager owns the per-hotel history blobs.
type Manager struct {
	Store     blob.Store
	Approvals *ApprovalLog
	Cap       int
	Log       *slog.Logger
}

// NewManager wires a history manager and its approval log.
func NewManager(store blob.Store, log *slog.Logger) *Manager {
	return &Manager{
		Store:     store,
		Approvals: &ApprovalLog{Store: store, Log: log},
		Cap:       DefaultCap,
		Log:       log,
	}
}

func historyKey(hotelID string) string {
	return "logs/compliance-history/" + hotelID + ".json"
}

func (m *Manager) cap() int {
	if m.Cap > 0 {
		return m.Cap
	}
	return DefaultCap
}

func (m *Manager) load(ctx context.Context, hotelID string) map[string][]Entry {
	data, err := m.Store.Get(ctx, historyKey(hotelID))
	if err != nil {
		return map[string][]Entry{}
	}
	var h map[string][]Entry
	if err := json.Unmarshal(data, &h); err != nil {
		m.Log.Warn("corrupt history blob, starting fresh", "hotel_id", hotelID, "error", err)
		return map[string][]Entry{}
	}
	if h == nil {
		h = map[string][]Entry{}
	}
	return h
}

func (m *Manager) save(ctx context.Context, hotelID string, h map[string][]Entry) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	if err := m.Store.Put(ctx, historyKey(hotelID), data); err != nil {
		return fmt.Errorf("save history for %s: %w", hotelID, err)
	}
	return nil
}

// AddEntry upserts a submission into the hotel's history. Any existing
// entry sharing the new entry's report_date or filename is replaced, so
// re-submitting the same logical document keeps a single entry at the
// head. Unapproved uploads are mirrored into the approval queue;
// failures there are logged and swallowed so the primary write stands.
func (m *Manager) AddEntry(ctx context.Context, hotelID, taskID string, e Entry) error {
	h := m.load(ctx, hotelID)
	list := h[taskID]
	kept := list[:0:0]
	for _, old := range list {
		if e.ReportDate != "" && old.ReportDate == e.ReportDate {
			continue
		}
		if e.Filename != "" && old.Filename == e.Filename {
			continue
		}
		kept = append(kept, old)
	}
	list = append([]Entry{e}, kept...)
	if len(list) > m.cap() {
		list = list[:m.cap()]
	}
	h[taskID] = list
	if err := m.save(ctx, hotelID, h); err != nil {
		return err
	}

	if e.Type == "upload" && !e.Approved {
		err := m.Approvals.Add(ctx, ApprovalEntry{
			HotelID:    hotelID,
			TaskID:     taskID,
			ReportDate: e.ReportDate,
			UploadedAt: e.Timestamp(),
			Filename:   e.Filename,
			FileURL:    e.FileURL,
			UploadedBy: e.UploadedBy,
			Type:       "upload",
		})
		if err != nil {
			m.Log.Warn("approval log update failed", "hotel_id", hotelID, "task_id", taskID, "error", err)
		}
	}
	return nil
}

// Approve flips the approved flag on the history entry submitted at
// timestamp and removes the matching approval queue entry.
func (m *Manager) Approve(ctx context.Context, hotelID, taskID, timestamp string) error {
	if err := m.Approvals.Remove(ctx, hotelID, taskID, timestamp); err != nil {
		m.Log.Warn("approval log removal failed", "hotel_id", hotelID, "task_id", taskID, "error", err)
	}
	h := m.load(ctx, hotelID)
	list, ok := h[taskID]
	if !ok {
		return fmt.Errorf("no history for task %s", taskID)
	}
	updated := false
	for i := range list {
		if list[i].Timestamp() == timestamp {
			list[i].Approved = true
			updated = true
			break
		}
	}
	if !updated {
		return fmt.Errorf("no entry submitted at %s for task %s", timestamp, taskID)
	}
	h[taskID] = list
	return m.save(ctx, hotelID, h)
}

// Delete removes entries submitted at timestamp from the task's list.
func (m *Manager) Delete(ctx context.Context, hotelID, taskID, timestamp string) error {
	h := m.load(ctx, hotelID)
	list, ok := h[taskID]
	if !ok {
		return nil
	}
	kept := list[:0:0]
	for _, e := range list {
		if e.Timestamp() == timestamp {
			continue
		}
		kept = append(kept, e)
	}
	h[taskID] = kept
	return m.save(ctx, hotelID, h)
}

// History returns the hotel's full history map, empty if none stored.
func (m *Manager) History(ctx context.Context, hotelID string) (map[string][]Entry, error) {
	return m.load(ctx, hotelID), nil
}
