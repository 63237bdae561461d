// Package engine is the functional surface the routing layer and CLI
// consume: applicability, submissions, history, approval, scoring and
// due-task projection for one portfolio of hotels.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lodgeline/internal/blob"
	"lodgeline/internal/catalog"
	"lodgeline/internal/config"
	"lodgeline/internal/duetask"
	"lodgeline/internal/facility"
	"lodgeline/internal/history"
	"lodgeline/internal/rollup"
	"lodgeline/internal/scoring"
	"lodgeline/internal/submission"
)

type Engine struct {
	Store    blob.Store
	Catalog  catalog.Catalog
	Resolver *facility.Resolver
	Config   *config.Config
	History  *history.Manager
	Scoring  *scoring.Engine
	Due      *duetask.Projector
	Rollup   *rollup.Aggregator
	Log      *slog.Logger
	Now      func() time.Time
}

func New(store blob.Store, cat catalog.Catalog, resolver *facility.Resolver, cfg *config.Config, log *slog.Logger) Engine {
	if log == nil {
		log = slog.Default()
	}
	hist := history.NewManager(store, log)
	if cfg.History.Cap > 0 {
		hist.Cap = cfg.History.Cap
	}
	sc := scoring.NewEngine(store, log)
	if cfg.Scoring.GraceDays >= 0 {
		sc.GraceDays = cfg.Scoring.GraceDays
	}
	if cfg.Scoring.Concurrency > 0 {
		sc.Concurrency = cfg.Scoring.Concurrency
	}
	return Engine{
		Store:    store,
		Catalog:  cat,
		Resolver: resolver,
		Config:   cfg,
		History:  hist,
		Scoring:  sc,
		Due:      &duetask.Projector{Store: store, Log: log},
		Rollup:   &rollup.Aggregator{Store: store, History: hist, Log: log},
		Log:      log,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// HotelCatalog resolves the catalog for one hotel, honoring a stored
// per-hotel override.
func (e Engine) HotelCatalog(ctx context.Context, hotelID string) catalog.Catalog {
	return catalog.ForHotel(ctx, e.Store, e.Catalog, hotelID)
}

// TaskLabels returns the flattened task_id -> label view.
func (e Engine) TaskLabels() map[string]string {
	return e.Catalog.TaskLabels()
}

// ApplicableTasks filters the hotel's catalog by its facility profile.
// It fails with facility.ErrSetupIncomplete until the facilities
// questionnaire has been completed.
func (e Engine) ApplicableTasks(ctx context.Context, hotelID string) ([]facility.ApplicableTask, error) {
	profile, err := facility.Load(ctx, e.Store, hotelID)
	if err != nil {
		return nil, err
	}
	return e.Resolver.ApplicableTasks(profile, e.HotelCatalog(ctx, hotelID))
}

// UploadOptions are parameters for recording a document upload.
type UploadOptions struct {
	HotelID    string
	TaskID     string
	ReportDate string
	Filename   string
	Data       []byte
	UploadedBy string
}

// RecordUpload stores the document and its metadata, upserts the
// history entry, and queues the upload for approval.
func (e Engine) RecordUpload(ctx context.Context, opts UploadOptions) (history.Entry, error) {
	if opts.HotelID == "" || opts.TaskID == "" {
		return history.Entry{}, errors.New("hotel_id and task_id are required")
	}
	if _, err := time.Parse(submission.DateLayout, opts.ReportDate); err != nil {
		return history.Entry{}, fmt.Errorf("invalid report_date %q: %w", opts.ReportDate, err)
	}
	if opts.UploadedBy == "" {
		opts.UploadedBy = "SYSTEM"
	}
	if opts.Filename == "" {
		opts.Filename = uuid.New().String()
	}

	now := e.now().UTC()
	key := submission.UploadKey(opts.HotelID, opts.TaskID, opts.ReportDate, now, opts.Filename)
	if err := e.Store.Put(ctx, key, opts.Data); err != nil {
		return history.Entry{}, fmt.Errorf("store upload: %w", err)
	}

	uploadedAt := now.Format(time.RFC3339)
	meta := submission.UploadMeta{
		ReportDate: opts.ReportDate,
		UploadedAt: uploadedAt,
		Filename:   opts.Filename,
		FileURL:    e.fileURL(key),
		UploadedBy: opts.UploadedBy,
		Type:       "upload",
		LoggedAt:   uploadedAt,
	}
	metaData, err := marshalIndent(meta)
	if err != nil {
		return history.Entry{}, err
	}
	if err := e.Store.Put(ctx, submission.MetaKey(key), metaData); err != nil {
		return history.Entry{}, fmt.Errorf("store upload metadata: %w", err)
	}

	entry := history.Entry{
		Type:       "upload",
		ReportDate: opts.ReportDate,
		UploadedAt: uploadedAt,
		Filename:   opts.Filename,
		FileURL:    meta.FileURL,
		UploadedBy: opts.UploadedBy,
		LoggedAt:   uploadedAt,
	}
	if err := e.History.AddEntry(ctx, opts.HotelID, opts.TaskID, entry); err != nil {
		return history.Entry{}, err
	}
	return entry, nil
}

// ConfirmTask records a human confirmation for this month.
func (e Engine) ConfirmTask(ctx context.Context, hotelID, taskID, user string) (submission.Confirmation, error) {
	if hotelID == "" || taskID == "" {
		return submission.Confirmation{}, errors.New("hotel_id and task_id are required")
	}
	if user == "" {
		user = "system"
	}
	now := e.now().UTC()
	rec := submission.Confirmation{
		HotelID:     hotelID,
		TaskID:      taskID,
		ConfirmedBy: user,
		ConfirmedAt: now.Format(time.RFC3339),
		Type:        "confirmation",
	}
	data, err := marshalIndent(rec)
	if err != nil {
		return submission.Confirmation{}, err
	}
	if err := e.Store.Put(ctx, submission.ConfirmationKey(hotelID, taskID, now), data); err != nil {
		return submission.Confirmation{}, fmt.Errorf("store confirmation: %w", err)
	}
	entry := history.Entry{
		Type:        "confirmation",
		ConfirmedAt: rec.ConfirmedAt,
		ConfirmedBy: user,
	}
	if err := e.History.AddEntry(ctx, hotelID, taskID, entry); err != nil {
		return submission.Confirmation{}, err
	}
	return rec, nil
}

// ApproveEntry signs off an uploaded document.
func (e Engine) ApproveEntry(ctx context.Context, hotelID, taskID, timestamp string) error {
	return e.History.Approve(ctx, hotelID, taskID, timestamp)
}

// DeleteEntry purges a submission from the hotel's history and removes
// the matching stored objects best-effort.
func (e Engine) DeleteEntry(ctx context.Context, hotelID, taskID, timestamp string) error {
	if err := e.History.Delete(ctx, hotelID, taskID, timestamp); err != nil {
		return err
	}
	e.deleteSubmissionObjects(ctx, hotelID, taskID, timestamp)
	return nil
}

func (e Engine) deleteSubmissionObjects(ctx context.Context, hotelID, taskID, timestamp string) {
	for _, m := range submission.ScanUploads(ctx, e.Store, e.Log, hotelID, taskID) {
		if m.UploadedAt != timestamp {
			continue
		}
		keys, err := e.Store.List(ctx, submission.UploadPrefix(hotelID, taskID))
		if err != nil {
			return
		}
		compactDate := strings.ReplaceAll(m.ReportDate, "-", "")
		for _, key := range keys {
			base := key[strings.LastIndex(key, "/")+1:]
			if strings.HasPrefix(base, compactDate+"_") && strings.HasSuffix(key, "_"+m.Filename+".json") {
				if err := e.Store.Delete(ctx, key); err != nil {
					e.Log.Warn("delete upload metadata failed", "key", key, "error", err)
				}
				doc := strings.TrimSuffix(key, ".json")
				if err := e.Store.Delete(ctx, doc); err != nil {
					e.Log.Warn("delete upload blob failed", "key", doc, "error", err)
				}
			}
		}
	}
}

// History returns the hotel's submission history by task.
func (e Engine) HotelHistory(ctx context.Context, hotelID string) (map[string][]history.Entry, error) {
	return e.History.History(ctx, hotelID)
}

// ApprovalQueue lists unapproved uploads, freshest-first.
func (e Engine) ApprovalQueue(ctx context.Context) ([]history.ApprovalEntry, error) {
	return e.History.Approvals.List(ctx)
}

// ComputeScore scores the hotel and refreshes its leaderboard snapshot.
// A snapshot write failure degrades to a warning; the score stands.
func (e Engine) ComputeScore(ctx context.Context, hotelID string) scoring.Score {
	s := e.Scoring.ComputeScore(ctx, e.HotelCatalog(ctx, hotelID), hotelID, e.now())
	if err := e.Scoring.SaveSnapshot(ctx, hotelID, s); err != nil {
		e.Log.Warn("score snapshot write failed", "hotel_id", hotelID, "error", err)
	}
	return s
}

// DueTasks projects upload tasks due this month or next.
func (e Engine) DueTasks(ctx context.Context, hotelID string) duetask.Projection {
	return e.Due.DueTasks(ctx, e.HotelCatalog(ctx, hotelID), hotelID, e.now())
}

// Acknowledge suppresses a next-month due reminder.
func (e Engine) Acknowledge(ctx context.Context, hotelID, taskID, yearMonth, user string) error {
	if yearMonth == "" {
		yearMonth = time.Date(e.now().Year(), e.now().Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0).Format("2006-01")
	}
	return e.Due.Acknowledge(ctx, hotelID, taskID, yearMonth, user, e.now())
}

// ChecklistItem is one row of the monthly confirmation checklist.
type ChecklistItem struct {
	TaskID               string  `json:"task_id"`
	Label                string  `json:"label"`
	Frequency            string  `json:"frequency"`
	Category             string  `json:"category"`
	Points               int     `json:"points"`
	InfoPopup            string  `json:"info_popup,omitempty"`
	LastConfirmedDate    *string `json:"last_confirmed_date"`
	IsConfirmedThisMonth bool    `json:"is_confirmed_this_month"`
}

// MonthlyChecklist lists confirmation tasks with their status for the
// current month.
func (e Engine) MonthlyChecklist(ctx context.Context, hotelID string) []ChecklistItem {
	thisMonth := e.now().UTC().Format("2006-01")
	items := []ChecklistItem{}
	for _, rule := range e.HotelCatalog(ctx, hotelID).Rules() {
		if rule.Type != catalog.TypeConfirmation {
			continue
		}
		item := ChecklistItem{
			TaskID:    rule.TaskID,
			Label:     rule.Label,
			Frequency: rule.Frequency,
			Category:  rule.Category,
			Points:    rule.Points,
			InfoPopup: rule.InfoPopup,
		}
		if rec, at, ok := submission.LatestConfirmation(ctx, e.Store, e.Log, hotelID, rule.TaskID); ok {
			confirmedAt := rec.ConfirmedAt
			item.LastConfirmedDate = &confirmedAt
			item.IsConfirmedThisMonth = at.UTC().Format("2006-01") == thisMonth
		}
		items = append(items, item)
	}
	return items
}

// Matrix rolls up done/pending/missing across the portfolio.
func (e Engine) Matrix(ctx context.Context) []rollup.Cell {
	return e.Rollup.Matrix(ctx, e.Config.HotelIDs(), e.Catalog)
}

// Leaderboard ranks hotels by their latest score snapshots.
func (e Engine) Leaderboard(ctx context.Context) []rollup.Standing {
	hotels := make([]rollup.Hotel, 0, len(e.Config.Hotels))
	for _, h := range e.Config.Hotels {
		hotels = append(hotels, rollup.Hotel{ID: h.ID, Name: h.Name})
	}
	return e.Rollup.Leaderboard(ctx, hotels)
}

// Facilities returns the hotel's facility profile (default when none
// stored yet).
func (e Engine) Facilities(ctx context.Context, hotelID string) (facility.Profile, error) {
	return facility.Load(ctx, e.Store, hotelID)
}

// SaveFacilities persists the questionnaire answers and marks setup
// complete.
func (e Engine) SaveFacilities(ctx context.Context, p facility.Profile, updatedBy string) error {
	return facility.Save(ctx, e.Store, p, updatedBy, e.now())
}

func marshalIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return data, nil
}

func (e Engine) fileURL(key string) string {
	if e.Config.Store.Backend == "s3" && e.Config.Store.Bucket != "" {
		return "https://" + e.Config.Store.Bucket + ".s3.amazonaws.com/" + key
	}
	return key
}
