// Package scoring computes the weighted compliance score for a hotel
// from its stored submissions. It is a pure read-side aggregation:
// nothing here mutates submissions, and any individual blob that fails
// to load is skipped rather than failing the whole computation.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"lodgeline/internal/blob"
	"lodgeline/internal/catalog"
	"lodgeline/internal/submission"
)

// MonthBucket accumulates points for one YYYY-MM.
type MonthBucket struct {
	Score int `json:"score"`
	Max   int `json:"max"`
}

// Score is the result of one computation.
type Score struct {
	Score          int                    `json:"score"`
	MaxScore       int                    `json:"max_score"`
	Percent        float64                `json:"percent"`
	TaskBreakdown  map[string]int         `json:"task_breakdown"`
	MonthlyHistory map[string]MonthBucket `json:"monthly_history"`
}

// Engine scores hotels against a rule catalog.
type Engine struct {
	Store       blob.Store
	Log         *slog.Logger
	GraceDays   int
	Concurrency int
}

// NewEngine returns a scoring engine with the standard 30-day grace.
func NewEngine(store blob.Store, log *slog.Logger) *Engine {
	return &Engine{Store: store, Log: log, GraceDays: catalog.GraceDays, Concurrency: 8}
}

// grace honors an explicit zero; only a negative value falls back to
// the standard grace period.
func (e *Engine) grace() int {
	if e.GraceDays >= 0 {
		return e.GraceDays
	}
	return catalog.GraceDays
}

type taskResult struct {
	taskID string
	earned int
	months map[string]int // month -> points accumulated
}

// ComputeScore evaluates every rule in the catalog for one hotel.
// max_score deliberately sums the entire catalog, not the hotel's
// applicable subset (see DESIGN.md).
func (e *Engine) ComputeScore(ctx context.Context, c catalog.Catalog, hotelID string, now time.Time) Score {
	rules := c.Rules()
	results := make([]taskResult, len(rules))

	workers := e.Concurrency
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, rule := range rules {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, rule catalog.Rule) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = e.scoreTask(ctx, rule, hotelID, now)
		}(i, rule)
	}
	wg.Wait()

	s := Score{
		TaskBreakdown:  map[string]int{},
		MonthlyHistory: map[string]MonthBucket{},
	}
	for i, rule := range rules {
		s.MaxScore += rule.Points
		r := results[i]
		s.Score += r.earned
		s.TaskBreakdown[r.taskID] = r.earned
		for month, pts := range r.months {
			b := s.MonthlyHistory[month]
			b.Score += pts
			b.Max += pts
			s.MonthlyHistory[month] = b
		}
	}
	if s.MaxScore > 0 {
		s.Percent = math.Round(float64(s.Score)/float64(s.MaxScore)*1000) / 10
	}
	return s
}

func (e *Engine) scoreTask(ctx context.Context, rule catalog.Rule, hotelID string, now time.Time) taskResult {
	r := taskResult{taskID: rule.TaskID, months: map[string]int{}}
	validFor := time.Duration(catalog.ValidityDays(rule.Frequency)+e.grace()) * 24 * time.Hour

	switch rule.Type {
	case catalog.TypeConfirmation:
		_, at, ok := submission.LatestConfirmation(ctx, e.Store, e.Log, hotelID, rule.TaskID)
		if ok && now.Sub(at) <= validFor {
			r.earned = rule.Points
			r.months[at.Format("2006-01")] += rule.Points
		}
	default: // upload
		valid := 0
		for _, m := range submission.ScanUploads(ctx, e.Store, e.Log, hotelID, rule.TaskID) {
			d, err := time.Parse(submission.DateLayout, m.ReportDate)
			if err != nil {
				continue
			}
			// Every parseable record lands in its month bucket,
			// valid or not. Duplicate submissions inside one cycle
			// therefore inflate monthly totals; preserved behavior.
			r.months[d.Format("2006-01")] += rule.Points
			if now.Sub(d) <= validFor {
				valid++
			}
		}
		expected := catalog.ExpectedCount(rule.Frequency)
		earned := int(math.Round(float64(rule.Points) * float64(valid) / float64(expected)))
		if earned > rule.Points {
			earned = rule.Points
		}
		r.earned = earned
	}
	return r
}

// SnapshotKey holds the latest computed score for a hotel; the
// leaderboard reads it instead of recomputing.
func SnapshotKey(hotelID string) string {
	return hotelID + "/compliance/latest.json"
}

// SaveSnapshot persists a score for leaderboard reads.
func (e *Engine) SaveSnapshot(ctx context.Context, hotelID string, s Score) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := e.Store.Put(ctx, SnapshotKey(hotelID), data); err != nil {
		return fmt.Errorf("save score snapshot for %s: %w", hotelID, err)
	}
	return nil
}
