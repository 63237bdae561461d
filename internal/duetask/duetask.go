// Package duetask projects which upload tasks fall due in the current
// or the following month.
package duetask

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"lodgeline/internal/blob"
	"lodgeline/internal/catalog"
	"lodgeline/internal/submission"
)

// Projection buckets upload tasks by urgency.
type Projection struct {
	DueThisMonth        []catalog.Rule `json:"due_this_month"`
	NextMonthUploadable []catalog.Rule `json:"next_month_uploadables"`
}

// Projector classifies upload tasks from their latest submissions.
type Projector struct {
	Store blob.Store
	Log   *slog.Logger
}

// DueTasks walks every upload task with a mapped frequency. A task that
// was never submitted, or whose next due date has already arrived, is
// due this month; one due inside next month's window is a reminder
// unless the month has been acknowledged.
func (p *Projector) DueTasks(ctx context.Context, c catalog.Catalog, hotelID string, now time.Time) Projection {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonthStart := monthStart.AddDate(0, 1, 0)
	followingMonthStart := nextMonthStart.AddDate(0, 1, 0)

	proj := Projection{
		DueThisMonth:        []catalog.Rule{},
		NextMonthUploadable: []catalog.Rule{},
	}
	for _, rule := range c.Rules() {
		if rule.Type != catalog.TypeUpload {
			continue
		}
		freq, ok := catalog.ParseFrequency(rule.Frequency)
		if !ok {
			continue
		}
		interval := catalog.ValidityDays(string(freq))

		latest, submitted := submission.LatestUploadDate(ctx, p.Store, p.Log, hotelID, rule.TaskID)
		if !submitted {
			proj.DueThisMonth = append(proj.DueThisMonth, rule)
			continue
		}
		nextDue := latest.AddDate(0, 0, interval)
		switch {
		case nextDue.Before(nextMonthStart):
			// Includes overdue tasks whose due date already passed.
			proj.DueThisMonth = append(proj.DueThisMonth, rule)
		case nextDue.Before(followingMonthStart):
			if p.acknowledged(ctx, hotelID, rule.TaskID, nextMonthStart.Format("2006-01")) {
				continue
			}
			proj.NextMonthUploadable = append(proj.NextMonthUploadable, rule)
		}
	}
	return proj
}

func (p *Projector) acknowledged(ctx context.Context, hotelID, taskID, yearMonth string) bool {
	ok, err := p.Store.Exists(ctx, submission.AcknowledgmentKey(hotelID, taskID, yearMonth))
	if err != nil {
		p.Log.Warn("acknowledgment check failed", "hotel_id", hotelID, "task_id", taskID, "error", err)
		return false
	}
	return ok
}

// Acknowledge suppresses the next-month reminder for one task cycle.
func (p *Projector) Acknowledge(ctx context.Context, hotelID, taskID, yearMonth, user string, now time.Time) error {
	marker, err := json.Marshal(map[string]string{
		"acknowledged_by": user,
		"acknowledged_at": now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	key := submission.AcknowledgmentKey(hotelID, taskID, yearMonth)
	if err := p.Store.Put(ctx, key, marker); err != nil {
		return fmt.Errorf("write acknowledgment %s: %w", key, err)
	}
	return nil
}
