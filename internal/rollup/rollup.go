// Package rollup provides cross-hotel read-only aggregations for
// dashboards. Per-hotel read failures degrade to empty/zero results,
// never failing the whole call.
package rollup

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"

	"lodgeline/internal/blob"
	"lodgeline/internal/catalog"
	"lodgeline/internal/history"
	"lodgeline/internal/scoring"
)

// Matrix cell statuses.
const (
	StatusDone    = "done"
	StatusPending = "pending"
	StatusMissing = "missing"
)

// Cell is one hotel/task intersection.
type Cell struct {
	HotelID string `json:"hotel_id"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status" enum:"done,pending,missing"`
}

// Standing is one leaderboard row.
type Standing struct {
	HotelID string `json:"hotel_id"`
	Name    string `json:"name,omitempty"`
	Score   int    `json:"score"`
}

// Aggregator reads across hotels.
type Aggregator struct {
	Store   blob.Store
	History *history.Manager
	Log     *slog.Logger
}

// Matrix reports done/pending/missing for every hotel against the full
// unfiltered catalog: done when any history entry is approved, pending
// when entries exist but none approved, missing otherwise.
func (a *Aggregator) Matrix(ctx context.Context, hotelIDs []string, c catalog.Catalog) []Cell {
	rules := c.Rules()
	cells := make([]Cell, 0, len(hotelIDs)*len(rules))
	for _, hotelID := range hotelIDs {
		h, err := a.History.History(ctx, hotelID)
		if err != nil {
			h = map[string][]history.Entry{}
		}
		for _, rule := range rules {
			status := StatusMissing
			if entries := h[rule.TaskID]; len(entries) > 0 {
				status = StatusPending
				for _, e := range entries {
					if e.Approved {
						status = StatusDone
						break
					}
				}
			}
			cells = append(cells, Cell{HotelID: hotelID, TaskID: rule.TaskID, Status: status})
		}
	}
	return cells
}

// Hotel names a leaderboard participant.
type Hotel struct {
	ID   string
	Name string
}

// Leaderboard reads each hotel's precomputed score snapshot. A missing
// or corrupt snapshot scores zero rather than failing the rollup.
func (a *Aggregator) Leaderboard(ctx context.Context, hotels []Hotel) []Standing {
	standings := make([]Standing, 0, len(hotels))
	for _, h := range hotels {
		row := Standing{HotelID: h.ID, Name: h.Name}
		data, err := a.Store.Get(ctx, scoring.SnapshotKey(h.ID))
		if err == nil {
			var snap scoring.Score
			if err := json.Unmarshal(data, &snap); err == nil {
				row.Score = int(math.Round(snap.Percent))
			} else {
				a.Log.Warn("corrupt score snapshot", "hotel_id", h.ID, "error", err)
			}
		}
		standings = append(standings, row)
	}
	return standings
}
