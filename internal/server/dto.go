package server

import (
	"lodgeline/internal/facility"
	"lodgeline/internal/history"
)

// UploadRequest carries an uploaded compliance document. Content is
// base64 on the wire.
type UploadRequest struct {
	ReportDate string `json:"report_date" example:"2025-06-01"`
	Filename   string `json:"filename,omitempty"`
	Content    []byte `json:"content"`
}

type ConfirmResponse struct {
	TaskID      string `json:"task_id"`
	ConfirmedBy string `json:"confirmed_by"`
	ConfirmedAt string `json:"confirmed_at"`
}

type ApproveRequest struct {
	Timestamp string `json:"timestamp" example:"2025-06-01T09:30:00Z"`
}

type DeleteEntryRequest struct {
	Timestamp string `json:"timestamp"`
}

type AcknowledgeRequest struct {
	Month string `json:"month,omitempty" example:"2025-07"`
}

type HistoryResponse struct {
	HotelID string                     `json:"hotel_id"`
	Tasks   map[string][]history.Entry `json:"tasks"`
}

type TaskLabelsResponse struct {
	Tasks map[string]string `json:"tasks"`
}

type FacilitiesResponse struct {
	Profile facility.Profile `json:"profile"`
}
