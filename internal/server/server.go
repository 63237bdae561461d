// Package server exposes the compliance engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"lodgeline/internal/blob"
	"lodgeline/internal/duetask"
	"lodgeline/internal/engine"
	"lodgeline/internal/facility"
	"lodgeline/internal/history"
	"lodgeline/internal/rollup"
	"lodgeline/internal/scoring"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"facilities_setup_incomplete"`
	Message string         `json:"message" example:"facilities setup incomplete"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Lodgeline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Lodgeline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerTasks(group, cfg.Engine)
	registerSubmissions(group, cfg.Engine)
	registerHistory(group, cfg.Engine)
	registerScoring(group, cfg.Engine)
	registerDueTasks(group, cfg.Engine)
	registerRollups(group, cfg.Engine)
	registerFacilities(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, facility.ErrSetupIncomplete) {
		return newAPIError(http.StatusPreconditionFailed, "facilities_setup_incomplete", err.Error(), nil)
	}
	if errors.Is(err, blob.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "no entry submitted") || strings.Contains(lowered, "no history"):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusPreconditionFailed:
		return "facilities_setup_incomplete"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-task-labels",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List task labels",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body TaskLabelsResponse `json:"body"`
	}, error) {
		return &struct {
			Body TaskLabelsResponse `json:"body"`
		}{Body: TaskLabelsResponse{Tasks: e.TaskLabels()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "applicable-tasks",
		Method:      http.MethodGet,
		Path:        "/hotels/{hotel_id}/tasks/applicable",
		Summary:     "Applicable tasks for a hotel",
		Errors:      []int{http.StatusPreconditionFailed},
	}, func(ctx context.Context, input *struct {
		HotelID string `path:"hotel_id"`
	}) (*struct {
		Body []facility.ApplicableTask `json:"body"`
	}, error) {
		tasks, err := e.ApplicableTasks(ctx, input.HotelID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []facility.ApplicableTask `json:"body"`
		}{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "monthly-checklist",
		Method:      http.MethodGet,
		Path:        "/hotels/{hotel_id}/checklist",
		Summary:     "Monthly confirmation checklist",
	}, func(ctx context.Context, input *struct {
		HotelID string `path:"hotel_id"`
	}) (*struct {
		Body []engine.ChecklistItem `json:"body"`
	}, error) {
		return &struct {
			Body []engine.ChecklistItem `json:"body"`
		}{Body: e.MonthlyChecklist(ctx, input.HotelID)}, nil
	})
}

func registerSubmissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "upload-document",
		Method:        http.MethodPost,
		Path:          "/hotels/{hotel_id}/tasks/{task_id}/upload",
		Summary:       "Upload a compliance document",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		HotelID string        `path:"hotel_id"`
		TaskID  string        `path:"task_id"`
		Body    UploadRequest `json:"body"`
	}) (*struct {
		Body history.Entry `json:"body"`
	}, error) {
		entry, err := e.RecordUpload(ctx, engine.UploadOptions{
			HotelID:    input.HotelID,
			TaskID:     input.TaskID,
			ReportDate: input.Body.ReportDate,
			Filename:   input.Body.Filename,
			Data:       input.Body.Content,
			UploadedBy: userFromContext(ctx),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body history.Entry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "confirm-task",
		Method:        http.MethodPost,
		Path:          "/hotels/{hotel_id}/tasks/{task_id}/confirm",
		Summary:       "Confirm a task for this month",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		HotelID string `path:"hotel_id"`
		TaskID  string `path:"task_id"`
	}) (*struct {
		Body ConfirmResponse `json:"body"`
	}, error) {
		rec, err := e.ConfirmTask(ctx, input.HotelID, input.TaskID, userFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConfirmResponse `json:"body"`
		}{Body: ConfirmResponse{
			TaskID:      rec.TaskID,
			ConfirmedBy: rec.ConfirmedBy,
			ConfirmedAt: rec.ConfirmedAt,
		}}, nil
	})
}

func registerHistory(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "hotel-history",
		Method:      http.MethodGet,
		Path:        "/hotels/{hotel_id}/history",
		Summary:     "Submission history for a hotel",
	}, func(ctx context.Context, input *struct {
		HotelID string `path:"hotel_id"`
	}) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		tasks, err := e.HotelHistory(ctx, input.HotelID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: HistoryResponse{HotelID: input.HotelID, Tasks: tasks}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approval-queue",
		Method:      http.MethodGet,
		Path:        "/approvals",
		Summary:     "Pending approval queue",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []history.ApprovalEntry `json:"body"`
	}, error) {
		entries, err := e.ApprovalQueue(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []history.ApprovalEntry `json:"body"`
		}{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-entry",
		Method:      http.MethodPost,
		Path:        "/hotels/{hotel_id}/tasks/{task_id}/approve",
		Summary:     "Approve an uploaded document",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		HotelID string         `path:"hotel_id"`
		TaskID  string         `path:"task_id"`
		Body    ApproveRequest `json:"body"`
	}) (*struct{}, error) {
		if input.Body.Timestamp == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "timestamp is required", nil)
		}
		if err := e.ApproveEntry(ctx, input.HotelID, input.TaskID, input.Body.Timestamp); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-entry",
		Method:      http.MethodDelete,
		Path:        "/hotels/{hotel_id}/tasks/{task_id}/entries",
		Summary:     "Delete a submission entry",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		HotelID string             `path:"hotel_id"`
		TaskID  string             `path:"task_id"`
		Body    DeleteEntryRequest `json:"body"`
	}) (*struct{}, error) {
		if input.Body.Timestamp == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "timestamp is required", nil)
		}
		if err := e.DeleteEntry(ctx, input.HotelID, input.TaskID, input.Body.Timestamp); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerScoring(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "hotel-score",
		Method:      http.MethodGet,
		Path:        "/hotels/{hotel_id}/score",
		Summary:     "Weighted compliance score",
	}, func(ctx context.Context, input *struct {
		HotelID string `path:"hotel_id"`
	}) (*struct {
		Body scoring.Score `json:"body"`
	}, error) {
		return &struct {
			Body scoring.Score `json:"body"`
		}{Body: e.ComputeScore(ctx, input.HotelID)}, nil
	})
}

func registerDueTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "due-tasks",
		Method:      http.MethodGet,
		Path:        "/hotels/{hotel_id}/due-tasks",
		Summary:     "Tasks due this month and next",
	}, func(ctx context.Context, input *struct {
		HotelID string `path:"hotel_id"`
	}) (*struct {
		Body duetask.Projection `json:"body"`
	}, error) {
		return &struct {
			Body duetask.Projection `json:"body"`
		}{Body: e.DueTasks(ctx, input.HotelID)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "acknowledge-due-task",
		Method:        http.MethodPost,
		Path:          "/hotels/{hotel_id}/tasks/{task_id}/acknowledge",
		Summary:       "Acknowledge a next-month reminder",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		HotelID string             `path:"hotel_id"`
		TaskID  string             `path:"task_id"`
		Body    AcknowledgeRequest `json:"body"`
	}) (*struct{}, error) {
		if err := e.Acknowledge(ctx, input.HotelID, input.TaskID, input.Body.Month, userFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerRollups(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "compliance-matrix",
		Method:      http.MethodGet,
		Path:        "/matrix",
		Summary:     "Cross-hotel compliance matrix",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []rollup.Cell `json:"body"`
	}, error) {
		return &struct {
			Body []rollup.Cell `json:"body"`
		}{Body: e.Matrix(ctx)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "leaderboard",
		Method:      http.MethodGet,
		Path:        "/leaderboard",
		Summary:     "Hotel score leaderboard",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []rollup.Standing `json:"body"`
	}, error) {
		return &struct {
			Body []rollup.Standing `json:"body"`
		}{Body: e.Leaderboard(ctx)}, nil
	})
}

func registerFacilities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-facilities",
		Method:      http.MethodGet,
		Path:        "/hotels/{hotel_id}/facilities",
		Summary:     "Facility profile for a hotel",
	}, func(ctx context.Context, input *struct {
		HotelID string `path:"hotel_id"`
	}) (*struct {
		Body FacilitiesResponse `json:"body"`
	}, error) {
		p, err := e.Facilities(ctx, input.HotelID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FacilitiesResponse `json:"body"`
		}{Body: FacilitiesResponse{Profile: p}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-facilities",
		Method:      http.MethodPut,
		Path:        "/hotels/{hotel_id}/facilities",
		Summary:     "Save facility profile answers",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		HotelID string           `path:"hotel_id"`
		Body    facility.Profile `json:"body"`
	}) (*struct {
		Body FacilitiesResponse `json:"body"`
	}, error) {
		input.Body.HotelID = input.HotelID
		if err := e.SaveFacilities(ctx, input.Body, userFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Facilities(ctx, input.HotelID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body FacilitiesResponse `json:"body"`
		}{Body: FacilitiesResponse{Profile: p}}, nil
	})
}
