package api

import (
	"time"

	"github.com/driveguard/driveguard/internal/database"
)

// ========== Driver Types ==========

// CreateDriverRequest is the request body for POST /api/drivers.
type CreateDriverRequest struct {
	DriverID   string `json:"driver_id" validate:"required,min=1,max=64"`
	Name       string `json:"name" validate:"required,min=1,max=128"`
	Age        int    `json:"age" validate:"omitempty,gte=18,lte=100"`
	Experience int    `json:"experience" validate:"omitempty,gte=0,lte=80"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
	Email      string `json:"email" validate:"omitempty,email,max=255"`
}

// UpdateDriverRequest is the request body for PUT /api/drivers/:id.
type UpdateDriverRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=128"`
	Age        *int    `json:"age" validate:"omitempty,gte=18,lte=100"`
	Experience *int    `json:"experience" validate:"omitempty,gte=0,lte=80"`
	Phone      *string `json:"phone" validate:"omitempty,max=32"`
	Email      *string `json:"email" validate:"omitempty,email,max=255"`
}

// ========== Event Types ==========

// CreateEventRequest is the request body for POST /api/events.
type CreateEventRequest struct {
	DriverID   string     `json:"driver_id" validate:"required"`
	DriverName string     `json:"driver_name" validate:"required"`
	Status     string     `json:"status" validate:"required,oneof=alert drowsy sleeping"`
	Severity   string     `json:"severity" validate:"required,oneof=low medium high"`
	StartTime  time.Time  `json:"start_time" validate:"required"`
	EndTime    *time.Time `json:"end_time"`
}

// ResolveEventRequest is the request body for POST /api/events/:id/resolve.
type ResolveEventRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=1024"`
}

// FinishEventRequest is the request body for POST /api/events/:id/finish.
type FinishEventRequest struct {
	EndTime time.Time `json:"end_time" validate:"required"`
}

// ========== Alert Types ==========

// AcknowledgeAllResponse is the response body for POST /api/alerts/acknowledge-all.
type AcknowledgeAllResponse struct {
	Acknowledged int      `json:"acknowledged"`
	Errors       []string `json:"errors,omitempty"`
}

// ========== Settings Types ==========

// UpdateSlackSettingsRequest is the request body for PUT /api/settings/slack.
type UpdateSlackSettingsRequest struct {
	BotToken      *string `json:"bot_token"`
	AlertsChannel *string `json:"alerts_channel"`
	Enabled       *bool   `json:"enabled"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// CursorPage wraps a cursor-paginated list response. NextCursor is empty
// on the last page.
type CursorPage struct {
	Data       interface{} `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ========== Mapper Output Types ==========

// EventListItem is a compact representation of a drowsiness event for list views.
type EventListItem struct {
	ID         uint                 `json:"id"`
	EventID    string               `json:"event_id"`
	DriverID   string               `json:"driver_id"`
	DriverName string               `json:"driver_name"`
	Status     database.EventStatus `json:"status"`
	Severity   database.Severity    `json:"severity"`
	StartTime  time.Time            `json:"start_time"`
	EndTime    *time.Time           `json:"end_time,omitempty"`
	Duration   *int                 `json:"duration,omitempty"`
	Resolved   bool                 `json:"resolved"`
	ResolvedBy string               `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time           `json:"resolved_at,omitempty"`
	Notes      string               `json:"notes,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// SlackSettingsResponse is the Slack settings without the bot token value.
type SlackSettingsResponse struct {
	AlertsChannel string `json:"alerts_channel"`
	Enabled       bool   `json:"enabled"`
	Configured    bool   `json:"configured"`
}
