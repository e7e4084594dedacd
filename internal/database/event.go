package database

import "time"

// EventStatus represents the driver state captured by an event
type EventStatus string

const (
	EventStatusAlert    EventStatus = "alert"
	EventStatusDrowsy   EventStatus = "drowsy"
	EventStatusSleeping EventStatus = "sleeping"
)

// ValidEventStatuses returns all recognized event statuses
func ValidEventStatuses() []EventStatus {
	return []EventStatus{EventStatusAlert, EventStatusDrowsy, EventStatusSleeping}
}

// IsValid reports whether the status is a recognized value
func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusAlert, EventStatusDrowsy, EventStatusSleeping:
		return true
	}
	return false
}

// Severity classifies an event
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IsValid reports whether the severity is a recognized value
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// DrowsinessEvent records one detected drowsiness episode.
//
// An event with EndTime == nil is ongoing; Duration is set iff EndTime is set.
// Resolved == true iff ResolvedAt and ResolvedBy are both set. Events are
// never deleted.
type DrowsinessEvent struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	EventID    string      `gorm:"uniqueIndex;size:64;not null" json:"event_id"`
	DriverID   string      `gorm:"size:64;not null;index" json:"driver_id"`
	DriverName string      `gorm:"size:255" json:"driver_name"` // Denormalized for list views
	StartTime  time.Time   `gorm:"not null;index" json:"start_time"`
	EndTime    *time.Time  `json:"end_time"`
	Duration   *int        `json:"duration"` // Seconds; nil while the event is ongoing
	Status     EventStatus `gorm:"type:varchar(20);not null" json:"status"`
	Severity   Severity    `gorm:"type:varchar(20);not null;index" json:"severity"`
	Resolved   bool        `gorm:"default:false;index" json:"resolved"`
	ResolvedAt *time.Time  `json:"resolved_at"`
	ResolvedBy string      `gorm:"size:255" json:"resolved_by"`
	Notes      string      `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

func (DrowsinessEvent) TableName() string {
	return "drowsiness_events"
}

// Ongoing reports whether the event has not ended yet
func (e *DrowsinessEvent) Ongoing() bool {
	return e.EndTime == nil
}
