package database

import "time"

// AlertPriority represents the urgency of an alert
type AlertPriority string

const (
	AlertPriorityLow      AlertPriority = "low"
	AlertPriorityMedium   AlertPriority = "medium"
	AlertPriorityHigh     AlertPriority = "high"
	AlertPriorityCritical AlertPriority = "critical"
)

// IsValid reports whether the priority is a recognized value
func (p AlertPriority) IsValid() bool {
	switch p {
	case AlertPriorityLow, AlertPriorityMedium, AlertPriorityHigh, AlertPriorityCritical:
		return true
	}
	return false
}

// AlertType represents the kind of alert
type AlertType string

const (
	AlertTypeDrowsiness AlertType = "drowsiness"
	AlertTypeSystem     AlertType = "system"
)

// Alert is a notification derived from an event (or raised directly).
//
// The Acknowledged flag transitions false -> true once and never back.
// Re-acknowledging re-stamps AcknowledgedBy/AcknowledgedAt but is otherwise
// a no-op.
type Alert struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	AlertID        string        `gorm:"uniqueIndex;size:64;not null" json:"alert_id"`
	Type           AlertType     `gorm:"type:varchar(50);not null" json:"type"`
	Priority       AlertPriority `gorm:"type:varchar(20);not null;index" json:"priority"`
	DriverID       string        `gorm:"size:64;not null;index" json:"driver_id"`
	DriverName     string        `gorm:"size:255" json:"driver_name"`
	EventID        string        `gorm:"size:64;index" json:"event_id"` // Originating event, empty for manual alerts
	Message        string        `gorm:"type:text" json:"message"`
	Acknowledged   bool          `gorm:"default:false;index" json:"acknowledged"`
	AcknowledgedBy string        `gorm:"size:255" json:"acknowledged_by"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

func (Alert) TableName() string {
	return "alerts"
}
