package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// DriverProfile represents a monitored driver.
// Drivers are soft-deleted via the Active flag and never hard-deleted
// in the normal flow, so historical events keep a valid reference.
type DriverProfile struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DriverID   string    `gorm:"uniqueIndex;size:64;not null" json:"driver_id"` // Externally assigned ID (e.g., "DRV001")
	Name       string    `gorm:"size:255;not null" json:"name"`
	Age        int       `json:"age"`
	Experience int       `json:"experience"` // Years of driving experience
	Phone      string    `gorm:"size:64" json:"phone"`
	Email      string    `gorm:"size:255" json:"email"`
	Active     bool      `gorm:"default:true;index" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (DriverProfile) TableName() string {
	return "driver_profiles"
}

// SlackSettings stores the critical-alert notifier configuration
type SlackSettings struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BotToken      string    `gorm:"type:text" json:"bot_token"`
	AlertsChannel string    `gorm:"type:varchar(255)" json:"alerts_channel"`
	Enabled       bool      `gorm:"default:false" json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsConfigured returns true if the bot token and channel are set
func (s *SlackSettings) IsConfigured() bool {
	return s.BotToken != "" && s.AlertsChannel != ""
}

// IsActive returns true if the notifier is enabled and configured
func (s *SlackSettings) IsActive() bool {
	return s.Enabled && s.IsConfigured()
}
