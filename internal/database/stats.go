package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// HourlyHistogram is a 24-bucket event count histogram, one bucket per hour,
// stored as a JSON array
type HourlyHistogram [24]int

// Scan implements the sql.Scanner interface
func (h *HourlyHistogram) Scan(value interface{}) error {
	if value == nil {
		*h = HourlyHistogram{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	}
	return errors.New("unsupported type for HourlyHistogram")
}

// Value implements the driver.Valuer interface
func (h HourlyHistogram) Value() (driver.Value, error) {
	return json.Marshal(h)
}

// Sum returns the total count across all 24 buckets
func (h HourlyHistogram) Sum() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// DailyStats is the per-calendar-day aggregate. One row per date, fully
// recomputed and overwritten on each aggregation run rather than updated
// incrementally.
type DailyStats struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	Date                string          `gorm:"uniqueIndex;size:10;not null" json:"date"` // YYYY-MM-DD, the natural key
	TotalEvents         int             `json:"total_events"`
	HighSeverityCount   int             `json:"high_severity_count"`
	MediumSeverityCount int             `json:"medium_severity_count"`
	LowSeverityCount    int             `json:"low_severity_count"`
	TotalDuration       int             `json:"total_duration"`   // Seconds
	AverageDuration     int             `json:"average_duration"` // Seconds, rounded
	DistinctDrivers     int             `json:"distinct_drivers"`
	PeakHour            int             `json:"peak_hour"` // 0-23, first max in a left-to-right scan
	HourlyBreakdown     HourlyHistogram `gorm:"type:jsonb" json:"hourly_breakdown"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (DailyStats) TableName() string {
	return "daily_stats"
}

// DriverStats is the per-driver aggregate, keyed by driver ID and fully
// overwritten per aggregation run.
type DriverStats struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	DriverID             string     `gorm:"uniqueIndex;size:64;not null" json:"driver_id"`
	DriverName           string     `gorm:"size:255" json:"driver_name"`
	TotalEvents          int        `json:"total_events"`
	HighSeverityCount    int        `json:"high_severity_count"`
	MediumSeverityCount  int        `json:"medium_severity_count"`
	LowSeverityCount     int        `json:"low_severity_count"`
	TotalDrowsinessTime  int        `json:"total_drowsiness_time"`  // Seconds across all events
	AverageEventDuration int        `json:"average_event_duration"` // Seconds, rounded; 0 with no events
	LastEventTime        *time.Time `json:"last_event_time"`
	RiskScore            int        `json:"risk_score"` // Heuristic 0-100 indicator, not a probability
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (DriverStats) TableName() string {
	return "driver_stats"
}
