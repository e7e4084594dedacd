package services

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/driveguard/driveguard/internal/database"
)

// Risk score component caps. The score is a deliberate heuristic, not a
// statistically derived model: callers must treat it as an opaque monotonic
// indicator, never a probability.
const (
	riskEventWeight  = 5
	riskEventCap     = 40
	riskHighWeight   = 15
	riskMediumWeight = 5
	riskSeverityCap  = 40
	riskDurationCap  = 20
	riskScoreMax     = 100
)

// StatsService computes the per-day and per-driver aggregates. Both are full
// recomputations from a caller-supplied batch, never incremental merges, so
// the caller is responsible for supplying a complete batch (e.g. all of
// today's events).
type StatsService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStatsService creates a new StatsService
func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db, now: time.Now}
}

// ComputeDailyStats derives the per-day aggregate from the batch. The caller
// supplies exactly the events belonging to the date. An empty batch yields
// zero counts and zero averages, never an error.
func ComputeDailyStats(date string, events []database.DrowsinessEvent) database.DailyStats {
	stats := database.DailyStats{Date: date}
	drivers := make(map[string]struct{})

	for _, event := range events {
		stats.TotalEvents++
		switch event.Severity {
		case database.SeverityHigh:
			stats.HighSeverityCount++
		case database.SeverityMedium:
			stats.MediumSeverityCount++
		default:
			stats.LowSeverityCount++
		}
		if event.Duration != nil {
			stats.TotalDuration += *event.Duration
		}
		drivers[event.DriverID] = struct{}{}
		stats.HourlyBreakdown[event.StartTime.UTC().Hour()]++
	}

	stats.DistinctDrivers = len(drivers)
	if stats.TotalEvents > 0 {
		stats.AverageDuration = int(math.Round(float64(stats.TotalDuration) / float64(stats.TotalEvents)))
	}

	// Peak hour: first max in a left-to-right scan, so ties break toward the
	// lowest hour.
	peak := 0
	for hour, count := range stats.HourlyBreakdown {
		if count > stats.HourlyBreakdown[peak] {
			peak = hour
		}
	}
	stats.PeakHour = peak

	return stats
}

// ComputeDriverStats derives the per-driver aggregate. Events in the batch
// belonging to other drivers are ignored.
func ComputeDriverStats(driverID, driverName string, events []database.DrowsinessEvent) database.DriverStats {
	stats := database.DriverStats{DriverID: driverID, DriverName: driverName}

	for _, event := range events {
		if event.DriverID != driverID {
			continue
		}
		stats.TotalEvents++
		switch event.Severity {
		case database.SeverityHigh:
			stats.HighSeverityCount++
		case database.SeverityMedium:
			stats.MediumSeverityCount++
		default:
			stats.LowSeverityCount++
		}
		if event.Duration != nil {
			stats.TotalDrowsinessTime += *event.Duration
		}
		if stats.LastEventTime == nil || event.StartTime.After(*stats.LastEventTime) {
			startTime := event.StartTime
			stats.LastEventTime = &startTime
		}
	}

	if stats.TotalEvents > 0 {
		stats.AverageEventDuration = int(math.Round(float64(stats.TotalDrowsinessTime) / float64(stats.TotalEvents)))
	}
	stats.RiskScore = riskScore(stats.TotalEvents, stats.HighSeverityCount, stats.MediumSeverityCount, stats.TotalDrowsinessTime)

	return stats
}

// riskScore combines capped event-count, severity-mix and duration components
// and clamps the sum to [0, 100]
func riskScore(eventCount, highCount, mediumCount, totalDurationSeconds int) int {
	eventComponent := min(eventCount*riskEventWeight, riskEventCap)
	severityComponent := min(highCount*riskHighWeight+mediumCount*riskMediumWeight, riskSeverityCap)
	durationComponent := min(int(math.Round(float64(totalDurationSeconds)/60)), riskDurationCap)
	return min(eventComponent+severityComponent+durationComponent, riskScoreMax)
}

// SaveDailyStats overwrites the single row keyed by the stats date
func (s *StatsService) SaveDailyStats(stats database.DailyStats) error {
	var existing database.DailyStats
	err := s.db.Where("date = ?", stats.Date).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := s.db.Create(&stats).Error; err != nil {
			return fmt.Errorf("create daily stats: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get daily stats: %w", err)
	}

	stats.ID = existing.ID
	stats.CreatedAt = existing.CreatedAt
	if err := s.db.Save(&stats).Error; err != nil {
		return fmt.Errorf("overwrite daily stats: %w", err)
	}
	return nil
}

// SaveDriverStats overwrites the single row keyed by the driver ID
func (s *StatsService) SaveDriverStats(stats database.DriverStats) error {
	var existing database.DriverStats
	err := s.db.Where("driver_id = ?", stats.DriverID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := s.db.Create(&stats).Error; err != nil {
			return fmt.Errorf("create driver stats: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get driver stats: %w", err)
	}

	stats.ID = existing.ID
	stats.CreatedAt = existing.CreatedAt
	if err := s.db.Save(&stats).Error; err != nil {
		return fmt.Errorf("overwrite driver stats: %w", err)
	}
	return nil
}

// GetDailyStats returns the aggregate for the date, or nil when absent
func (s *StatsService) GetDailyStats(date string) (*database.DailyStats, error) {
	var stats database.DailyStats
	err := s.db.Where("date = ?", date).First(&stats).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get daily stats: %w", err)
	}
	return &stats, nil
}

// GetDriverStats returns the aggregate for the driver, or nil when absent
func (s *StatsService) GetDriverStats(driverID string) (*database.DriverStats, error) {
	var stats database.DriverStats
	err := s.db.Where("driver_id = ?", driverID).First(&stats).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get driver stats: %w", err)
	}
	return &stats, nil
}

// ListDriverStats returns every driver aggregate, highest risk first
func (s *StatsService) ListDriverStats() ([]database.DriverStats, error) {
	var stats []database.DriverStats
	if err := s.db.Order("risk_score DESC").Find(&stats).Error; err != nil {
		return nil, fmt.Errorf("list driver stats: %w", err)
	}
	return stats, nil
}

// DashboardMetrics is the headline dashboard read model
type DashboardMetrics struct {
	TotalEventsToday     int `json:"total_events_today"`
	TotalEventsYesterday int `json:"total_events_yesterday"`
	TrendPercentage      int `json:"trend_percentage"`
	HighSeverityToday    int `json:"high_severity_today"`
	DistinctDriversToday int `json:"distinct_drivers_today"`
	PeakHourToday        int `json:"peak_hour_today"`
	AverageDurationToday int `json:"average_duration_today"`
}

// GetDashboardMetrics reads today's and yesterday's precomputed daily stats
// and derives the day-over-day trend. A missing or empty yesterday yields a
// zero trend, never a division by zero.
func (s *StatsService) GetDashboardMetrics() (*DashboardMetrics, error) {
	// Stats rows are keyed by UTC date; query with the same calendar.
	now := s.now().UTC()
	today, err := s.GetDailyStats(now.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	yesterday, err := s.GetDailyStats(now.AddDate(0, 0, -1).Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	metrics := &DashboardMetrics{}
	if today != nil {
		metrics.TotalEventsToday = today.TotalEvents
		metrics.HighSeverityToday = today.HighSeverityCount
		metrics.DistinctDriversToday = today.DistinctDrivers
		metrics.PeakHourToday = today.PeakHour
		metrics.AverageDurationToday = today.AverageDuration
	}
	if yesterday != nil {
		metrics.TotalEventsYesterday = yesterday.TotalEvents
	}
	if metrics.TotalEventsYesterday > 0 {
		diff := float64(metrics.TotalEventsToday-metrics.TotalEventsYesterday) / float64(metrics.TotalEventsYesterday)
		metrics.TrendPercentage = int(math.Round(diff * 100))
	}
	return metrics, nil
}
