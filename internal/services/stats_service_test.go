package services

import (
	"testing"
	"time"

	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/testhelpers"
)

func dur(seconds int) *int {
	return &seconds
}

func eventAt(driverID string, severity database.Severity, hour int, duration *int) database.DrowsinessEvent {
	start := time.Date(2026, 8, 28, hour, 15, 0, 0, time.UTC)
	return database.DrowsinessEvent{
		DriverID:  driverID,
		StartTime: start,
		Status:    database.EventStatusDrowsy,
		Severity:  severity,
		Duration:  duration,
	}
}

func TestComputeDailyStats_SumsMatch(t *testing.T) {
	events := []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityHigh, 8, dur(60)),
		eventAt("DRV001", database.SeverityMedium, 8, dur(30)),
		eventAt("DRV002", database.SeverityLow, 14, dur(10)),
		eventAt("DRV003", database.SeverityHigh, 22, nil),
	}

	stats := ComputeDailyStats("2026-08-28", events)

	if stats.TotalEvents != 4 {
		t.Errorf("expected 4 total events, got %d", stats.TotalEvents)
	}
	if got := stats.HighSeverityCount + stats.MediumSeverityCount + stats.LowSeverityCount; got != stats.TotalEvents {
		t.Errorf("severity buckets sum to %d, want %d", got, stats.TotalEvents)
	}
	if got := stats.HourlyBreakdown.Sum(); got != 4 {
		t.Errorf("histogram sums to %d, want 4", got)
	}
	if stats.DistinctDrivers != 3 {
		t.Errorf("expected 3 distinct drivers, got %d", stats.DistinctDrivers)
	}
	if stats.TotalDuration != 100 {
		t.Errorf("expected total duration 100, got %d", stats.TotalDuration)
	}
	// 100/4 = 25.
	if stats.AverageDuration != 25 {
		t.Errorf("expected average duration 25, got %d", stats.AverageDuration)
	}
	if stats.PeakHour != 8 {
		t.Errorf("expected peak hour 8, got %d", stats.PeakHour)
	}
}

func TestComputeDailyStats_PeakHourTieBreaksLow(t *testing.T) {
	events := []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityLow, 14, nil),
		eventAt("DRV001", database.SeverityLow, 6, nil),
	}

	stats := ComputeDailyStats("2026-08-28", events)
	if stats.PeakHour != 6 {
		t.Errorf("tie must break to the lowest hour, got %d", stats.PeakHour)
	}
}

func TestComputeDailyStats_EmptyBatch(t *testing.T) {
	stats := ComputeDailyStats("2026-08-28", nil)

	if stats.TotalEvents != 0 || stats.AverageDuration != 0 || stats.DistinctDrivers != 0 {
		t.Errorf("empty batch must yield zero defaults: %+v", stats)
	}
	if stats.PeakHour != 0 {
		t.Errorf("expected peak hour 0 on empty batch, got %d", stats.PeakHour)
	}
}

func TestComputeDriverStats_EmptyBatch(t *testing.T) {
	stats := ComputeDriverStats("DRV001", "John Miller", nil)

	if stats.TotalEvents != 0 {
		t.Errorf("expected 0 events, got %d", stats.TotalEvents)
	}
	if stats.AverageEventDuration != 0 {
		t.Errorf("expected 0 average, got %d", stats.AverageEventDuration)
	}
	if stats.RiskScore != 0 {
		t.Errorf("expected 0 risk score, got %d", stats.RiskScore)
	}
	if stats.LastEventTime != nil {
		t.Errorf("expected nil last event time, got %v", stats.LastEventTime)
	}
}

func TestComputeDriverStats_WorkedScenario(t *testing.T) {
	// One high (78s), one medium (34s), one low (12s) for DRV001.
	events := []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityHigh, 8, dur(78)),
		eventAt("DRV001", database.SeverityMedium, 9, dur(34)),
		eventAt("DRV001", database.SeverityLow, 10, dur(12)),
	}

	stats := ComputeDriverStats("DRV001", "John Miller", events)

	if stats.TotalEvents != 3 {
		t.Errorf("expected 3 events, got %d", stats.TotalEvents)
	}
	if stats.TotalDrowsinessTime != 124 {
		t.Errorf("expected total 124, got %d", stats.TotalDrowsinessTime)
	}
	// 124/3 = 41.33 -> 41.
	if stats.AverageEventDuration != 41 {
		t.Errorf("expected average 41, got %d", stats.AverageEventDuration)
	}
	if stats.HighSeverityCount != 1 || stats.MediumSeverityCount != 1 || stats.LowSeverityCount != 1 {
		t.Errorf("unexpected severity buckets: %+v", stats)
	}
	// min(3*5,40) + min(1*15+1*5,40) + min(round(124/60),20) = 15+20+2 = 37.
	if stats.RiskScore != 37 {
		t.Errorf("expected risk score 37, got %d", stats.RiskScore)
	}
}

func TestComputeDriverStats_IgnoresOtherDrivers(t *testing.T) {
	events := []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityHigh, 8, dur(60)),
		eventAt("DRV002", database.SeverityHigh, 8, dur(60)),
	}

	stats := ComputeDriverStats("DRV001", "John Miller", events)
	if stats.TotalEvents != 1 {
		t.Errorf("expected events from other drivers ignored, got %d", stats.TotalEvents)
	}
}

func TestComputeDriverStats_LastEventTime(t *testing.T) {
	early := eventAt("DRV001", database.SeverityLow, 6, nil)
	late := eventAt("DRV001", database.SeverityLow, 20, nil)
	stats := ComputeDriverStats("DRV001", "John Miller", []database.DrowsinessEvent{late, early})

	if stats.LastEventTime == nil || !stats.LastEventTime.Equal(late.StartTime) {
		t.Errorf("expected last event time %v, got %v", late.StartTime, stats.LastEventTime)
	}
}

func TestRiskScore_MonotonicAndClamped(t *testing.T) {
	base := riskScore(2, 1, 1, 120)

	if riskScore(3, 1, 1, 120) < base {
		t.Error("risk score must not decrease as event count grows")
	}
	if riskScore(2, 2, 1, 120) < base {
		t.Error("risk score must not decrease as high count grows")
	}
	if riskScore(2, 1, 2, 120) < base {
		t.Error("risk score must not decrease as medium count grows")
	}
	if riskScore(2, 1, 1, 600) < base {
		t.Error("risk score must not decrease as total duration grows")
	}

	if got := riskScore(1000, 1000, 1000, 1_000_000); got != 100 {
		t.Errorf("expected clamp to 100, got %d", got)
	}
	if got := riskScore(0, 0, 0, 0); got != 0 {
		t.Errorf("expected 0 for no activity, got %d", got)
	}
}

func TestStatsService_SaveDailyStats_OverwritesByDate(t *testing.T) {
	svc := NewStatsService(setupTestDB(t))

	first := ComputeDailyStats("2026-08-28", []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityHigh, 8, dur(60)),
	})
	if err := svc.SaveDailyStats(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A later full recomputation overwrites the same row.
	second := ComputeDailyStats("2026-08-28", []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityHigh, 8, dur(60)),
		eventAt("DRV002", database.SeverityLow, 9, dur(10)),
	})
	if err := svc.SaveDailyStats(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := svc.GetDailyStats("2026-08-28")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.TotalEvents != 2 {
		t.Errorf("expected overwritten total 2, got %d", stored.TotalEvents)
	}

	var count int64
	svc.db.Model(&database.DailyStats{}).Count(&count)
	if count != 1 {
		t.Errorf("expected a single row per date, got %d", count)
	}
}

func TestStatsService_SaveDriverStats_OverwritesByDriver(t *testing.T) {
	svc := NewStatsService(setupTestDB(t))

	svc.SaveDriverStats(ComputeDriverStats("DRV001", "John Miller", []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityLow, 8, dur(10)),
	}))
	svc.SaveDriverStats(ComputeDriverStats("DRV001", "John Miller", []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityLow, 8, dur(10)),
		eventAt("DRV001", database.SeverityHigh, 9, dur(78)),
	}))

	stored, err := svc.GetDriverStats("DRV001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.TotalEvents != 2 {
		t.Errorf("expected overwritten total 2, got %d", stored.TotalEvents)
	}

	var count int64
	svc.db.Model(&database.DriverStats{}).Count(&count)
	if count != 1 {
		t.Errorf("expected a single row per driver, got %d", count)
	}
}

func TestStatsService_GetDashboardMetrics_MissingYesterday(t *testing.T) {
	svc := NewStatsService(setupTestDB(t))
	svc.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

	today := ComputeDailyStats("2026-08-28", []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityHigh, 8, dur(60)),
		eventAt("DRV002", database.SeverityLow, 9, dur(20)),
	})
	svc.SaveDailyStats(today)

	metrics, err := svc.GetDashboardMetrics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.TotalEventsToday != 2 {
		t.Errorf("expected 2 events today, got %d", metrics.TotalEventsToday)
	}
	// No yesterday row: trend is 0, not a division by zero.
	if metrics.TrendPercentage != 0 {
		t.Errorf("expected trend 0 with missing yesterday, got %d", metrics.TrendPercentage)
	}
}

func TestComputeDailyStats_HourlyBucketsAreUTC(t *testing.T) {
	// 23:15 UTC expressed in a +13:00 zone. The bucket must follow the UTC
	// clock, not the event's local representation.
	zone := time.FixedZone("", 13*3600)
	events := []database.DrowsinessEvent{
		testhelpers.NewEventBuilder().
			WithDriverID("DRV001").
			WithSeverity(database.SeverityHigh).
			WithStartTime(time.Date(2026, 8, 29, 12, 15, 0, 0, zone)).
			Build(),
	}

	stats := ComputeDailyStats("2026-08-28", events)

	if stats.HourlyBreakdown[23] != 1 {
		t.Errorf("expected event in UTC hour 23, breakdown: %v", stats.HourlyBreakdown)
	}
	if stats.PeakHour != 23 {
		t.Errorf("peak hour = %d, want 23", stats.PeakHour)
	}
}

func TestStatsService_GetDashboardMetrics_NonUTCClock(t *testing.T) {
	svc := NewStatsService(setupTestDB(t))
	// 00:30 on Aug 29 in a +13:00 zone is still Aug 28 in UTC, which is the
	// calendar the rollup keys rows by.
	zone := time.FixedZone("", 13*3600)
	svc.now = func() time.Time { return time.Date(2026, 8, 29, 0, 30, 0, 0, zone) }

	svc.SaveDailyStats(ComputeDailyStats("2026-08-28", []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityHigh, 8, dur(60)),
	}))

	metrics, err := svc.GetDashboardMetrics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.TotalEventsToday != 1 {
		t.Errorf("expected today's stats under the UTC date key, got %+v", metrics)
	}
}

func TestStatsService_GetDashboardMetrics_Trend(t *testing.T) {
	svc := NewStatsService(setupTestDB(t))
	svc.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

	svc.SaveDailyStats(ComputeDailyStats("2026-08-27", []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityLow, 8, dur(10)),
		eventAt("DRV001", database.SeverityLow, 9, dur(10)),
		eventAt("DRV001", database.SeverityLow, 10, dur(10)),
		eventAt("DRV001", database.SeverityLow, 11, dur(10)),
	}))
	svc.SaveDailyStats(ComputeDailyStats("2026-08-28", []database.DrowsinessEvent{
		eventAt("DRV001", database.SeverityLow, 8, dur(10)),
		eventAt("DRV001", database.SeverityLow, 9, dur(10)),
		eventAt("DRV001", database.SeverityLow, 10, dur(10)),
	}))

	metrics, err := svc.GetDashboardMetrics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (3-4)/4 = -25%.
	if metrics.TrendPercentage != -25 {
		t.Errorf("expected trend -25, got %d", metrics.TrendPercentage)
	}
}
