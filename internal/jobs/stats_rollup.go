package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/driveguard/driveguard/internal/services"
)

// StatsRollup periodically re-derives the daily and per-driver aggregates
// from scratch. Every run is a full recomputation over a fresh batch, never
// an incremental merge, so a missed or failed run is fully repaired by the
// next one.
type StatsRollup struct {
	events  *services.EventService
	drivers *services.DriverService
	stats   *services.StatsService
	now     func() time.Time
}

// NewStatsRollup creates a new stats rollup job
func NewStatsRollup(events *services.EventService, drivers *services.DriverService, stats *services.StatsService) *StatsRollup {
	return &StatsRollup{events: events, drivers: drivers, stats: stats, now: time.Now}
}

// Run recomputes today's daily stats and every active driver's stats.
// Returns the number of driver aggregates written.
func (j *StatsRollup) Run() (int, error) {
	date := j.now().UTC().Format("2006-01-02")

	batch, err := j.events.ListByDate(date)
	if err != nil {
		return 0, fmt.Errorf("fetch daily batch: %w", err)
	}
	daily := services.ComputeDailyStats(date, batch)
	if err := j.stats.SaveDailyStats(daily); err != nil {
		return 0, fmt.Errorf("save daily stats: %w", err)
	}

	profiles, err := j.drivers.ListActive()
	if err != nil {
		return 0, fmt.Errorf("list drivers: %w", err)
	}

	written := 0
	for _, profile := range profiles {
		driverBatch, err := j.events.ListByDriver(profile.DriverID)
		if err != nil {
			log.Printf("StatsRollup: failed to fetch events for %s: %v", profile.DriverID, err)
			continue
		}
		driverStats := services.ComputeDriverStats(profile.DriverID, profile.Name, driverBatch)
		if err := j.stats.SaveDriverStats(driverStats); err != nil {
			log.Printf("StatsRollup: failed to save stats for %s: %v", profile.DriverID, err)
			continue
		}
		written++
	}

	return written, nil
}

// Start begins the periodic rollup
func (j *StatsRollup) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			written, err := j.Run()
			if err != nil {
				log.Printf("Stats rollup error: %v", err)
			} else {
				log.Printf("Stats rollup: recomputed daily stats and %d driver aggregates", written)
			}
		case <-stop:
			log.Println("Stats rollup stopped")
			return
		}
	}
}
