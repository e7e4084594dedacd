package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/feed"
	"github.com/driveguard/driveguard/internal/livestatus"
)

// DefaultPollInterval is how often the live-status snapshot is refreshed
const DefaultPollInterval = 5 * time.Second

// MergedDriver composes a driver profile with its live status. Event counts
// and cumulative drowsiness time are not populated here; callers back-fill
// them from DriverStats when they need analytics.
type MergedDriver struct {
	database.DriverProfile
	CurrentStatus livestatus.DriverStatus `json:"current_status"`
	LastUpdated   int64                   `json:"last_updated"`
	SessionStart  *int64                  `json:"session_start"`
}

// RosterService joins driver profiles with live status entries.
//
// The two sides refresh on different cadences on purpose: profile changes
// arrive by push subscription, while the live-status snapshot is pulled on a
// fixed interval. The merged view can therefore lag the true live status by
// up to one polling interval, which is acceptable staleness for a live
// indicator.
type RosterService struct {
	drivers *DriverService
	live    livestatus.Store

	mu       sync.RWMutex
	snapshot map[string]livestatus.Entry
}

// NewRosterService creates a new RosterService
func NewRosterService(drivers *DriverService, live livestatus.Store) *RosterService {
	return &RosterService{
		drivers:  drivers,
		live:     live,
		snapshot: make(map[string]livestatus.Entry),
	}
}

// RefreshSnapshot pulls the current live-status set into the merge snapshot
func (s *RosterService) RefreshSnapshot(ctx context.Context) error {
	entries, err := s.live.GetAll(ctx)
	if err != nil {
		return err
	}

	snapshot := make(map[string]livestatus.Entry, len(entries))
	for _, entry := range entries {
		snapshot[entry.DriverID] = entry
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
	return nil
}

// Merge returns the composite read model: every active driver joined with
// the most recently fetched live-status entry. Drivers without an entry
// default to offline.
func (s *RosterService) Merge(ctx context.Context) ([]MergedDriver, error) {
	profiles, err := s.drivers.ListActive()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	merged := make([]MergedDriver, 0, len(profiles))
	for _, profile := range profiles {
		m := MergedDriver{
			DriverProfile: profile,
			CurrentStatus: livestatus.StatusOffline,
		}
		if entry, ok := snapshot[profile.DriverID]; ok {
			m.CurrentStatus = entry.Status
			m.LastUpdated = entry.LastUpdated
			m.SessionStart = entry.SessionStart
		}
		merged = append(merged, m)
	}
	return merged, nil
}

// Subscribe pushes the merged roster to onSet: once immediately, then on
// every driver profile change. Live-status staleness between polls is not
// re-pushed; the next profile change or poll picks it up.
func (s *RosterService) Subscribe(ctx context.Context, onSet func([]MergedDriver), onError func(error)) (feed.Unsubscribe, error) {
	remerge := func() {
		merged, err := s.Merge(ctx)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onSet(merged)
	}

	unsub, err := s.drivers.Subscribe(func([]database.DriverProfile) { remerge() }, onError)
	if err != nil {
		return nil, err
	}
	return unsub, nil
}

// Start runs the snapshot poll loop until the stop channel closes
func (s *RosterService) Start(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-ticker.C:
			if err := s.RefreshSnapshot(ctx); err != nil {
				log.Printf("RosterService: snapshot refresh failed: %v", err)
			}
		case <-stop:
			log.Println("Roster poller stopped")
			return
		}
	}
}
