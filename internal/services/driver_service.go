package services

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/feed"
)

// DriverService manages driver profiles. Drivers are soft-deleted via the
// active flag, never hard-deleted.
type DriverService struct {
	db  *gorm.DB
	bus feed.Bus
}

// NewDriverService creates a new DriverService
func NewDriverService(db *gorm.DB, bus feed.Bus) *DriverService {
	return &DriverService{db: db, bus: bus}
}

// Create registers a new driver profile
func (s *DriverService) Create(profile *database.DriverProfile) error {
	if profile.DriverID == "" {
		return errors.New("driver id is required")
	}
	if profile.Name == "" {
		return errors.New("driver name is required")
	}
	profile.Active = true

	if err := s.db.Create(profile).Error; err != nil {
		return fmt.Errorf("create driver: %w", err)
	}
	s.publish("created", profile.DriverID)
	return nil
}

// Update overwrites the updatable profile fields
func (s *DriverService) Update(driverID string, updates map[string]interface{}) (*database.DriverProfile, error) {
	profile, err := s.GetByDriverID(driverID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("driver not found: %s", driverID)
	}

	// The natural key is not updatable.
	delete(updates, "driver_id")

	if err := s.db.Model(profile).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update driver: %w", err)
	}
	s.publish("updated", driverID)
	return s.GetByDriverID(driverID)
}

// Deactivate soft-deletes the driver. The row is kept so historical events
// and stats keep a valid reference.
func (s *DriverService) Deactivate(driverID string) (*database.DriverProfile, error) {
	return s.Update(driverID, map[string]interface{}{"active": false})
}

// GetByDriverID returns the profile, or nil when absent
func (s *DriverService) GetByDriverID(driverID string) (*database.DriverProfile, error) {
	var profile database.DriverProfile
	err := s.db.Where("driver_id = ?", driverID).First(&profile).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get driver: %w", err)
	}
	return &profile, nil
}

// ListActive returns all active drivers ordered by name
func (s *DriverService) ListActive() ([]database.DriverProfile, error) {
	var profiles []database.DriverProfile
	if err := s.db.Where("active = ?", true).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list active drivers: %w", err)
	}
	return profiles, nil
}

// ListAll returns every driver, inactive ones included
func (s *DriverService) ListAll() ([]database.DriverProfile, error) {
	var profiles []database.DriverProfile
	if err := s.db.Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return profiles, nil
}

// Subscribe pushes the active driver set to onSet: once immediately, then
// again after every profile mutation
func (s *DriverService) Subscribe(onSet func([]database.DriverProfile), onError func(error)) (feed.Unsubscribe, error) {
	refetch := func() {
		profiles, err := s.ListActive()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onSet(profiles)
	}

	unsub, err := s.bus.Subscribe(feed.SubjectDrivers, func([]byte) { refetch() }, onError)
	if err != nil {
		return nil, err
	}

	refetch()
	return unsub, nil
}

func (s *DriverService) publish(op, id string) {
	change := feed.Change{Collection: "drivers", Op: op, ID: id}
	if err := s.bus.Publish(feed.SubjectDrivers, change.Encode()); err != nil {
		log.Printf("DriverService: failed to publish change for %s: %v", id, err)
	}
}
