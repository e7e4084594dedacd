package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/feed"
)

// EventService owns drowsiness event identity and resolution state.
// All list operations order by start time descending.
type EventService struct {
	db  *gorm.DB
	bus feed.Bus
}

// NewEventService creates a new EventService
func NewEventService(db *gorm.DB, bus feed.Bus) *EventService {
	return &EventService{db: db, bus: bus}
}

// CreateEventInput holds the fields for a new drowsiness event
type CreateEventInput struct {
	DriverID   string
	DriverName string
	StartTime  time.Time
	EndTime    *time.Time
	Status     database.EventStatus
	Severity   database.Severity
	Notes      string
}

// Create records a new event and assigns its generated event ID.
// Duration is derived from the start/end pair so it is set iff the event
// has ended; an event created without an end time is ongoing.
func (s *EventService) Create(input CreateEventInput) (*database.DrowsinessEvent, error) {
	if input.DriverID == "" {
		return nil, errors.New("driver id is required")
	}
	if !input.Status.IsValid() {
		return nil, fmt.Errorf("invalid event status: %q", input.Status)
	}
	if !input.Severity.IsValid() {
		return nil, fmt.Errorf("invalid severity: %q", input.Severity)
	}
	if input.StartTime.IsZero() {
		input.StartTime = time.Now()
	}

	event := &database.DrowsinessEvent{
		EventID:    "EVT-" + uuid.NewString(),
		DriverID:   input.DriverID,
		DriverName: input.DriverName,
		StartTime:  input.StartTime,
		Status:     input.Status,
		Severity:   input.Severity,
		Notes:      input.Notes,
	}
	if input.EndTime != nil {
		if input.EndTime.Before(input.StartTime) {
			return nil, errors.New("end time before start time")
		}
		event.EndTime = input.EndTime
		duration := int(math.Round(input.EndTime.Sub(input.StartTime).Seconds()))
		event.Duration = &duration
	}

	if err := s.db.Create(event).Error; err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.publish("created", event.EventID)
	return event, nil
}

// Finish sets the end time and derived duration on an ongoing event.
// Finishing an already-finished event overwrites both fields together, so
// the duration/end-time pairing always holds.
func (s *EventService) Finish(eventID string, endTime time.Time) (*database.DrowsinessEvent, error) {
	event, err := s.GetByID(eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}
	if endTime.Before(event.StartTime) {
		return nil, errors.New("end time before start time")
	}

	duration := int(math.Round(endTime.Sub(event.StartTime).Seconds()))
	updates := map[string]interface{}{
		"end_time": endTime,
		"duration": duration,
	}
	if err := s.db.Model(event).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("finish event: %w", err)
	}
	event.EndTime = &endTime
	event.Duration = &duration

	s.publish("updated", event.EventID)
	return event, nil
}

// Resolve marks the event resolved by the given actor. Both resolution
// timestamp and resolver are stamped together; an empty notes argument leaves
// the existing notes untouched.
func (s *EventService) Resolve(eventID, actor, notes string) (*database.DrowsinessEvent, error) {
	if actor == "" {
		return nil, errors.New("actor is required")
	}

	event, err := s.GetByID(eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"resolved":    true,
		"resolved_at": now,
		"resolved_by": actor,
	}
	if notes != "" {
		updates["notes"] = notes
	}
	if err := s.db.Model(event).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("resolve event: %w", err)
	}
	event.Resolved = true
	event.ResolvedAt = &now
	event.ResolvedBy = actor
	if notes != "" {
		event.Notes = notes
	}

	s.publish("updated", event.EventID)
	return event, nil
}

// GetByID returns the event, or nil when absent
func (s *EventService) GetByID(eventID string) (*database.DrowsinessEvent, error) {
	var event database.DrowsinessEvent
	err := s.db.Where("event_id = ?", eventID).First(&event).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// ListRecent returns events whose start time falls inside the window
func (s *EventService) ListRecent(window time.Duration, limit int) ([]database.DrowsinessEvent, error) {
	var events []database.DrowsinessEvent
	cutoff := time.Now().Add(-window)
	query := s.db.Where("start_time >= ?", cutoff).Order("start_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	return events, nil
}

// ListByDriver returns all events for one driver
func (s *EventService) ListByDriver(driverID string) ([]database.DrowsinessEvent, error) {
	var events []database.DrowsinessEvent
	if err := s.db.Where("driver_id = ?", driverID).Order("start_time DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events by driver: %w", err)
	}
	return events, nil
}

// ListBySeverity returns all events of one severity
func (s *EventService) ListBySeverity(severity database.Severity) ([]database.DrowsinessEvent, error) {
	var events []database.DrowsinessEvent
	if err := s.db.Where("severity = ?", severity).Order("start_time DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events by severity: %w", err)
	}
	return events, nil
}

// ListUnresolved returns all unresolved events
func (s *EventService) ListUnresolved() ([]database.DrowsinessEvent, error) {
	var events []database.DrowsinessEvent
	if err := s.db.Where("resolved = ?", false).Order("start_time DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list unresolved events: %w", err)
	}
	return events, nil
}

// ListByDate returns all events whose start time falls on the given calendar
// day (UTC). Used to assemble aggregation batches.
func (s *EventService) ListByDate(date string) ([]database.DrowsinessEvent, error) {
	dayStart, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	dayEnd := dayStart.Add(24 * time.Hour)

	var events []database.DrowsinessEvent
	if err := s.db.Where("start_time >= ? AND start_time < ?", dayStart, dayEnd).
		Order("start_time DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events by date: %w", err)
	}
	return events, nil
}

// EventCursor marks a position in the start-time-descending event order.
// It is the last item of the previous page.
type EventCursor struct {
	StartTime time.Time `json:"start_time"`
	ID        uint      `json:"id"`
}

// Paginate returns one page of events plus the cursor for the next page.
// A nil cursor starts from the newest event; a nil next cursor means the
// last page was reached.
func (s *EventService) Paginate(pageSize int, cursor *EventCursor) ([]database.DrowsinessEvent, *EventCursor, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	query := s.db.Order("start_time DESC, id DESC").Limit(pageSize + 1)
	if cursor != nil {
		query = query.Where("start_time < ? OR (start_time = ? AND id < ?)",
			cursor.StartTime, cursor.StartTime, cursor.ID)
	}

	var events []database.DrowsinessEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, nil, fmt.Errorf("paginate events: %w", err)
	}

	var next *EventCursor
	if len(events) > pageSize {
		events = events[:pageSize]
		last := events[len(events)-1]
		next = &EventCursor{StartTime: last.StartTime, ID: last.ID}
	}
	return events, next, nil
}

// EventFilter narrows an event subscription. The zero value matches all
// events.
type EventFilter struct {
	Severity       database.Severity
	UnresolvedOnly bool
	Limit          int
}

// Subscribe pushes the matching ordered event set to onSet: once immediately,
// then again after every event mutation. Stream errors go to onError and the
// subscription stays alive.
func (s *EventService) Subscribe(filter EventFilter, onSet func([]database.DrowsinessEvent), onError func(error)) (feed.Unsubscribe, error) {
	refetch := func() {
		events, err := s.listFiltered(filter)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onSet(events)
	}

	unsub, err := s.bus.Subscribe(feed.SubjectEvents, func([]byte) { refetch() }, onError)
	if err != nil {
		return nil, err
	}

	refetch()
	return unsub, nil
}

func (s *EventService) listFiltered(filter EventFilter) ([]database.DrowsinessEvent, error) {
	query := s.db.Order("start_time DESC")
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.UnresolvedOnly {
		query = query.Where("resolved = ?", false)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var events []database.DrowsinessEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *EventService) publish(op, id string) {
	change := feed.Change{Collection: "events", Op: op, ID: id}
	if err := s.bus.Publish(feed.SubjectEvents, change.Encode()); err != nil {
		log.Printf("EventService: failed to publish change for %s: %v", id, err)
	}
}
