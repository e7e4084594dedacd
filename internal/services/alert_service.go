package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/feed"
)

// alertNamespace seeds deterministic alert IDs for the automatic path.
// Deriving the alert ID from the originating event ID makes alert creation
// idempotent: a retried pipeline step finds the existing row instead of
// double-creating.
var alertNamespace = uuid.MustParse("7d44c1a4-52e6-4f3b-9b1e-0c5a8f2d6e90")

// AlertService derives and manages alerts
type AlertService struct {
	db  *gorm.DB
	bus feed.Bus
}

// NewAlertService creates a new AlertService
func NewAlertService(db *gorm.DB, bus feed.Bus) *AlertService {
	return &AlertService{db: db, bus: bus}
}

// PriorityForSeverity applies the fixed severity-to-priority mapping:
// low -> low, medium -> medium, high -> critical. The mapping is total over
// the severity enum.
func PriorityForSeverity(severity database.Severity) database.AlertPriority {
	switch severity {
	case database.SeverityHigh:
		return database.AlertPriorityCritical
	case database.SeverityMedium:
		return database.AlertPriorityMedium
	default:
		return database.AlertPriorityLow
	}
}

// DeterministicAlertID derives the alert ID for an event's automatic alert
func DeterministicAlertID(eventID string) string {
	return "ALT-" + uuid.NewSHA1(alertNamespace, []byte(eventID)).String()
}

// CreateAlertInput holds the fields for a new alert
type CreateAlertInput struct {
	AlertID    string // Optional; generated when empty
	Type       database.AlertType
	Priority   database.AlertPriority
	DriverID   string
	DriverName string
	EventID    string
	Message    string
}

// Create persists a new alert with acknowledged=false. When the alert ID is
// already present (a retried automatic creation), the existing alert is
// returned unchanged.
func (s *AlertService) Create(input CreateAlertInput) (*database.Alert, error) {
	if input.DriverID == "" {
		return nil, errors.New("driver id is required")
	}
	if !input.Priority.IsValid() {
		return nil, fmt.Errorf("invalid priority: %q", input.Priority)
	}
	if input.AlertID == "" {
		input.AlertID = "ALT-" + uuid.NewString()
	}

	var existing database.Alert
	err := s.db.Where("alert_id = ?", input.AlertID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("check alert: %w", err)
	}

	alert := &database.Alert{
		AlertID:    input.AlertID,
		Type:       input.Type,
		Priority:   input.Priority,
		DriverID:   input.DriverID,
		DriverName: input.DriverName,
		EventID:    input.EventID,
		Message:    input.Message,
	}
	if err := s.db.Create(alert).Error; err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	return alert, nil
}

// CreateFromEvent derives an alert from an event. This is a pure derivation:
// the same inputs always produce the same priority, the same alert ID, and an
// equivalent message modulo the embedded driver name and status text.
func (s *AlertService) CreateFromEvent(driverID, driverName, eventID string, severity database.Severity, status database.EventStatus) (*database.Alert, error) {
	if !severity.IsValid() {
		return nil, fmt.Errorf("invalid severity: %q", severity)
	}
	return s.Create(CreateAlertInput{
		AlertID:    DeterministicAlertID(eventID),
		Type:       database.AlertTypeDrowsiness,
		Priority:   PriorityForSeverity(severity),
		DriverID:   driverID,
		DriverName: driverName,
		EventID:    eventID,
		Message:    alertMessage(driverName, severity, status),
	})
}

// alertMessage renders the fixed per-severity template
func alertMessage(driverName string, severity database.Severity, status database.EventStatus) string {
	switch severity {
	case database.SeverityHigh:
		return fmt.Sprintf("URGENT: driver %s is %s. Immediate intervention required.", driverName, status)
	case database.SeverityMedium:
		return fmt.Sprintf("Driver %s is %s. Consider contacting the driver.", driverName, status)
	default:
		return fmt.Sprintf("Driver %s showed signs of being %s. Monitor the situation.", driverName, status)
	}
}

// Broadcast fans out a copy of the alert for instant delivery. This is a
// separate step from persistence: the write and the fan-out are two
// independent operations with no transaction spanning them.
func (s *AlertService) Broadcast(alert *database.Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := s.bus.Publish(feed.SubjectAlerts, body); err != nil {
		return fmt.Errorf("broadcast alert: %w", err)
	}
	return nil
}

// Acknowledge transitions the alert to acknowledged. The transition is
// one-way and idempotent: re-acknowledging an already-acknowledged alert
// re-stamps the actor and timestamp and changes nothing else.
func (s *AlertService) Acknowledge(alertID, actor string) (*database.Alert, error) {
	if actor == "" {
		return nil, errors.New("actor is required")
	}

	var alert database.Alert
	err := s.db.Where("alert_id = ?", alertID).First(&alert).Error
	if err == gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("alert not found: %s", alertID)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"acknowledged":    true,
		"acknowledged_by": actor,
		"acknowledged_at": now,
	}
	if err := s.db.Model(&alert).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("acknowledge alert: %w", err)
	}
	alert.Acknowledged = true
	alert.AcknowledgedBy = actor
	alert.AcknowledgedAt = &now
	return &alert, nil
}

// AcknowledgeAll acknowledges every unacknowledged alert, each as an
// independent operation. This is best-effort, not transactional: a partial
// failure leaves some alerts acknowledged and others not. The count of
// successful acknowledgments and the per-alert errors are both returned so
// the caller sees the partial completion.
func (s *AlertService) AcknowledgeAll(actor string) (int, []error) {
	alerts, err := s.ListUnacknowledged()
	if err != nil {
		return 0, []error{err}
	}

	acked := 0
	var errs []error
	for _, alert := range alerts {
		if _, err := s.Acknowledge(alert.AlertID, actor); err != nil {
			log.Printf("AlertService: failed to acknowledge %s: %v", alert.AlertID, err)
			errs = append(errs, fmt.Errorf("acknowledge %s: %w", alert.AlertID, err))
			continue
		}
		acked++
	}
	return acked, errs
}

// GetByID returns the alert, or nil when absent
func (s *AlertService) GetByID(alertID string) (*database.Alert, error) {
	var alert database.Alert
	err := s.db.Where("alert_id = ?", alertID).First(&alert).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &alert, nil
}

// ListRecent returns the newest alerts
func (s *AlertService) ListRecent(limit int) ([]database.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	var alerts []database.Alert
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// ListUnacknowledged returns all unacknowledged alerts
func (s *AlertService) ListUnacknowledged() ([]database.Alert, error) {
	var alerts []database.Alert
	if err := s.db.Where("acknowledged = ?", false).Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list unacknowledged alerts: %w", err)
	}
	return alerts, nil
}

// ListByDriver returns all alerts for one driver
func (s *AlertService) ListByDriver(driverID string) ([]database.Alert, error) {
	var alerts []database.Alert
	if err := s.db.Where("driver_id = ?", driverID).Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("list alerts by driver: %w", err)
	}
	return alerts, nil
}

// Subscribe delivers every broadcast alert as it is fanned out
func (s *AlertService) Subscribe(onAlert func(database.Alert), onError func(error)) (feed.Unsubscribe, error) {
	return s.bus.Subscribe(feed.SubjectAlerts, func(data []byte) {
		var alert database.Alert
		if err := json.Unmarshal(data, &alert); err != nil {
			if onError != nil {
				onError(fmt.Errorf("decode alert: %w", err))
			}
			return
		}
		onAlert(alert)
	}, onError)
}
