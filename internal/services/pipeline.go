package services

import (
	"context"
	"fmt"
	"log"

	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/livestatus"
)

// Pipeline runs the event ingestion chain: create the event, derive the
// alert, fan the alert out, update the driver's live status, append the
// audit record.
//
// The five steps are independent operations against independent stores with
// no transaction spanning them; any subset may be visible to a concurrent
// reader before the rest complete, and any step may fail while the others
// succeed. The pipeline makes that explicit instead of hiding it: only the
// event create is fatal, every later step is best-effort, each step's
// outcome is reported in the result, and the alert step is idempotent (its
// ID derives from the event ID) so a retry does not double-create.
type Pipeline struct {
	events *EventService
	alerts *AlertService
	live   livestatus.Store
	audit  *AuditService
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(events *EventService, alerts *AlertService, live livestatus.Store, audit *AuditService) *Pipeline {
	return &Pipeline{events: events, alerts: alerts, live: live, audit: audit}
}

// Pipeline step names, in execution order.
const (
	StepEvent      = "event"
	StepAlert      = "alert"
	StepBroadcast  = "broadcast"
	StepLiveStatus = "live_status"
	StepAudit      = "audit"
)

// StepResult reports one pipeline step's outcome
type StepResult struct {
	Step    string `json:"step"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result exposes the partial-completion state of one pipeline run
type Result struct {
	Event *database.DrowsinessEvent `json:"event"`
	Alert *database.Alert           `json:"alert,omitempty"`
	Steps []StepResult              `json:"steps"`
}

// Failed reports whether any executed step failed
func (r *Result) Failed() bool {
	for _, step := range r.Steps {
		if step.Error != "" {
			return true
		}
	}
	return false
}

// RecordEvent runs the full chain for a new event. Only event creation
// returns an error; later failures are captured in the result.
func (p *Pipeline) RecordEvent(ctx context.Context, input CreateEventInput) (*Result, error) {
	event, err := p.events.Create(input)
	if err != nil {
		return nil, fmt.Errorf("record event: %w", err)
	}

	result := &Result{
		Event: event,
		Steps: []StepResult{{Step: StepEvent}},
	}

	// An event with the driver still alert carries no alert.
	if event.Status == database.EventStatusAlert {
		result.Steps = append(result.Steps,
			StepResult{Step: StepAlert, Skipped: true},
			StepResult{Step: StepBroadcast, Skipped: true})
	} else {
		alert, err := p.alerts.CreateFromEvent(event.DriverID, event.DriverName, event.EventID, event.Severity, event.Status)
		result.Steps = append(result.Steps, stepResult(StepAlert, err))
		if err != nil {
			log.Printf("Pipeline: alert creation failed for event %s: %v", event.EventID, err)
			result.Steps = append(result.Steps, StepResult{Step: StepBroadcast, Skipped: true})
		} else {
			result.Alert = alert
			err = p.alerts.Broadcast(alert)
			if err != nil {
				log.Printf("Pipeline: alert broadcast failed for event %s: %v", event.EventID, err)
			}
			result.Steps = append(result.Steps, stepResult(StepBroadcast, err))
		}
	}

	err = p.live.SetStatus(ctx, event.DriverID, event.DriverName, statusForEvent(event.Status))
	if err != nil {
		log.Printf("Pipeline: live status update failed for driver %s: %v", event.DriverID, err)
	}
	result.Steps = append(result.Steps, stepResult(StepLiveStatus, err))

	_, err = p.audit.Append(database.AuditActionCreate, "system", "events", event.EventID, nil, database.JSONB{
		"event_id":  event.EventID,
		"driver_id": event.DriverID,
		"status":    string(event.Status),
		"severity":  string(event.Severity),
	})
	if err != nil {
		log.Printf("Pipeline: audit append failed for event %s: %v", event.EventID, err)
	}
	result.Steps = append(result.Steps, stepResult(StepAudit, err))

	return result, nil
}

func statusForEvent(status database.EventStatus) livestatus.DriverStatus {
	switch status {
	case database.EventStatusDrowsy:
		return livestatus.StatusDrowsy
	case database.EventStatusSleeping:
		return livestatus.StatusSleeping
	default:
		return livestatus.StatusAlert
	}
}

func stepResult(step string, err error) StepResult {
	result := StepResult{Step: step}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}
