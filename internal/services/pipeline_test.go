package services

import (
	"context"
	"testing"
	"time"

	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/feed"
	"github.com/driveguard/driveguard/internal/livestatus"
)

func setupPipeline(t *testing.T) (*Pipeline, *AlertService, *AuditService, *livestatus.MemoryStore) {
	db := setupTestDB(t)
	bus := feed.NewMemoryBus()
	live := livestatus.NewMemoryStore(nil)
	events := NewEventService(db, bus)
	alerts := NewAlertService(db, bus)
	audit := NewAuditService(db)
	return NewPipeline(events, alerts, live, audit), alerts, audit, live
}

func TestPipeline_RecordEvent_FullChain(t *testing.T) {
	pipeline, alerts, audit, live := setupPipeline(t)
	ctx := context.Background()

	result, err := pipeline.RecordEvent(ctx, CreateEventInput{
		DriverID:   "DRV001",
		DriverName: "John Miller",
		StartTime:  time.Now(),
		Status:     database.EventStatusSleeping,
		Severity:   database.SeverityHigh,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed() {
		t.Fatalf("expected clean run, got steps %+v", result.Steps)
	}
	if len(result.Steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(result.Steps))
	}

	// Alert derived with the fixed mapping.
	if result.Alert == nil {
		t.Fatal("expected derived alert")
	}
	if result.Alert.Priority != database.AlertPriorityCritical {
		t.Errorf("expected critical priority, got %s", result.Alert.Priority)
	}
	stored, _ := alerts.GetByID(result.Alert.AlertID)
	if stored == nil {
		t.Error("expected alert persisted")
	}

	// Live status updated.
	entry, _ := live.Get(ctx, "DRV001")
	if entry == nil || entry.Status != livestatus.StatusSleeping {
		t.Errorf("expected live status sleeping, got %+v", entry)
	}

	// Audit appended.
	records, _ := audit.ListByTarget("events", result.Event.EventID)
	if len(records) != 1 {
		t.Errorf("expected 1 audit record, got %d", len(records))
	}
}

func TestPipeline_RecordEvent_AlertStatusSkipsAlert(t *testing.T) {
	pipeline, alerts, _, live := setupPipeline(t)
	ctx := context.Background()

	result, err := pipeline.RecordEvent(ctx, CreateEventInput{
		DriverID:   "DRV001",
		DriverName: "John Miller",
		Status:     database.EventStatusAlert,
		Severity:   database.SeverityLow,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Alert != nil {
		t.Error("expected no alert for an attentive driver")
	}

	skipped := 0
	for _, step := range result.Steps {
		if step.Skipped {
			skipped++
		}
	}
	if skipped != 2 {
		t.Errorf("expected alert and broadcast steps skipped, got %d skips", skipped)
	}

	unacked, _ := alerts.ListUnacknowledged()
	if len(unacked) != 0 {
		t.Errorf("expected no alerts, got %d", len(unacked))
	}

	// Live status still updated.
	entry, _ := live.Get(ctx, "DRV001")
	if entry == nil || entry.Status != livestatus.StatusAlert {
		t.Errorf("expected live status alert, got %+v", entry)
	}
}

func TestPipeline_RecordEvent_RetryDoesNotDoubleCreateAlert(t *testing.T) {
	pipeline, alerts, _, _ := setupPipeline(t)
	ctx := context.Background()

	result, err := pipeline.RecordEvent(ctx, CreateEventInput{
		DriverID:   "DRV001",
		DriverName: "John Miller",
		Status:     database.EventStatusDrowsy,
		Severity:   database.SeverityMedium,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A retried alert step for the same event finds the existing row.
	retried, err := alerts.CreateFromEvent(result.Event.DriverID, result.Event.DriverName,
		result.Event.EventID, result.Event.Severity, result.Event.Status)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retried.AlertID != result.Alert.AlertID {
		t.Errorf("expected same alert on retry, got %s and %s", result.Alert.AlertID, retried.AlertID)
	}

	all, _ := alerts.ListRecent(10)
	if len(all) != 1 {
		t.Errorf("expected 1 alert after retry, got %d", len(all))
	}
}
