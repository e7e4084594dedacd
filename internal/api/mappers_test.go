package api

import (
	"testing"
	"time"

	"github.com/driveguard/driveguard/internal/database"
)

func TestEventToListItem(t *testing.T) {
	now := time.Now()
	end := now.Add(78 * time.Second)
	duration := 78
	resolvedAt := now.Add(10 * time.Minute)
	event := database.DrowsinessEvent{
		ID:         42,
		EventID:    "EVT-test-123",
		DriverID:   "DRV001",
		DriverName: "John Martinez",
		Status:     database.EventStatusSleeping,
		Severity:   database.SeverityHigh,
		StartTime:  now,
		EndTime:    &end,
		Duration:   &duration,
		Resolved:   true,
		ResolvedBy: "ops",
		ResolvedAt: &resolvedAt,
		Notes:      "driver pulled over",
		CreatedAt:  now,
	}

	item := EventToListItem(event)

	if item.ID != 42 {
		t.Errorf("ID = %d, want 42", item.ID)
	}
	if item.EventID != "EVT-test-123" {
		t.Errorf("EventID = %q, want %q", item.EventID, "EVT-test-123")
	}
	if item.Status != database.EventStatusSleeping {
		t.Errorf("Status = %q, want %q", item.Status, database.EventStatusSleeping)
	}
	if item.Severity != database.SeverityHigh {
		t.Errorf("Severity = %q, want %q", item.Severity, database.SeverityHigh)
	}
	if item.Duration == nil || *item.Duration != 78 {
		t.Errorf("Duration = %v, want 78", item.Duration)
	}
	if !item.Resolved || item.ResolvedBy != "ops" || item.ResolvedAt == nil {
		t.Errorf("resolution fields not carried over: %+v", item)
	}
}

func TestEventsToListItems(t *testing.T) {
	events := []database.DrowsinessEvent{
		{ID: 1, EventID: "EVT-1", Severity: database.SeverityLow},
		{ID: 2, EventID: "EVT-2", Severity: database.SeverityMedium},
		{ID: 3, EventID: "EVT-3", Severity: database.SeverityHigh},
	}

	items := EventsToListItems(events)

	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[0].EventID != "EVT-1" {
		t.Errorf("items[0].EventID = %q, want %q", items[0].EventID, "EVT-1")
	}
	if items[2].Severity != database.SeverityHigh {
		t.Errorf("items[2].Severity = %q, want %q", items[2].Severity, database.SeverityHigh)
	}
}

func TestEventsToListItems_Empty(t *testing.T) {
	items := EventsToListItems([]database.DrowsinessEvent{})
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}

func TestSlackSettingsToResponse(t *testing.T) {
	settings := &database.SlackSettings{
		BotToken:      "xoxb-secret",
		AlertsChannel: "#fleet-alerts",
		Enabled:       true,
	}

	resp := SlackSettingsToResponse(settings)

	if resp.AlertsChannel != "#fleet-alerts" {
		t.Errorf("AlertsChannel = %q, want %q", resp.AlertsChannel, "#fleet-alerts")
	}
	if !resp.Enabled || !resp.Configured {
		t.Errorf("expected enabled and configured, got %+v", resp)
	}
}
