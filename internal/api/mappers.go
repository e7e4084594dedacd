package api

import "github.com/driveguard/driveguard/internal/database"

// EventToListItem converts a database DrowsinessEvent to a compact list representation.
func EventToListItem(e database.DrowsinessEvent) EventListItem {
	return EventListItem{
		ID:         e.ID,
		EventID:    e.EventID,
		DriverID:   e.DriverID,
		DriverName: e.DriverName,
		Status:     e.Status,
		Severity:   e.Severity,
		StartTime:  e.StartTime,
		EndTime:    e.EndTime,
		Duration:   e.Duration,
		Resolved:   e.Resolved,
		ResolvedBy: e.ResolvedBy,
		ResolvedAt: e.ResolvedAt,
		Notes:      e.Notes,
		CreatedAt:  e.CreatedAt,
	}
}

// EventsToListItems converts a slice of database DrowsinessEvents to list items.
func EventsToListItems(events []database.DrowsinessEvent) []EventListItem {
	items := make([]EventListItem, len(events))
	for i, e := range events {
		items[i] = EventToListItem(e)
	}
	return items
}

// SlackSettingsToResponse strips the bot token from Slack settings before
// returning them to clients.
func SlackSettingsToResponse(s *database.SlackSettings) SlackSettingsResponse {
	return SlackSettingsResponse{
		AlertsChannel: s.AlertsChannel,
		Enabled:       s.Enabled,
		Configured:    s.IsConfigured(),
	}
}
