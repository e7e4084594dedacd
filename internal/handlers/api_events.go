package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/driveguard/driveguard/internal/api"
	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/services"
	"github.com/driveguard/driveguard/internal/utils"
)

const defaultEventWindow = 24 * time.Hour

// handleEvents handles GET /api/events and POST /api/events
func (h *APIHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Cursor mode takes precedence over the plain windowed list.
		if r.URL.Query().Has("cursor") || r.URL.Query().Has("page_size") {
			h.handleEventsPage(w, r)
			return
		}

		q := r.URL.Query()

		if severity := q.Get("severity"); severity != "" {
			if !database.Severity(severity).IsValid() {
				api.RespondError(w, http.StatusBadRequest, "Invalid severity: must be low, medium or high")
				return
			}
			events, err := h.eventService.ListBySeverity(database.Severity(severity))
			if err != nil {
				log.Printf("APIHandler: failed to list events by severity: %v", err)
				api.RespondError(w, http.StatusInternalServerError, "Failed to list events")
				return
			}
			api.RespondJSON(w, http.StatusOK, api.EventsToListItems(events))
			return
		}

		if q.Get("unresolved") == "true" {
			events, err := h.eventService.ListUnresolved()
			if err != nil {
				log.Printf("APIHandler: failed to list unresolved events: %v", err)
				api.RespondError(w, http.StatusInternalServerError, "Failed to list events")
				return
			}
			api.RespondJSON(w, http.StatusOK, api.EventsToListItems(events))
			return
		}

		if driverID := q.Get("driver_id"); driverID != "" {
			events, err := h.eventService.ListByDriver(driverID)
			if err != nil {
				log.Printf("APIHandler: failed to list events for driver %s: %v", driverID, err)
				api.RespondError(w, http.StatusInternalServerError, "Failed to list events")
				return
			}
			api.RespondJSON(w, http.StatusOK, api.EventsToListItems(events))
			return
		}

		window := defaultEventWindow
		if v := q.Get("hours"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				window = time.Duration(n) * time.Hour
			}
		}
		limit := 100
		if v := q.Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		events, err := h.eventService.ListRecent(window, limit)
		if err != nil {
			log.Printf("APIHandler: failed to list recent events: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to list events")
			return
		}
		api.RespondJSON(w, http.StatusOK, api.EventsToListItems(events))

	case http.MethodPost:
		h.handleRecordEvent(w, r)

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleEventsPage handles cursor-paginated GET /api/events
func (h *APIHandler) handleEventsPage(w http.ResponseWriter, r *http.Request) {
	pageSize := 20
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pageSize = n
		}
	}

	var cursor *services.EventCursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		c, err := decodeEventCursor(raw)
		if err != nil {
			api.RespondError(w, http.StatusBadRequest, "Invalid cursor")
			return
		}
		cursor = c
	}

	events, next, err := h.eventService.Paginate(pageSize, cursor)
	if err != nil {
		log.Printf("APIHandler: failed to paginate events: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	page := api.CursorPage{Data: api.EventsToListItems(events)}
	if next != nil {
		page.NextCursor = encodeEventCursor(next)
	}
	api.RespondJSON(w, http.StatusOK, page)
}

// handleRecordEvent handles POST /api/events. The event runs through the
// full recording chain: persist, derive alert, broadcast, update live
// status, audit.
func (h *APIHandler) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	var req api.CreateEventRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := api.Validate(req); fieldErrs != nil {
		api.RespondValidationError(w, fieldErrs)
		return
	}

	result, err := h.pipeline.RecordEvent(r.Context(), services.CreateEventInput{
		DriverID:   req.DriverID,
		DriverName: req.DriverName,
		Status:     database.EventStatus(req.Status),
		Severity:   database.Severity(req.Severity),
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		log.Printf("APIHandler: failed to record event for %s: %v", req.DriverID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to record event")
		return
	}

	api.RespondJSON(w, http.StatusCreated, result)
}

// handleEventByID handles GET /api/events/:id and the resolve/finish sub-routes
func (h *APIHandler) handleEventByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/events/")
	parts := strings.Split(path, "/")
	eventID := parts[0]
	if eventID == "" {
		api.RespondError(w, http.StatusBadRequest, "Invalid event ID")
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "resolve":
			h.handleResolveEvent(w, r, eventID)
		case "finish":
			h.handleFinishEvent(w, r, eventID)
		default:
			api.RespondError(w, http.StatusNotFound, "Not found")
		}
		return
	}

	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	event, err := h.eventService.GetByID(eventID)
	if err != nil {
		log.Printf("APIHandler: failed to get event %s: %v", eventID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get event")
		return
	}
	if event == nil {
		api.RespondError(w, http.StatusNotFound, "Event not found")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.EventToListItem(*event))
}

// handleResolveEvent handles POST /api/events/:id/resolve
func (h *APIHandler) handleResolveEvent(w http.ResponseWriter, r *http.Request, eventID string) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req api.ResolveEventRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor := h.requestActor(r)
	notes := utils.SanitizeNotes(req.Notes)
	event, err := h.eventService.Resolve(eventID, actor, notes)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			api.RespondError(w, http.StatusNotFound, "Event not found")
			return
		}
		log.Printf("APIHandler: failed to resolve event %s: %v", eventID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to resolve event")
		return
	}

	h.audit(database.AuditActionResolve, r, "events", eventID, nil,
		database.JSONB{"resolved_by": actor, "notes": notes})
	api.RespondJSON(w, http.StatusOK, api.EventToListItem(*event))
}

// handleFinishEvent handles POST /api/events/:id/finish
func (h *APIHandler) handleFinishEvent(w http.ResponseWriter, r *http.Request, eventID string) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req api.FinishEventRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := api.Validate(req); fieldErrs != nil {
		api.RespondValidationError(w, fieldErrs)
		return
	}

	event, err := h.eventService.Finish(eventID, req.EndTime)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			api.RespondError(w, http.StatusNotFound, "Event not found")
			return
		}
		log.Printf("APIHandler: failed to finish event %s: %v", eventID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to finish event")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.EventToListItem(*event))
}

func encodeEventCursor(c *services.EventCursor) string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeEventCursor(s string) (*services.EventCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	var c services.EventCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
