package handlers

import (
	"log"
	"net/http"

	"github.com/driveguard/driveguard/internal/api"
	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/services"
	"github.com/driveguard/driveguard/internal/utils"
)

// IngestHandler accepts drowsiness events from in-cab detection devices.
// It is mounted behind the device API key middleware, separate from the
// JWT-protected dispatcher API.
type IngestHandler struct {
	pipeline *services.Pipeline
	events   *services.EventService
}

// NewIngestHandler creates a new ingestion handler
func NewIngestHandler(pipeline *services.Pipeline, events *services.EventService) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, events: events}
}

// SetupRoutes sets up ingestion routes
func (h *IngestHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /ingest/events", h.handleIngestEvent)
	mux.HandleFunc("POST /ingest/events/{id}/finish", h.handleIngestFinish)
}

// handleIngestEvent handles POST /ingest/events
func (h *IngestHandler) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var req api.CreateEventRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := api.Validate(req); fieldErrs != nil {
		api.RespondValidationError(w, fieldErrs)
		return
	}
	if err := utils.ValidateDriverID(req.DriverID); err != nil {
		log.Printf("IngestHandler: rejected driver id %q from %s", utils.EscapeForLogging(req.DriverID, 80), r.RemoteAddr)
		api.RespondError(w, http.StatusBadRequest, err.Error())
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
		log.Printf("IngestHandler: failed to record event for %s: %v", req.DriverID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to record event")
		return
	}

	api.RespondJSON(w, http.StatusCreated, result)
}

// handleIngestFinish handles POST /ingest/events/{id}/finish. Devices call
// this when the driver recovers and the episode ends.
func (h *IngestHandler) handleIngestFinish(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")

	var req api.FinishEventRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrs := api.Validate(req); fieldErrs != nil {
		api.RespondValidationError(w, fieldErrs)
		return
	}

	event, err := h.events.Finish(eventID, req.EndTime)
	if err != nil {
		log.Printf("IngestHandler: failed to finish event %s: %v", eventID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to finish event")
		return
	}
	api.RespondJSON(w, http.StatusOK, api.EventToListItem(*event))
}
