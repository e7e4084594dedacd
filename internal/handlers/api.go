package handlers

import (
	"net/http"

	"github.com/driveguard/driveguard/internal/services"
)

// APIHandler handles API endpoints for the dispatcher UI
type APIHandler struct {
	eventService  *services.EventService
	alertService  *services.AlertService
	statsService  *services.StatsService
	driverService *services.DriverService
	auditService  *services.AuditService
	rosterService *services.RosterService
	pipeline      *services.Pipeline
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(
	eventService *services.EventService,
	alertService *services.AlertService,
	statsService *services.StatsService,
	driverService *services.DriverService,
	auditService *services.AuditService,
	rosterService *services.RosterService,
	pipeline *services.Pipeline,
) *APIHandler {
	return &APIHandler{
		eventService:  eventService,
		alertService:  alertService,
		statsService:  statsService,
		driverService: driverService,
		auditService:  auditService,
		rosterService: rosterService,
		pipeline:      pipeline,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Drivers
	mux.HandleFunc("/api/drivers", h.handleDrivers)
	mux.HandleFunc("/api/drivers/", h.handleDriverByID)

	// Drowsiness events
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.HandleFunc("/api/events/", h.handleEventByID)

	// Alerts
	mux.HandleFunc("/api/alerts", h.handleAlerts)
	mux.HandleFunc("POST /api/alerts/acknowledge-all", h.handleAcknowledgeAll)
	mux.HandleFunc("/api/alerts/", h.handleAlertByID)

	// Stats
	mux.HandleFunc("GET /api/stats/daily/{date}", h.handleDailyStats)
	mux.HandleFunc("GET /api/stats/drivers", h.handleDriverStatsList)
	mux.HandleFunc("GET /api/stats/drivers/{id}", h.handleDriverStats)
	mux.HandleFunc("GET /api/stats/dashboard", h.handleDashboard)

	// Live roster (merged profile + live status view)
	mux.HandleFunc("GET /api/roster", h.handleRoster)

	// Audit trail
	mux.HandleFunc("GET /api/audit", h.handleAudit)

	// Slack settings
	mux.HandleFunc("/api/settings/slack", h.handleSlackSettings)
}
