package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/driveguard/driveguard/internal/api"
	"github.com/driveguard/driveguard/internal/database"
)

// handleAlerts handles GET /api/alerts
func (h *APIHandler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	q := r.URL.Query()

	if q.Get("unacknowledged") == "true" {
		alerts, err := h.alertService.ListUnacknowledged()
		if err != nil {
			log.Printf("APIHandler: failed to list unacknowledged alerts: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
			return
		}
		api.RespondJSON(w, http.StatusOK, alerts)
		return
	}

	if driverID := q.Get("driver_id"); driverID != "" {
		alerts, err := h.alertService.ListByDriver(driverID)
		if err != nil {
			log.Printf("APIHandler: failed to list alerts for driver %s: %v", driverID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
			return
		}
		api.RespondJSON(w, http.StatusOK, alerts)
		return
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	alerts, err := h.alertService.ListRecent(limit)
	if err != nil {
		log.Printf("APIHandler: failed to list alerts: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	api.RespondJSON(w, http.StatusOK, alerts)
}

// handleAlertByID handles GET /api/alerts/:id and POST /api/alerts/:id/acknowledge
func (h *APIHandler) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/alerts/")
	parts := strings.Split(path, "/")
	alertID := parts[0]
	if alertID == "" {
		api.RespondError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	if len(parts) == 2 && parts[1] == "acknowledge" {
		h.handleAcknowledgeAlert(w, r, alertID)
		return
	}

	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	alert, err := h.alertService.GetByID(alertID)
	if err != nil {
		log.Printf("APIHandler: failed to get alert %s: %v", alertID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get alert")
		return
	}
	if alert == nil {
		api.RespondError(w, http.StatusNotFound, "Alert not found")
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleAcknowledgeAlert handles POST /api/alerts/:id/acknowledge
func (h *APIHandler) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request, alertID string) {
	if r.Method != http.MethodPost {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	actor := h.requestActor(r)
	alert, err := h.alertService.Acknowledge(alertID, actor)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			api.RespondError(w, http.StatusNotFound, "Alert not found")
			return
		}
		log.Printf("APIHandler: failed to acknowledge alert %s: %v", alertID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to acknowledge alert")
		return
	}

	h.audit(database.AuditActionAcknowledge, r, "alerts", alertID, nil,
		database.JSONB{"acknowledged_by": actor})
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleAcknowledgeAll handles POST /api/alerts/acknowledge-all. Individual
// failures do not abort the sweep; the response reports both the count and
// the errors.
func (h *APIHandler) handleAcknowledgeAll(w http.ResponseWriter, r *http.Request) {
	actor := h.requestActor(r)
	count, errs := h.alertService.AcknowledgeAll(actor)

	resp := api.AcknowledgeAllResponse{Acknowledged: count}
	for _, err := range errs {
		resp.Errors = append(resp.Errors, err.Error())
	}

	if count > 0 {
		h.audit(database.AuditActionAcknowledge, r, "alerts", "all", nil,
			database.JSONB{"acknowledged": count, "failed": len(errs)})
	}

	status := http.StatusOK
	if len(errs) > 0 {
		status = http.StatusMultiStatus
	}
	api.RespondJSON(w, status, resp)
}
