package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/driveguard/driveguard/internal/api"
)

// handleDailyStats handles GET /api/stats/daily/{date}
func (h *APIHandler) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid date: expected YYYY-MM-DD")
		return
	}

	stats, err := h.statsService.GetDailyStats(date)
	if err != nil {
		log.Printf("APIHandler: failed to get daily stats for %s: %v", date, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get daily stats")
		return
	}
	if stats == nil {
		api.RespondError(w, http.StatusNotFound, "No stats for that date")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// handleDriverStatsList handles GET /api/stats/drivers
func (h *APIHandler) handleDriverStatsList(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.ListDriverStats()
	if err != nil {
		log.Printf("APIHandler: failed to list driver stats: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list driver stats")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// handleDriverStats handles GET /api/stats/drivers/{id}
func (h *APIHandler) handleDriverStats(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("id")

	stats, err := h.statsService.GetDriverStats(driverID)
	if err != nil {
		log.Printf("APIHandler: failed to get driver stats for %s: %v", driverID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get driver stats")
		return
	}
	if stats == nil {
		api.RespondError(w, http.StatusNotFound, "No stats for that driver")
		return
	}
	api.RespondJSON(w, http.StatusOK, stats)
}

// handleDashboard handles GET /api/stats/dashboard
func (h *APIHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.statsService.GetDashboardMetrics()
	if err != nil {
		log.Printf("APIHandler: failed to get dashboard metrics: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to get dashboard metrics")
		return
	}
	api.RespondJSON(w, http.StatusOK, metrics)
}

// handleRoster handles GET /api/roster. Returns every active driver merged
// with the latest live status snapshot.
func (h *APIHandler) handleRoster(w http.ResponseWriter, r *http.Request) {
	if err := h.rosterService.RefreshSnapshot(r.Context()); err != nil {
		log.Printf("APIHandler: failed to refresh live snapshot: %v", err)
	}
	roster, err := h.rosterService.Merge(r.Context())
	if err != nil {
		log.Printf("APIHandler: failed to build roster: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to build roster")
		return
	}
	api.RespondJSON(w, http.StatusOK, roster)
}
