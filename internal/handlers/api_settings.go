package handlers

import (
	"log"
	"net/http"

	"github.com/driveguard/driveguard/internal/api"
	"github.com/driveguard/driveguard/internal/database"
)

// handleSlackSettings handles GET /api/settings/slack and PUT /api/settings/slack
func (h *APIHandler) handleSlackSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := database.GetSlackSettings()
		if err != nil {
			api.RespondError(w, http.StatusNotFound, "Settings not found")
			return
		}
		api.RespondJSON(w, http.StatusOK, api.SlackSettingsToResponse(settings))

	case http.MethodPut:
		var req api.UpdateSlackSettingsRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		settings, err := database.GetSlackSettings()
		if err != nil {
			api.RespondError(w, http.StatusNotFound, "Settings not found")
			return
		}

		if req.BotToken != nil {
			settings.BotToken = *req.BotToken
		}
		if req.AlertsChannel != nil {
			settings.AlertsChannel = *req.AlertsChannel
		}
		if req.Enabled != nil {
			settings.Enabled = *req.Enabled
		}

		if err := database.UpdateSlackSettings(settings); err != nil {
			log.Printf("APIHandler: failed to update Slack settings: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}

		h.audit(database.AuditActionUpdate, r, "settings", "slack", nil,
			database.JSONB{"enabled": settings.Enabled, "alerts_channel": settings.AlertsChannel})
		api.RespondJSON(w, http.StatusOK, api.SlackSettingsToResponse(settings))

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
