package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/driveguard/driveguard/internal/api"
	"github.com/driveguard/driveguard/internal/database"
)

// handleAudit handles GET /api/audit. Supported filters: action, actor,
// collection+target_id. Without filters the most recent records are returned.
func (h *APIHandler) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if action := q.Get("action"); action != "" {
		records, err := h.auditService.ListByAction(database.AuditAction(action))
		if err != nil {
			log.Printf("APIHandler: failed to list audit records by action: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to list audit records")
			return
		}
		api.RespondJSON(w, http.StatusOK, records)
		return
	}

	if actor := q.Get("actor"); actor != "" {
		records, err := h.auditService.ListByActor(actor)
		if err != nil {
			log.Printf("APIHandler: failed to list audit records by actor: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to list audit records")
			return
		}
		api.RespondJSON(w, http.StatusOK, records)
		return
	}

	if collection := q.Get("collection"); collection != "" {
		targetID := q.Get("target_id")
		if targetID == "" {
			api.RespondError(w, http.StatusBadRequest, "target_id is required with collection")
			return
		}
		records, err := h.auditService.ListByTarget(collection, targetID)
		if err != nil {
			log.Printf("APIHandler: failed to list audit records by target: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to list audit records")
			return
		}
		api.RespondJSON(w, http.StatusOK, records)
		return
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.auditService.ListRecent(limit)
	if err != nil {
		log.Printf("APIHandler: failed to list audit records: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list audit records")
		return
	}
	api.RespondJSON(w, http.StatusOK, records)
}
