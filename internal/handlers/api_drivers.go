package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/driveguard/driveguard/internal/api"
	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/middleware"
)

// handleDrivers handles GET /api/drivers and POST /api/drivers
func (h *APIHandler) handleDrivers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var (
			profiles []database.DriverProfile
			err      error
		)
		if r.URL.Query().Get("include_inactive") == "true" {
			profiles, err = h.driverService.ListAll()
		} else {
			profiles, err = h.driverService.ListActive()
		}
		if err != nil {
			log.Printf("APIHandler: failed to list drivers: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to list drivers")
			return
		}
		api.RespondJSON(w, http.StatusOK, profiles)

	case http.MethodPost:
		var req api.CreateDriverRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if fieldErrs := api.Validate(req); fieldErrs != nil {
			api.RespondValidationError(w, fieldErrs)
			return
		}

		profile := &database.DriverProfile{
			DriverID:   req.DriverID,
			Name:       req.Name,
			Age:        req.Age,
			Experience: req.Experience,
			Phone:      req.Phone,
			Email:      req.Email,
		}
		if err := h.driverService.Create(profile); err != nil {
			log.Printf("APIHandler: failed to create driver %s: %v", req.DriverID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to create driver")
			return
		}
		h.audit(database.AuditActionCreate, r, "drivers", profile.DriverID, nil, database.JSONB{"name": profile.Name})
		api.RespondJSON(w, http.StatusCreated, profile)

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleDriverByID handles GET/PUT/DELETE /api/drivers/:id
func (h *APIHandler) handleDriverByID(w http.ResponseWriter, r *http.Request) {
	driverID := strings.TrimPrefix(r.URL.Path, "/api/drivers/")
	if driverID == "" || strings.Contains(driverID, "/") {
		api.RespondError(w, http.StatusBadRequest, "Invalid driver ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := h.driverService.GetByDriverID(driverID)
		if err != nil {
			log.Printf("APIHandler: failed to get driver %s: %v", driverID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to get driver")
			return
		}
		if profile == nil {
			api.RespondError(w, http.StatusNotFound, "Driver not found")
			return
		}
		api.RespondJSON(w, http.StatusOK, profile)

	case http.MethodPut:
		var req api.UpdateDriverRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if fieldErrs := api.Validate(req); fieldErrs != nil {
			api.RespondValidationError(w, fieldErrs)
			return
		}

		updates := make(map[string]interface{})
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Age != nil {
			updates["age"] = *req.Age
		}
		if req.Experience != nil {
			updates["experience"] = *req.Experience
		}
		if req.Phone != nil {
			updates["phone"] = *req.Phone
		}
		if req.Email != nil {
			updates["email"] = *req.Email
		}
		if len(updates) == 0 {
			api.RespondError(w, http.StatusBadRequest, "No updatable fields provided")
			return
		}

		before, err := h.driverService.GetByDriverID(driverID)
		if err != nil {
			log.Printf("APIHandler: failed to get driver %s: %v", driverID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to get driver")
			return
		}
		if before == nil {
			api.RespondError(w, http.StatusNotFound, "Driver not found")
			return
		}

		profile, err := h.driverService.Update(driverID, updates)
		if err != nil {
			log.Printf("APIHandler: failed to update driver %s: %v", driverID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to update driver")
			return
		}
		h.audit(database.AuditActionUpdate, r, "drivers", driverID,
			database.JSONB{"name": before.Name, "phone": before.Phone, "email": before.Email},
			database.JSONB{"name": profile.Name, "phone": profile.Phone, "email": profile.Email})
		api.RespondJSON(w, http.StatusOK, profile)

	case http.MethodDelete:
		before, err := h.driverService.GetByDriverID(driverID)
		if err != nil {
			log.Printf("APIHandler: failed to get driver %s: %v", driverID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to get driver")
			return
		}
		if before == nil {
			api.RespondError(w, http.StatusNotFound, "Driver not found")
			return
		}

		if _, err := h.driverService.Deactivate(driverID); err != nil {
			log.Printf("APIHandler: failed to deactivate driver %s: %v", driverID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to deactivate driver")
			return
		}
		h.audit(database.AuditActionDeactivate, r, "drivers", driverID,
			database.JSONB{"active": before.Active}, database.JSONB{"active": false})
		api.RespondNoContent(w)

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// requestActor returns the authenticated username, or "anonymous" when auth
// is disabled.
func (h *APIHandler) requestActor(r *http.Request) string {
	if actor := middleware.GetUserFromContext(r.Context()); actor != "" {
		return actor
	}
	return "anonymous"
}

// audit appends an audit record for a UI-initiated mutation. Failures are
// logged and swallowed so they never fail the request itself.
func (h *APIHandler) audit(action database.AuditAction, r *http.Request, collection, targetID string, before, after database.JSONB) {
	if _, err := h.auditService.Append(action, h.requestActor(r), collection, targetID, before, after); err != nil {
		log.Printf("APIHandler: failed to append audit record for %s/%s: %v", collection, targetID, err)
	}
}
