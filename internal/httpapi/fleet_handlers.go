package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fleetgov.org/internal/auth"
)

// The fleet endpoints below are deliberately thin: the gate decision is the
// subsystem's contract, and the handlers acknowledge the operation once it is
// authorized. Dispatch, booking and reporting pipelines consume these
// acknowledgments downstream.

type assignVehicleRequest struct {
	OrganizationID int64 `json:"organization_id"`
	DriverID       int64 `json:"driver_id"`
}

type scheduleMaintenanceRequest struct {
	OrganizationID int64  `json:"organization_id"`
	ScheduledFor   string `json:"scheduled_for"`
	Notes          string `json:"notes"`
}

func (a *API) handleVehicleScoped(w http.ResponseWriter, r *http.Request) {
	vehicleID, action, ok := splitScopedPath(r.URL.Path, "/v1/vehicles/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch action {
	case "assign":
		a.handleVehicleAssign(w, r, vehicleID)
	case "maintenance":
		a.handleVehicleMaintenance(w, r, vehicleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleVehicleAssign(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req assignVehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.OrganizationID <= 0 || req.DriverID <= 0 {
		writeError(w, r, http.StatusBadRequest, "organization_id and driver_id are required")
		return
	}
	official, ok := a.ensurePermission(w, r, auth.PermAssignVehicle, req.OrganizationID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":          "accepted",
		"vehicle_id":      vehicleID,
		"driver_id":       req.DriverID,
		"organization_id": req.OrganizationID,
		"assigned_by":     official.ID,
	})
}

func (a *API) handleVehicleMaintenance(w http.ResponseWriter, r *http.Request, vehicleID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req scheduleMaintenanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.OrganizationID <= 0 {
		writeError(w, r, http.StatusBadRequest, "organization_id is required")
		return
	}
	official, ok := a.ensurePermission(w, r, auth.PermScheduleMaintenance, req.OrganizationID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":          "accepted",
		"vehicle_id":      vehicleID,
		"organization_id": req.OrganizationID,
		"scheduled_for":   req.ScheduledFor,
		"scheduled_by":    official.ID,
	})
}

type approveBookingRequest struct {
	OrganizationID int64 `json:"organization_id"`
}

func (a *API) handleBookingScoped(w http.ResponseWriter, r *http.Request) {
	bookingID, action, ok := splitScopedPath(r.URL.Path, "/v1/bookings/")
	if !ok || action != "approve" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req approveBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.OrganizationID <= 0 {
		writeError(w, r, http.StatusBadRequest, "organization_id is required")
		return
	}
	official, ok := a.ensurePermission(w, r, auth.PermApproveBooking, req.OrganizationID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":          "approved",
		"booking_id":      bookingID,
		"organization_id": req.OrganizationID,
		"approved_by":     official.ID,
	})
}

func (a *API) handleFleetReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	orgID, err := queryOrgID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := a.ensurePermission(w, r, auth.PermViewFleetReports, orgID); !ok {
		return
	}
	officials, err := a.directory.ListByOrg(r.Context(), orgID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"organization_id": orgID,
		"official_count":  len(officials),
	})
}

func (a *API) handleGovernanceIntervention(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		OrganizationID int64  `json:"organization_id"`
		Directive      string `json:"directive"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.OrganizationID <= 0 || strings.TrimSpace(req.Directive) == "" {
		writeError(w, r, http.StatusBadRequest, "organization_id and directive are required")
		return
	}
	official, ok := a.ensurePermission(w, r, auth.PermGovernanceIntervention, req.OrganizationID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":          "recorded",
		"organization_id": req.OrganizationID,
		"directive":       req.Directive,
		"issued_by":       official.ID,
	})
}

func (a *API) handleBudgetOversight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	orgID, err := queryOrgID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := a.ensurePermission(w, r, auth.PermBudgetOversight, orgID); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"organization_id": orgID,
		"status":          "available",
	})
}

// Officials administration ---------------------------------------------------

func (a *API) handleOfficials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	orgID, err := queryOrgID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := a.ensurePermission(w, r, auth.PermAuditUserAccounts, orgID); !ok {
		return
	}
	officials, err := a.directory.ListByOrg(r.Context(), orgID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"officials": officials})
}

func (a *API) handleOfficialScoped(w http.ResponseWriter, r *http.Request) {
	officialID, action, ok := splitScopedPath(r.URL.Path, "/v1/officials/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	target, err := a.directory.Find(r.Context(), officialID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	actor, ok := a.ensurePermission(w, r, auth.PermManageOfficials, target.OrganizationID)
	if !ok {
		return
	}
	// Administration respects the hierarchy: an official cannot manage a
	// peer or a superior.
	if !auth.Outranks(actor.Role, target.Role) {
		handleAuthError(w, r, auth.ErrInsufficientPermission)
		return
	}

	switch action {
	case "enable":
		err = a.svc.SetOfficialActive(r.Context(), target.ID, true)
	case "disable":
		err = a.svc.SetOfficialActive(r.Context(), target.ID, false)
	case "unlock":
		err = a.svc.UnlockAccount(r.Context(), target.ID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      action,
		"official_id": target.ID,
	})
}

// helpers --------------------------------------------------------------------

func splitScopedPath(path, prefix string) (int64, string, bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, parts[1], true
}

func queryOrgID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("organization_id")
	if raw == "" {
		return 0, errors.New("organization_id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("organization_id must be a positive integer")
	}
	return id, nil
}
