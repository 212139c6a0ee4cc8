package access

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/beaconhq/beacon/internal/platform/httpx"
)

// Handler exposes the RBAC admin API.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate Middleware) *Handler {
	return &Handler{logger: logger, service: service, gate: gate}
}

// MountRoutes registers RBAC admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(PermReadRole))
		r.Get("/permissions", h.listPermissions)
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{roleId}", h.getRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(PermUpdateRole))
		r.Post("/roles/{roleId}/users/{userId}", h.addUserToRole)
		r.Delete("/roles/{roleId}/users/{userId}", h.removeUserFromRole)
		// Grant mutation over HTTP is not wired up yet; the service API
		// exists but the transport contract is explicit about this.
		r.Post("/roles/{roleId}/permissions/{permission}", h.notImplemented)
		r.Delete("/roles/{roleId}/permissions/{permission}", h.notImplemented)
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": h.service.Permissions()})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.GetRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), roleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role})
}

func (h *Handler) addUserToRole(w http.ResponseWriter, r *http.Request) {
	roleID, userID, ok := h.roleAndUserID(w, r)
	if !ok {
		return
	}
	if err := h.service.AddUserToRole(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roleId": roleID, "userId": userID})
}

func (h *Handler) removeUserFromRole(w http.ResponseWriter, r *http.Request) {
	roleID, userID, ok := h.roleAndUserID(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveUserFromRole(r.Context(), userID, roleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) notImplemented(w http.ResponseWriter, r *http.Request) {
	httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", "role permission mutation is not available over the API yet")
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "roleId must be an integer")
		return 0, false
	}
	return roleID, true
}

func (h *Handler) roleAndUserID(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	roleID, ok := h.roleID(w, r)
	if !ok {
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "userId must be an integer")
		return 0, 0, false
	}
	return roleID, userID, true
}
