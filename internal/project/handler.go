package project

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/beaconhq/beacon/internal/access"
	"github.com/beaconhq/beacon/internal/platform/httpx"
	"github.com/beaconhq/beacon/internal/shared"
)

// Handler wires project lifecycle endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	gate      access.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, validator: validator.New()}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listProjects)
	r.Get("/{projectId}", h.getProject)
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.PermCreateProject))
		r.Post("/", h.createProject)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.PermUpdateProject))
		r.Put("/{projectId}", h.updateProject)
		r.Get("/{projectId}/users", h.getUsersWithAccess)
		r.Post("/{projectId}/roles/{roleId}/users/{userId}", h.addUser)
		r.Delete("/{projectId}/roles/{roleId}/users/{userId}", h.removeUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.PermDeleteProject))
		r.Delete("/{projectId}", h.deleteProject)
	})
}

type projectRequest struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.GetProjects(r.Context())
	if err != nil {
		h.logger.Error("list projects failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.GetProject(r.Context(), chi.URLParam(r, "projectId"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, found)
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateProject(r.Context(), Project{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
	}, shared.UserFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	req.ID = chi.URLParam(r, "projectId")
	err := h.service.UpdateProject(r.Context(), Project{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
	}, shared.UserFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteProject(r.Context(), chi.URLParam(r, "projectId"), shared.UserFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getUsersWithAccess(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetUsersWithAccess(r.Context(), chi.URLParam(r, "projectId"), shared.UserFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}

func (h *Handler) addUser(w http.ResponseWriter, r *http.Request) {
	projectID, roleID, userID, ok := h.memberParams(w, r)
	if !ok {
		return
	}
	if err := h.service.AddUser(r.Context(), projectID, roleID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) removeUser(w http.ResponseWriter, r *http.Request) {
	projectID, roleID, userID, ok := h.memberParams(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveUser(r.Context(), projectID, roleID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) memberParams(w http.ResponseWriter, r *http.Request) (string, int64, int64, bool) {
	projectID := chi.URLParam(r, "projectId")
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "roleId must be an integer")
		return "", 0, 0, false
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "userId must be an integer")
		return "", 0, 0, false
	}
	return projectID, roleID, userID, true
}
