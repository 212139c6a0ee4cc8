package feature

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/beaconhq/beacon/internal/access"
	"github.com/beaconhq/beacon/internal/platform/httpx"
)

// Handler wires feature toggle endpoints.
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

// MountRoutes registers feature routes. Creation resolves its project
// from the request body; archiving resolves it from the feature itself.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listFeatures)
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.PermCreateFeature))
		r.Post("/", h.createFeature)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.PermDeleteFeature))
		r.Delete("/{featureName}", h.archiveFeature)
	})
}

type createFeatureRequest struct {
	Name        string `json:"name" validate:"required"`
	Project     string `json:"project" validate:"required"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

func (h *Handler) listFeatures(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	if project == "" {
		project = "default"
	}
	toggles, err := h.service.ListByProject(r.Context(), project)
	if err != nil {
		h.logger.Error("list features failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"features": toggles})
}

func (h *Handler) createFeature(w http.ResponseWriter, r *http.Request) {
	var req createFeatureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	toggle := Toggle{Name: req.Name, Project: req.Project, Description: req.Description, Enabled: req.Enabled}
	if err := h.service.Create(r.Context(), toggle); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toggle)
}

func (h *Handler) archiveFeature(w http.ResponseWriter, r *http.Request) {
	featureName := chi.URLParam(r, "featureName")
	if err := h.service.Archive(r.Context(), featureName); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
