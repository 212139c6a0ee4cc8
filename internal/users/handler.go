package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beaconhq/beacon/internal/access"
	"github.com/beaconhq/beacon/internal/platform/httpx"
)

// Handler manages user directory endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    access.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate access.Middleware) *Handler {
	return &Handler{logger: logger, service: service, gate: gate}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(access.PermReadRole))
		r.Get("/", h.listUsers)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": found})
}
