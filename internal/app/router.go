package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/beaconhq/beacon/internal/access"
	"github.com/beaconhq/beacon/internal/auth"
	"github.com/beaconhq/beacon/internal/feature"
	"github.com/beaconhq/beacon/internal/observability"
	"github.com/beaconhq/beacon/internal/project"
	"github.com/beaconhq/beacon/internal/shared"
	"github.com/beaconhq/beacon/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Identity       auth.Identity
	Gate           access.Middleware
	AuthHandler    *auth.Handler
	AccessHandler  *access.Handler
	ProjectHandler *project.Handler
	FeatureHandler *feature.Handler
	UsersHandler   *users.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Beacon defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.Identity.Handler)
	r.Use(params.Gate.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Route("/api/admin", func(r chi.Router) {
		params.AccessHandler.MountRoutes(r)
		if params.ProjectHandler != nil {
			r.Route("/projects", params.ProjectHandler.MountRoutes)
		}
		if params.FeatureHandler != nil {
			r.Route("/features", params.FeatureHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
	})

	return r
}
