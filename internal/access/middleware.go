package access

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/beaconhq/beacon/internal/shared"
)

// CheckObserver receives the outcome of every RBAC decision.
type CheckObserver interface {
	ObserveAccessCheck(permission string, allowed bool)
}

// Middleware is the per-request RBAC gate. When Enabled is false every
// request passes through unconditionally; otherwise each request gets a
// permission checker bound to its resolved user.
type Middleware struct {
	Enabled  bool
	Service  *Service
	Features ProjectIDResolver
	Logger   *slog.Logger
	Metrics  CheckObserver
}

type checkerContextKey struct{}

// Checker decides a single permission for the request it was created on.
type Checker struct {
	mw  Middleware
	req *http.Request
}

// ContextWithChecker stores the request's permission checker in context.
func ContextWithChecker(ctx context.Context, checker *Checker) context.Context {
	return context.WithValue(ctx, checkerContextKey{}, checker)
}

// CheckerFromContext extracts the permission checker, nil when the gate
// is disabled.
func CheckerFromContext(ctx context.Context) *Checker {
	checker, _ := ctx.Value(checkerContextKey{}).(*Checker)
	return checker
}

// Handler attaches the permission checker to every request.
func (m Middleware) Handler(next http.Handler) http.Handler {
	if !m.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checker := &Checker{mw: m, req: r}
		next.ServeHTTP(w, r.WithContext(ContextWithChecker(r.Context(), checker)))
	})
}

// Require guards a route with a single permission. Passes everything
// through when the gate is disabled.
func (m Middleware) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checker := CheckerFromContext(r.Context())
			if checker == nil {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := checker.Check(r.Context(), permission)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac check failed",
						slog.String("permission", permission),
						slog.Any("error", err),
					)
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Check resolves the permission against the request's user, deciding the
// project context from the route and body as needed.
func (c *Checker) Check(ctx context.Context, permission string) (bool, error) {
	m := c.mw
	user := shared.UserFromContext(c.req.Context())

	// API token principals carry their permission claims inline; an
	// ADMIN claim bypasses the store entirely.
	if user != nil && user.IsAPI {
		allowed := user.HasClaim(PermAdmin)
		m.observe(permission, allowed)
		return allowed, nil
	}

	// No stable identity means the authentication layer is misconfigured.
	// Fail closed rather than silently allowing.
	if user == nil || user.ID == 0 {
		if m.Logger != nil {
			m.Logger.Error("rbac requires a user with an id on the request",
				slog.String("permission", permission),
				slog.String("path", c.req.URL.Path),
			)
		}
		m.observe(permission, false)
		return false, nil
	}

	projectID, err := c.resolveProjectID(ctx, permission)
	if err != nil {
		return false, err
	}

	allowed, err := m.Service.HasPermission(ctx, user, permission, projectID)
	if err != nil {
		return false, err
	}
	m.observe(permission, allowed)
	return allowed, nil
}

// resolveProjectID finds the project context for the check. Feature
// update/delete routes carry a feature name, not a project id, so the
// owning project is looked up through the feature toggle collaborator;
// feature creation carries the project in the request body.
func (c *Checker) resolveProjectID(ctx context.Context, permission string) (string, error) {
	switch permission {
	case PermUpdateFeature, PermDeleteFeature:
		featureName := chi.URLParam(c.req, "featureName")
		if featureName == "" || c.mw.Features == nil {
			return "", nil
		}
		return c.mw.Features.GetProjectID(ctx, featureName)
	case PermCreateFeature:
		return projectFromBody(c.req), nil
	default:
		return chi.URLParam(c.req, "projectId"), nil
	}
}

func (m Middleware) observe(permission string, allowed bool) {
	if m.Metrics != nil {
		m.Metrics.ObserveAccessCheck(permission, allowed)
	}
}

// projectFromBody peeks at the JSON body's project field and restores the
// body for the downstream handler.
func projectFromBody(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	data, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	var payload struct {
		Project string `json:"project"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Project
}
