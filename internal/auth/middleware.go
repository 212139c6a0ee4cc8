package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/beaconhq/beacon/internal/shared"
)

// Identity resolves the request principal and places it on the context.
// API tokens win over sessions; a request with neither simply carries no
// user, and the RBAC gate fails closed downstream.
type Identity struct {
	Service *Service
	Logger  *slog.Logger
}

// Handler is the identity-resolution middleware.
func (m Identity) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if secret := bearerToken(r); secret != "" {
			principal, err := m.Service.ResolveAPIToken(r.Context(), secret)
			if err != nil {
				m.Logger.Warn("unknown api token", slog.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithUser(r.Context(), principal)))
			return
		}

		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := strconv.ParseInt(sess.User(), 10, 64)
		if err != nil {
			m.Logger.Error("parse session user id", slog.String("value", sess.User()))
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.Service.ResolveUser(r.Context(), userID)
		if err != nil {
			m.Logger.Warn("resolve session user", slog.Int64("userId", userID), slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithUser(r.Context(), user)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
