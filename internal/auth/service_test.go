package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/beaconhq/beacon/internal/shared"
)

type stubAuthRepo struct {
	accounts map[string]*Account
	tokens   map[string]*APIToken
	sessions map[string]int64
}

func newStubAuthRepo() *stubAuthRepo {
	return &stubAuthRepo{
		accounts: make(map[string]*Account),
		tokens:   make(map[string]*APIToken),
		sessions: make(map[string]int64),
	}
}

func (r *stubAuthRepo) addAccount(id int64, email, password string, active bool) *Account {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	account := &Account{ID: id, Username: email, Email: email, PasswordHash: string(hash), IsActive: active}
	r.accounts[email] = account
	return account
}

func (r *stubAuthRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	account, ok := r.accounts[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (r *stubAuthRepo) FindByID(ctx context.Context, id int64) (*Account, error) {
	for _, account := range r.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *stubAuthRepo) FindAPIToken(ctx context.Context, secret string) (*APIToken, error) {
	token, ok := r.tokens[secret]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return token, nil
}

func (r *stubAuthRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	r.sessions[id] = userID
	return nil
}

func (r *stubAuthRepo) DeleteSession(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func TestAuthenticate(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addAccount(1, "ana@example.com", "s3cret", true)
	repo.addAccount(2, "inactive@example.com", "s3cret", false)
	svc := NewService(repo)

	account, err := svc.Authenticate(context.Background(), "ana@example.com", "s3cret")
	require.NoError(t, err)
	require.Equal(t, int64(1), account.ID)

	_, err = svc.Authenticate(context.Background(), "ana@example.com", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@example.com", "s3cret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials, "unknown account and bad password are indistinguishable")

	_, err = svc.Authenticate(context.Background(), "inactive@example.com", "s3cret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestResolveAPIToken(t *testing.T) {
	repo := newStubAuthRepo()
	repo.tokens["live-secret"] = &APIToken{Secret: "live-secret", Username: "ci", Permissions: []string{"ADMIN"}}
	repo.tokens["stale-secret"] = &APIToken{Secret: "stale-secret", Username: "old", ExpiresAt: time.Now().Add(-time.Hour)}
	svc := NewService(repo)

	principal, err := svc.ResolveAPIToken(context.Background(), "live-secret")
	require.NoError(t, err)
	require.True(t, principal.IsAPI)
	require.True(t, principal.HasClaim("ADMIN"))

	_, err = svc.ResolveAPIToken(context.Background(), "stale-secret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.ResolveAPIToken(context.Background(), "missing")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func identityForTest(repo Repository) Identity {
	return Identity{
		Service: NewService(repo),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func captureUser(captured **shared.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = shared.UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityBearerTokenWins(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addAccount(1, "ana@example.com", "s3cret", true)
	repo.tokens["live-secret"] = &APIToken{Secret: "live-secret", Username: "ci", Permissions: []string{"CLIENT"}}
	identity := identityForTest(repo)

	var user *shared.User
	handler := identity.Handler(captureUser(&user))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/roles", nil)
	req.Header.Set("Authorization", "Bearer live-secret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, user)
	require.True(t, user.IsAPI)
	require.Equal(t, "ci", user.Username)
}

func TestIdentityRejectsUnknownToken(t *testing.T) {
	identity := identityForTest(newStubAuthRepo())

	var user *shared.User
	handler := identity.Handler(captureUser(&user))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/roles", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Nil(t, user)
}

func TestIdentityResolvesSessionUser(t *testing.T) {
	repo := newStubAuthRepo()
	repo.addAccount(9, "ana@example.com", "s3cret", true)
	identity := identityForTest(repo)

	var user *shared.User
	handler := identity.Handler(captureUser(&user))

	sess := &shared.Session{}
	sess.SetUser("9")
	req := httptest.NewRequest(http.MethodGet, "/api/admin/roles", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, user)
	require.Equal(t, int64(9), user.ID)
	require.False(t, user.IsAPI)
}

func TestIdentityAnonymousPassesThrough(t *testing.T) {
	identity := identityForTest(newStubAuthRepo())

	var user *shared.User
	handler := identity.Handler(captureUser(&user))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Nil(t, user, "no identity means no user, not an error")
}
