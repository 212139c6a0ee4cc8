package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/beaconhq/beacon/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// ResolveUser loads the identity for a logged-in user id.
func (s *Service) ResolveUser(ctx context.Context, id int64) (*shared.User, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &shared.User{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
	}, nil
}

// ResolveAPIToken turns a bearer secret into an API principal with its
// claim set attached.
func (s *Service) ResolveAPIToken(ctx context.Context, secret string) (*shared.User, error) {
	token, err := s.repo.FindAPIToken(ctx, secret)
	if err != nil {
		return nil, err
	}
	if token.Expired(time.Now()) {
		return nil, shared.ErrInvalidCredentials
	}
	return &shared.User{
		Username:    token.Username,
		IsAPI:       true,
		Permissions: token.Permissions,
	}, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
