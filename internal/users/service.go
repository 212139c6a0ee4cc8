package users

import (
	"context"

	"github.com/beaconhq/beacon/internal/access"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetAllWithID(ctx context.Context, ids []int64) ([]User, error)
}

// Service handles user directory logic and doubles as the access core's
// user directory collaborator.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetAllWithID hydrates user ids into display-ready summaries.
func (s *Service) GetAllWithID(ctx context.Context, ids []int64) ([]access.UserSummary, error) {
	found, err := s.repo.GetAllWithID(ctx, ids)
	if err != nil {
		return nil, err
	}
	summaries := make([]access.UserSummary, 0, len(found))
	for _, user := range found {
		summaries = append(summaries, access.UserSummary{
			ID:       user.ID,
			Name:     user.Name,
			Username: user.Username,
			Email:    user.Email,
			ImageURL: user.ImageURL,
		})
	}
	return summaries, nil
}

var _ access.UserDirectory = (*Service)(nil)
