package feature

import (
	"context"
	"fmt"
	"strings"

	"github.com/beaconhq/beacon/internal/access"
	"github.com/beaconhq/beacon/internal/shared"
)

// RepositoryPort defines data access methods for feature toggles.
type RepositoryPort interface {
	GetProjectID(ctx context.Context, featureName string) (string, error)
	ListByProject(ctx context.Context, project string) ([]Toggle, error)
	ActiveCountByProject(ctx context.Context, project string) (int, error)
	Create(ctx context.Context, toggle Toggle) error
	Archive(ctx context.Context, featureName string) error
}

// Service handles feature toggle business logic. It is also the access
// gate's project resolver for feature routes.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetProjectID resolves the owning project for a feature toggle.
func (s *Service) GetProjectID(ctx context.Context, featureName string) (string, error) {
	return s.repo.GetProjectID(ctx, featureName)
}

// ListByProject returns the project's unarchived toggles.
func (s *Service) ListByProject(ctx context.Context, project string) ([]Toggle, error) {
	return s.repo.ListByProject(ctx, project)
}

// ActiveCountByProject counts unarchived toggles in the project.
func (s *Service) ActiveCountByProject(ctx context.Context, project string) (int, error) {
	return s.repo.ActiveCountByProject(ctx, project)
}

// Create validates and stores a new toggle.
func (s *Service) Create(ctx context.Context, toggle Toggle) error {
	toggle.Name = strings.TrimSpace(toggle.Name)
	if toggle.Name == "" {
		return fmt.Errorf("feature name required: %w", shared.ErrInvalidArgument)
	}
	if toggle.Project == "" {
		return fmt.Errorf("feature project required: %w", shared.ErrInvalidArgument)
	}
	return s.repo.Create(ctx, toggle)
}

// Archive retires a toggle without deleting its history.
func (s *Service) Archive(ctx context.Context, featureName string) error {
	return s.repo.Archive(ctx, featureName)
}

var _ access.ProjectIDResolver = (*Service)(nil)
