package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconhq/beacon/internal/shared"
)

type memoryToggleRepo struct {
	toggles map[string]Toggle
}

func newMemoryToggleRepo() *memoryToggleRepo {
	return &memoryToggleRepo{toggles: make(map[string]Toggle)}
}

func (r *memoryToggleRepo) GetProjectID(ctx context.Context, featureName string) (string, error) {
	toggle, ok := r.toggles[featureName]
	if !ok {
		return "", shared.ErrNotFound
	}
	return toggle.Project, nil
}

func (r *memoryToggleRepo) ListByProject(ctx context.Context, project string) ([]Toggle, error) {
	var out []Toggle
	for _, toggle := range r.toggles {
		if toggle.Project == project && !toggle.Archived {
			out = append(out, toggle)
		}
	}
	return out, nil
}

func (r *memoryToggleRepo) ActiveCountByProject(ctx context.Context, project string) (int, error) {
	list, _ := r.ListByProject(ctx, project)
	return len(list), nil
}

func (r *memoryToggleRepo) Create(ctx context.Context, toggle Toggle) error {
	if _, ok := r.toggles[toggle.Name]; ok {
		return shared.ErrDuplicate
	}
	r.toggles[toggle.Name] = toggle
	return nil
}

func (r *memoryToggleRepo) Archive(ctx context.Context, featureName string) error {
	toggle, ok := r.toggles[featureName]
	if !ok {
		return shared.ErrNotFound
	}
	toggle.Archived = true
	r.toggles[featureName] = toggle
	return nil
}

func TestCreateToggleValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryToggleRepo())

	err := svc.Create(ctx, Toggle{Name: "  ", Project: "alpha"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	err = svc.Create(ctx, Toggle{Name: "new-toggle"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	require.NoError(t, svc.Create(ctx, Toggle{Name: "new-toggle", Project: "alpha"}))
	err = svc.Create(ctx, Toggle{Name: "new-toggle", Project: "alpha"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestArchiveRemovesFromActiveCount(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryToggleRepo()
	svc := NewService(repo)

	require.NoError(t, svc.Create(ctx, Toggle{Name: "a", Project: "alpha"}))
	require.NoError(t, svc.Create(ctx, Toggle{Name: "b", Project: "alpha"}))

	count, err := svc.ActiveCountByProject(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, svc.Archive(ctx, "a"))
	count, err = svc.ActiveCountByProject(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	project, err := svc.GetProjectID(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "alpha", project)
}
