package feature

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beaconhq/beacon/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProjectID resolves the owning project for a feature toggle.
func (r *Repository) GetProjectID(ctx context.Context, featureName string) (string, error) {
	var project string
	err := r.pool.QueryRow(ctx, `SELECT project FROM features WHERE name = $1`, featureName).Scan(&project)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", fmt.Errorf("feature: get project id: %w", err)
	}
	return project, nil
}

// ListByProject returns the project's unarchived toggles.
func (r *Repository) ListByProject(ctx context.Context, project string) ([]Toggle, error) {
	const query = `
		SELECT name, project, COALESCE(description, ''), enabled, archived, created_at
		FROM features WHERE project = $1 AND NOT archived ORDER BY name`
	rows, err := r.pool.Query(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("feature: list by project: %w", err)
	}
	defer rows.Close()
	var toggles []Toggle
	for rows.Next() {
		var t Toggle
		if err := rows.Scan(&t.Name, &t.Project, &t.Description, &t.Enabled, &t.Archived, &t.CreatedAt); err != nil {
			return nil, err
		}
		toggles = append(toggles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return toggles, nil
}

// ActiveCountByProject counts unarchived toggles in the project.
func (r *Repository) ActiveCountByProject(ctx context.Context, project string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM features WHERE project = $1 AND NOT archived`, project).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("feature: active count: %w", err)
	}
	return count, nil
}

// Create inserts a toggle.
func (r *Repository) Create(ctx context.Context, toggle Toggle) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO features (name, project, description, enabled) VALUES ($1, $2, NULLIF($3, ''), $4)`,
		toggle.Name, toggle.Project, toggle.Description, toggle.Enabled)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return fmt.Errorf("feature: create: %w", err)
	}
	return nil
}

// Archive marks a toggle archived; archiving an unknown toggle reports NotFound.
func (r *Repository) Archive(ctx context.Context, featureName string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE features SET archived = TRUE WHERE name = $1`, featureName)
	if err != nil {
		return fmt.Errorf("feature: archive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
