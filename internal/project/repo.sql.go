package project

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

const projectColumns = `id, name, COALESCE(description, ''), created_at`

// GetAll returns all projects.
func (r *Repository) GetAll(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	defer rows.Close()
	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

// Get fetches a project by id.
func (r *Repository) Get(ctx context.Context, id string) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, shared.ErrNotFound
		}
		return Project{}, fmt.Errorf("project: get: %w", err)
	}
	return p, nil
}

// Has reports whether the project id exists.
func (r *Repository) Has(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("project: has: %w", err)
	}
	return exists, nil
}

// Create inserts a project; a duplicate id reports ErrDuplicate.
func (r *Repository) Create(ctx context.Context, p Project) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO projects (id, name, description) VALUES ($1, $2, NULLIF($3, ''))`,
		p.ID, p.Name, p.Description)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return fmt.Errorf("project: create: %w", err)
	}
	return nil
}

// Update rewrites the project's name and description.
func (r *Repository) Update(ctx context.Context, p Project) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE projects SET name = $2, description = NULLIF($3, '') WHERE id = $1`,
		p.ID, p.Name, p.Description)
	if err != nil {
		return fmt.Errorf("project: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the project row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("project: delete: %w", err)
	}
	return nil
}
