package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beaconhq/beacon/internal/shared"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

const uniqueViolation = "23505"

// GetPermissionsForUser returns the join of grants through the user's roles.
func (s *PGStore) GetPermissionsForUser(ctx context.Context, userID int64) ([]GrantedPermission, error) {
	const query = `
		SELECT COALESCE(rp.project, ''), rp.permission
		FROM role_permission rp
		JOIN role_user ru ON ru.role_id = rp.role_id
		WHERE ru.user_id = $1`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("access: permissions for user: %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

// GetPermissionsForRole returns the grants attached to a single role.
func (s *PGStore) GetPermissionsForRole(ctx context.Context, roleID int64) ([]GrantedPermission, error) {
	const query = `
		SELECT COALESCE(project, ''), permission
		FROM role_permission
		WHERE role_id = $1`
	rows, err := s.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("access: permissions for role: %w", err)
	}
	defer rows.Close()
	return scanGrants(rows)
}

// GetRoles returns all roles.
func (s *PGStore) GetRoles(ctx context.Context) ([]Role, error) {
	const query = `
		SELECT id, name, COALESCE(description, ''), type, COALESCE(project, ''), created_at
		FROM roles ORDER BY id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("access: list roles: %w", err)
	}
	defer rows.Close()
	return scanRoles(rows)
}

// GetRoleWithID fetches a role by id.
func (s *PGStore) GetRoleWithID(ctx context.Context, id int64) (Role, error) {
	const query = `
		SELECT id, name, COALESCE(description, ''), type, COALESCE(project, ''), created_at
		FROM roles WHERE id = $1`
	var role Role
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&role.ID, &role.Name, &role.Description, &role.Type, &role.Project, &role.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("access: get role: %w", err)
	}
	return role, nil
}

// GetRolesForProject returns the roles scoped to a project.
func (s *PGStore) GetRolesForProject(ctx context.Context, project string) ([]Role, error) {
	const query = `
		SELECT id, name, COALESCE(description, ''), type, COALESCE(project, ''), created_at
		FROM roles WHERE project = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, query, project)
	if err != nil {
		return nil, fmt.Errorf("access: roles for project: %w", err)
	}
	defer rows.Close()
	return scanRoles(rows)
}

// GetRolesForUser returns the roles assigned to a user.
func (s *PGStore) GetRolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	const query = `
		SELECT r.id, r.name, COALESCE(r.description, ''), r.type, COALESCE(r.project, ''), r.created_at
		FROM roles r
		JOIN role_user ru ON ru.role_id = r.id
		WHERE ru.user_id = $1 ORDER BY r.id`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("access: roles for user: %w", err)
	}
	defer rows.Close()
	return scanRoles(rows)
}

// GetUserIDsForRole returns the ids of the role's members.
func (s *PGStore) GetUserIDsForRole(ctx context.Context, roleID int64) ([]int64, error) {
	const query = `SELECT user_id FROM role_user WHERE role_id = $1 ORDER BY user_id`
	rows, err := s.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("access: user ids for role: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveRolesForProject deletes every role scoped to the project. Grants
// and assignments go with them through ON DELETE CASCADE.
func (s *PGStore) RemoveRolesForProject(ctx context.Context, project string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE project = $1`, project); err != nil {
		return fmt.Errorf("access: remove roles for project: %w", err)
	}
	return nil
}

// AddUserToRole assigns the user to the role.
func (s *PGStore) AddUserToRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO role_user (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shared.ErrDuplicate
		}
		return fmt.Errorf("access: add user to role: %w", err)
	}
	return nil
}

// RemoveUserFromRole removes the assignment. Removing a pair that does
// not exist is not an error.
func (s *PGStore) RemoveUserFromRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM role_user WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("access: remove user from role: %w", err)
	}
	return nil
}

// CreateRole inserts a role and returns it with its generated id.
func (s *PGStore) CreateRole(ctx context.Context, name, roleType, project, description string) (Role, error) {
	const query = `
		INSERT INTO roles (name, type, project, description)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING id, created_at`
	role := Role{Name: name, Type: roleType, Project: project, Description: description}
	if err := s.pool.QueryRow(ctx, query, name, roleType, project, description).Scan(&role.ID, &role.CreatedAt); err != nil {
		return Role{}, fmt.Errorf("access: create role: %w", err)
	}
	return role, nil
}

// AddPermissionsToRole bulk-inserts grants sharing the same project value.
func (s *PGStore) AddPermissionsToRole(ctx context.Context, roleID int64, permissions []string, project string) error {
	if len(permissions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, permission := range permissions {
		batch.Queue(
			`INSERT INTO role_permission (role_id, project, permission) VALUES ($1, NULLIF($2, ''), $3)`,
			roleID, project, permission,
		)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range permissions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("access: add permissions to role: %w", err)
		}
	}
	return nil
}

// RemovePermissionFromRole deletes a single grant tuple.
func (s *PGStore) RemovePermissionFromRole(ctx context.Context, roleID int64, permission, project string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM role_permission WHERE role_id = $1 AND permission = $2 AND COALESCE(project, '') = $3`,
		roleID, permission, project)
	if err != nil {
		return fmt.Errorf("access: remove permission from role: %w", err)
	}
	return nil
}

func scanGrants(rows pgx.Rows) ([]GrantedPermission, error) {
	var grants []GrantedPermission
	for rows.Next() {
		var grant GrantedPermission
		if err := rows.Scan(&grant.Project, &grant.Permission); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

func scanRoles(rows pgx.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.Type, &role.Project, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
