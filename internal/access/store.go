package access

import "context"

// Store is the persistence boundary for roles, grants and user-role
// assignments. Pure data access: no policy lives here.
type Store interface {
	// GetPermissionsForUser returns every grant reachable from the
	// user's assigned roles.
	GetPermissionsForUser(ctx context.Context, userID int64) ([]GrantedPermission, error)
	GetPermissionsForRole(ctx context.Context, roleID int64) ([]GrantedPermission, error)

	GetRoles(ctx context.Context) ([]Role, error)
	GetRoleWithID(ctx context.Context, id int64) (Role, error)
	GetRolesForProject(ctx context.Context, project string) ([]Role, error)
	GetRolesForUser(ctx context.Context, userID int64) ([]Role, error)
	GetUserIDsForRole(ctx context.Context, roleID int64) ([]int64, error)

	// RemoveRolesForProject deletes every role scoped to the project;
	// grants and assignments cascade away via referential integrity.
	RemoveRolesForProject(ctx context.Context, project string) error

	AddUserToRole(ctx context.Context, userID, roleID int64) error
	// RemoveUserFromRole tolerates a missing pair: deleting a
	// non-existent assignment is not an error.
	RemoveUserFromRole(ctx context.Context, userID, roleID int64) error

	CreateRole(ctx context.Context, name, roleType, project, description string) (Role, error)
	// AddPermissionsToRole bulk-inserts grants; all rows share the same
	// project value.
	AddPermissionsToRole(ctx context.Context, roleID int64, permissions []string, project string) error
	RemovePermissionFromRole(ctx context.Context, roleID int64, permission, project string) error
}
