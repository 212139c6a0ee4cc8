package access

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/beaconhq/beacon/internal/shared"
)

// Validation failures raised before any store write.
var (
	// ErrProjectRequired is returned when a project-scoped permission is
	// granted or revoked without a project id.
	ErrProjectRequired = fmt.Errorf("project id required for project-scoped permission: %w", shared.ErrInvalidArgument)
	// ErrUnknownPermission is returned when a grant references a
	// permission name missing from the catalog.
	ErrUnknownPermission = fmt.Errorf("permission not in catalog: %w", shared.ErrInvalidArgument)
	// ErrProjectIDEmpty is returned by project role provisioning when no
	// project id is supplied.
	ErrProjectIDEmpty = fmt.Errorf("project id cannot be empty: %w", shared.ErrInvalidArgument)
)

// Service is the RBAC policy engine: permission resolution, role
// management and the lifecycle of default project roles. It holds no
// cached state; every resolution re-reads from the store.
type Service struct {
	store   Store
	users   UserDirectory
	logger  *slog.Logger
	catalog []CatalogPermission
}

// NewService constructs the access service.
func NewService(store Store, users UserDirectory, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		users:   users,
		logger:  logger,
		catalog: Catalog(),
	}
}

// HasPermission reports whether the user may perform the action named by
// permission, optionally scoped to projectID. A grant of ADMIN at any
// scope satisfies every check. Denial is a boolean, never an error:
// "not authorized" and "no such user" are indistinguishable on purpose.
func (s *Service) HasPermission(ctx context.Context, user *shared.User, permission, projectID string) (bool, error) {
	if user == nil {
		return false, nil
	}

	s.logger.Info("checking permission",
		slog.String("permission", permission),
		slog.Int64("userId", user.ID),
		slog.String("projectId", projectID),
	)

	grants, err := s.store.GetPermissionsForUser(ctx, user.ID)
	if err != nil {
		return false, err
	}

	for _, grant := range grants {
		if grant.Project != "" && grant.Project != projectID && grant.Project != AllProjects {
			continue
		}
		if grant.Permission == permission || grant.Permission == PermAdmin {
			return true, nil
		}
	}
	return false, nil
}

// Permissions returns the static permission catalog.
func (s *Service) Permissions() []CatalogPermission {
	return s.catalog
}

// AddUserToRole assigns the user to the role.
func (s *Service) AddUserToRole(ctx context.Context, userID, roleID int64) error {
	return s.store.AddUserToRole(ctx, userID, roleID)
}

// RemoveUserFromRole removes the assignment; a missing pair is a no-op.
func (s *Service) RemoveUserFromRole(ctx context.Context, userID, roleID int64) error {
	return s.store.RemoveUserFromRole(ctx, userID, roleID)
}

// SetUserRootRole moves the user onto the named root role, dropping any
// root roles currently held so a user has at most one at a time. An
// unknown role name is logged and swallowed: callers use this in
// reassignment flows where the name was already validated.
func (s *Service) SetUserRootRole(ctx context.Context, userID int64, roleName string) error {
	roles, err := s.store.GetRoles(ctx)
	if err != nil {
		return err
	}
	var target *Role
	for i := range roles {
		if roles[i].Type == RoleTypeRoot && roles[i].Name == roleName {
			target = &roles[i]
			break
		}
	}
	if target == nil {
		s.logger.Warn("root role not found, skipping reassignment",
			slog.String("role", roleName),
			slog.Int64("userId", userID),
		)
		return nil
	}

	userRoles, err := s.store.GetRolesForUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, role := range userRoles {
		if role.Type != RoleTypeRoot {
			continue
		}
		if err := s.store.RemoveUserFromRole(ctx, userID, role.ID); err != nil {
			s.logger.Warn("could not clear current root role",
				slog.String("role", role.Name),
				slog.String("targetRole", roleName),
				slog.Int64("userId", userID),
				slog.Any("error", err),
			)
			return nil
		}
	}
	if err := s.store.AddUserToRole(ctx, userID, target.ID); err != nil {
		s.logger.Warn("could not assign root role",
			slog.String("role", roleName),
			slog.Int64("userId", userID),
			slog.Any("error", err),
		)
	}
	return nil
}

// AddPermissionToRole grants a permission to the role. Project-scoped
// permissions must name a project; the catalog is the source of truth
// for scope, and unknown permission names are rejected outright.
func (s *Service) AddPermissionToRole(ctx context.Context, roleID int64, permission, projectID string) error {
	if err := validateGrant(permission, projectID); err != nil {
		return err
	}
	return s.store.AddPermissionsToRole(ctx, roleID, []string{permission}, projectID)
}

// RemovePermissionFromRole revokes a grant, under the same validation as
// AddPermissionToRole.
func (s *Service) RemovePermissionFromRole(ctx context.Context, roleID int64, permission, projectID string) error {
	if err := validateGrant(permission, projectID); err != nil {
		return err
	}
	return s.store.RemovePermissionFromRole(ctx, roleID, permission, projectID)
}

func validateGrant(permission, projectID string) error {
	if !KnownPermission(permission) {
		return fmt.Errorf("%q: %w", permission, ErrUnknownPermission)
	}
	if IsProjectPermission(permission) && projectID == "" {
		return fmt.Errorf("%q: %w", permission, ErrProjectRequired)
	}
	return nil
}

// GetRoles returns every role.
func (s *Service) GetRoles(ctx context.Context) ([]Role, error) {
	return s.store.GetRoles(ctx)
}

// GetRole aggregates a role with its grants and members. The three reads
// run concurrently; a missing role surfaces as the role lookup's
// ErrNotFound while the other reads simply come back empty.
func (s *Service) GetRole(ctx context.Context, roleID int64) (RoleData, error) {
	var (
		role        Role
		permissions []GrantedPermission
		users       []UserSummary
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		role, err = s.store.GetRoleWithID(ctx, roleID)
		return err
	})
	group.Go(func() error {
		var err error
		permissions, err = s.store.GetPermissionsForRole(ctx, roleID)
		return err
	})
	group.Go(func() error {
		var err error
		users, err = s.GetUsersForRole(ctx, roleID)
		return err
	})
	if err := group.Wait(); err != nil {
		return RoleData{}, err
	}

	return RoleData{Role: role, Permissions: permissions, Users: users}, nil
}

// GetRolesForProject returns the roles scoped to the project.
func (s *Service) GetRolesForProject(ctx context.Context, projectID string) ([]Role, error) {
	return s.store.GetRolesForProject(ctx, projectID)
}

// GetRolesForUser returns the roles assigned to the user.
func (s *Service) GetRolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	return s.store.GetRolesForUser(ctx, userID)
}

// GetUsersForRole hydrates the role's members through the user directory.
func (s *Service) GetUsersForRole(ctx context.Context, roleID int64) ([]UserSummary, error) {
	ids, err := s.store.GetUserIDsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return s.users.GetAllWithID(ctx, ids)
}

// GetProjectRoleUsers returns the project's roles together with every
// member, each tagged with the role that grants them access.
func (s *Service) GetProjectRoleUsers(ctx context.Context, projectID string) ([]Role, []UserWithRole, error) {
	roles, err := s.store.GetRolesForProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	var users []UserWithRole
	for _, role := range roles {
		members, err := s.GetUsersForRole(ctx, role.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, member := range members {
			users = append(users, UserWithRole{UserSummary: member, RoleID: role.ID})
		}
	}
	return roles, users, nil
}

// CreateDefaultProjectRoles provisions the admin/regular role pair for a
// freshly created project and makes the owner its first admin. A missing
// owner identity is tolerated for bootstrap paths where no user is
// resolved yet. The sequence is not transactional: a crash mid-way can
// leave a partial pair, and callers do not retry.
func (s *Service) CreateDefaultProjectRoles(ctx context.Context, owner *shared.User, projectID string) error {
	if projectID == "" {
		return ErrProjectIDEmpty
	}

	adminRole, err := s.store.CreateRole(ctx,
		RoleAdmin,
		RoleTypeProjectAdmin,
		projectID,
		fmt.Sprintf("Admin role for project %q", projectID),
	)
	if err != nil {
		return err
	}
	if err := s.store.AddPermissionsToRole(ctx, adminRole.ID, ProjectAdminPermissions, projectID); err != nil {
		return err
	}

	if owner != nil && owner.ID != 0 {
		s.logger.Info("assigning project owner as admin",
			slog.Int64("userId", owner.ID),
			slog.String("projectId", projectID),
			slog.Int64("roleId", adminRole.ID),
		)
		if err := s.store.AddUserToRole(ctx, owner.ID, adminRole.ID); err != nil {
			return err
		}
	} else {
		s.logger.Warn("project created without owner identity, no admin assigned",
			slog.String("projectId", projectID),
		)
	}

	regularRole, err := s.store.CreateRole(ctx,
		RoleRegular,
		RoleTypeProjectRegular,
		projectID,
		fmt.Sprintf("Contributor role for project %q", projectID),
	)
	if err != nil {
		return err
	}
	return s.store.AddPermissionsToRole(ctx, regularRole.ID, ProjectRegularPermissions, projectID)
}

// RemoveDefaultProjectRoles tears down every role scoped to the project.
// Called on project deletion; a failed cascade only leaves roles no
// project-scoped lookup can reach anymore.
func (s *Service) RemoveDefaultProjectRoles(ctx context.Context, owner *shared.User, projectID string) error {
	s.logger.Info("removing project roles", slog.String("projectId", projectID))
	return s.store.RemoveRolesForProject(ctx, projectID)
}
