package access

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beaconhq/beacon/internal/shared"
)

type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	roles   map[int64]Role
	grants  map[int64][]GrantedPermission
	members map[int64][]int64

	addUserErr    error
	removeUserErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		roles:   make(map[int64]Role),
		grants:  make(map[int64][]GrantedPermission),
		members: make(map[int64][]int64),
	}
}

func (s *memoryStore) seedRole(name, roleType, project string, grants ...GrantedPermission) Role {
	role, _ := s.CreateRole(context.Background(), name, roleType, project, "")
	s.mu.Lock()
	s.grants[role.ID] = append(s.grants[role.ID], grants...)
	s.mu.Unlock()
	return role
}

func (s *memoryStore) CreateRole(ctx context.Context, name, roleType, project, description string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	role := Role{ID: s.nextID, Name: name, Type: roleType, Project: project, Description: description}
	s.roles[role.ID] = role
	return role, nil
}

func (s *memoryStore) GetRoles(ctx context.Context) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := make([]Role, 0, len(s.roles))
	for id := int64(1); id <= s.nextID; id++ {
		if role, ok := s.roles[id]; ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (s *memoryStore) GetRoleWithID(ctx context.Context, id int64) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (s *memoryStore) GetRolesForProject(ctx context.Context, project string) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var roles []Role
	for id := int64(1); id <= s.nextID; id++ {
		if role, ok := s.roles[id]; ok && role.Project == project {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (s *memoryStore) GetRolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var roles []Role
	for roleID, userIDs := range s.members {
		for _, id := range userIDs {
			if id == userID {
				roles = append(roles, s.roles[roleID])
				break
			}
		}
	}
	return roles, nil
}

func (s *memoryStore) GetUserIDsForRole(ctx context.Context, roleID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.members[roleID]...), nil
}

func (s *memoryStore) GetPermissionsForUser(ctx context.Context, userID int64) ([]GrantedPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var grants []GrantedPermission
	for roleID, userIDs := range s.members {
		for _, id := range userIDs {
			if id == userID {
				grants = append(grants, s.grants[roleID]...)
				break
			}
		}
	}
	return grants, nil
}

func (s *memoryStore) GetPermissionsForRole(ctx context.Context, roleID int64) ([]GrantedPermission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GrantedPermission(nil), s.grants[roleID]...), nil
}

func (s *memoryStore) RemoveRolesForProject(ctx context.Context, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, role := range s.roles {
		if role.Project == project {
			delete(s.roles, id)
			delete(s.grants, id)
			delete(s.members, id)
		}
	}
	return nil
}

func (s *memoryStore) AddUserToRole(ctx context.Context, userID, roleID int64) error {
	if s.addUserErr != nil {
		return s.addUserErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.members[roleID] {
		if id == userID {
			return shared.ErrDuplicate
		}
	}
	s.members[roleID] = append(s.members[roleID], userID)
	return nil
}

func (s *memoryStore) RemoveUserFromRole(ctx context.Context, userID, roleID int64) error {
	if s.removeUserErr != nil {
		return s.removeUserErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.members[roleID][:0]
	for _, id := range s.members[roleID] {
		if id != userID {
			kept = append(kept, id)
		}
	}
	s.members[roleID] = kept
	return nil
}

func (s *memoryStore) AddPermissionsToRole(ctx context.Context, roleID int64, permissions []string, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range permissions {
		s.grants[roleID] = append(s.grants[roleID], GrantedPermission{Project: project, Permission: p})
	}
	return nil
}

func (s *memoryStore) RemovePermissionFromRole(ctx context.Context, roleID int64, permission, project string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.grants[roleID][:0]
	for _, g := range s.grants[roleID] {
		if g.Permission != permission || g.Project != project {
			kept = append(kept, g)
		}
	}
	s.grants[roleID] = kept
	return nil
}

type stubDirectory struct{}

func (stubDirectory) GetAllWithID(ctx context.Context, ids []int64) ([]UserSummary, error) {
	users := make([]UserSummary, 0, len(ids))
	for _, id := range ids {
		users = append(users, UserSummary{ID: id, Email: fmt.Sprintf("user%d@example.com", id)})
	}
	return users, nil
}

func newTestService(store Store) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, stubDirectory{}, logger)
}

func TestHasPermissionNilUser(t *testing.T) {
	svc := newTestService(newMemoryStore())
	allowed, err := svc.HasPermission(context.Background(), nil, PermCreateFeature, "default")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestHasPermissionAdminOverridesEverything(t *testing.T) {
	store := newMemoryStore()
	role := store.seedRole(RoleAdmin, RoleTypeRoot, "", GrantedPermission{Permission: PermAdmin})
	require.NoError(t, store.AddUserToRole(context.Background(), 7, role.ID))

	svc := newTestService(store)
	user := &shared.User{ID: 7}

	for _, tc := range []struct {
		permission string
		project    string
	}{
		{PermCreateFeature, "default"},
		{PermDeleteProject, "other"},
		{PermUpdateRole, ""},
	} {
		allowed, err := svc.HasPermission(context.Background(), user, tc.permission, tc.project)
		require.NoError(t, err)
		require.True(t, allowed, "admin should be allowed %s on %q", tc.permission, tc.project)
	}
}

func TestHasPermissionProjectIsolation(t *testing.T) {
	store := newMemoryStore()
	role := store.seedRole(RoleRegular, RoleTypeProjectRegular, "alpha",
		GrantedPermission{Project: "alpha", Permission: PermUpdateFeature})
	require.NoError(t, store.AddUserToRole(context.Background(), 3, role.ID))

	svc := newTestService(store)
	user := &shared.User{ID: 3}

	allowed, err := svc.HasPermission(context.Background(), user, PermUpdateFeature, "alpha")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = svc.HasPermission(context.Background(), user, PermUpdateFeature, "beta")
	require.NoError(t, err)
	require.False(t, allowed, "a grant scoped to alpha must not leak into beta")

	allowed, err = svc.HasPermission(context.Background(), user, PermDeleteFeature, "alpha")
	require.NoError(t, err)
	require.False(t, allowed, "name must match even in the right project")
}

func TestHasPermissionWildcardProject(t *testing.T) {
	store := newMemoryStore()
	role := store.seedRole("Operator", RoleTypeRoot, "",
		GrantedPermission{Project: AllProjects, Permission: PermUpdateFeature})
	require.NoError(t, store.AddUserToRole(context.Background(), 5, role.ID))

	svc := newTestService(store)
	user := &shared.User{ID: 5}

	for _, project := range []string{"alpha", "beta", ""} {
		allowed, err := svc.HasPermission(context.Background(), user, PermUpdateFeature, project)
		require.NoError(t, err)
		require.True(t, allowed, "wildcard grant should match project %q", project)
	}
}

func TestHasPermissionUnrestrictedGrant(t *testing.T) {
	store := newMemoryStore()
	role := store.seedRole(RoleRegular, RoleTypeRoot, "",
		GrantedPermission{Permission: PermCreateProject})
	require.NoError(t, store.AddUserToRole(context.Background(), 9, role.ID))

	svc := newTestService(store)
	user := &shared.User{ID: 9}

	allowed, err := svc.HasPermission(context.Background(), user, PermCreateProject, "anything")
	require.NoError(t, err)
	require.True(t, allowed, "a grant without project restriction matches any project context")
}

func TestSetUserRootRoleKeepsSingleRootRole(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	admin := store.seedRole(RoleAdmin, RoleTypeRoot, "")
	regular := store.seedRole(RoleRegular, RoleTypeRoot, "")
	projectRole := store.seedRole(RoleAdmin, RoleTypeProjectAdmin, "alpha")

	require.NoError(t, store.AddUserToRole(ctx, 4, admin.ID))
	require.NoError(t, store.AddUserToRole(ctx, 4, projectRole.ID))

	svc := newTestService(store)
	require.NoError(t, svc.SetUserRootRole(ctx, 4, RoleRegular))

	roles, err := store.GetRolesForUser(ctx, 4)
	require.NoError(t, err)

	var rootRoles, project int
	for _, role := range roles {
		switch role.Type {
		case RoleTypeRoot:
			rootRoles++
			require.Equal(t, regular.ID, role.ID)
		default:
			project++
		}
	}
	require.Equal(t, 1, rootRoles, "user must hold exactly one root role after reassignment")
	require.Equal(t, 1, project, "project roles are untouched by root reassignment")
}

func TestSetUserRootRoleUnknownNameIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	admin := store.seedRole(RoleAdmin, RoleTypeRoot, "")
	require.NoError(t, store.AddUserToRole(ctx, 2, admin.ID))

	svc := newTestService(store)
	require.NoError(t, svc.SetUserRootRole(ctx, 2, "Nonexistent"))

	roles, err := store.GetRolesForUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, admin.ID, roles[0].ID, "unknown role name leaves the assignment alone")
}

func TestSetUserRootRoleClearFailureLogsHeldRole(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	held := store.seedRole(RoleRegular, RoleTypeRoot, "")
	store.seedRole(RoleAdmin, RoleTypeRoot, "")
	require.NoError(t, store.AddUserToRole(ctx, 3, held.ID))
	store.removeUserErr = errors.New("boom")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(store, stubDirectory{}, logger)

	require.NoError(t, svc.SetUserRootRole(ctx, 3, RoleAdmin))
	require.Contains(t, buf.String(), "role="+RoleRegular, "warning must name the role that failed to clear")
	require.Contains(t, buf.String(), "targetRole="+RoleAdmin)
}

func TestRemoveUserFromRoleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	role := store.seedRole(RoleRegular, RoleTypeRoot, "")
	require.NoError(t, store.AddUserToRole(ctx, 5, role.ID))

	svc := newTestService(store)
	require.NoError(t, svc.RemoveUserFromRole(ctx, 5, role.ID))
	require.NoError(t, svc.RemoveUserFromRole(ctx, 5, role.ID))

	members, err := store.GetUserIDsForRole(ctx, role.ID)
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestSetUserRootRoleSwallowsAssignFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.seedRole(RoleRegular, RoleTypeRoot, "")
	store.addUserErr = errors.New("boom")

	svc := newTestService(store)
	require.NoError(t, svc.SetUserRootRole(ctx, 2, RoleRegular))
}

func TestAddPermissionToRoleRejectsUnknownName(t *testing.T) {
	store := newMemoryStore()
	role := store.seedRole(RoleAdmin, RoleTypeRoot, "")

	svc := newTestService(store)
	err := svc.AddPermissionToRole(context.Background(), role.ID, "NOT_A_PERMISSION", "")
	require.ErrorIs(t, err, ErrUnknownPermission)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	grants, getErr := store.GetPermissionsForRole(context.Background(), role.ID)
	require.NoError(t, getErr)
	require.Empty(t, grants, "validation failures must not write to the store")
}

func TestAddPermissionToRoleRequiresProjectForScopedPermission(t *testing.T) {
	store := newMemoryStore()
	role := store.seedRole(RoleAdmin, RoleTypeRoot, "")

	svc := newTestService(store)
	err := svc.AddPermissionToRole(context.Background(), role.ID, PermUpdateFeature, "")
	require.ErrorIs(t, err, ErrProjectRequired)

	require.NoError(t, svc.AddPermissionToRole(context.Background(), role.ID, PermUpdateFeature, "alpha"))
	require.NoError(t, svc.AddPermissionToRole(context.Background(), role.ID, PermCreateProject, ""))

	grants, err := store.GetPermissionsForRole(context.Background(), role.ID)
	require.NoError(t, err)
	require.Len(t, grants, 2)
}

func TestRemovePermissionFromRole(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	role := store.seedRole(RoleAdmin, RoleTypeProjectAdmin, "alpha",
		GrantedPermission{Project: "alpha", Permission: PermUpdateFeature},
		GrantedPermission{Project: "alpha", Permission: PermDeleteFeature})

	svc := newTestService(store)
	require.NoError(t, svc.RemovePermissionFromRole(ctx, role.ID, PermUpdateFeature, "alpha"))

	grants, err := store.GetPermissionsForRole(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, PermDeleteFeature, grants[0].Permission)

	err = svc.RemovePermissionFromRole(ctx, role.ID, PermUpdateFeature, "")
	require.ErrorIs(t, err, ErrProjectRequired)
}

func TestGetRoleAggregatesPermissionsAndUsers(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	role := store.seedRole(RoleAdmin, RoleTypeProjectAdmin, "alpha",
		GrantedPermission{Project: "alpha", Permission: PermUpdateProject})
	require.NoError(t, store.AddUserToRole(ctx, 11, role.ID))
	require.NoError(t, store.AddUserToRole(ctx, 12, role.ID))

	svc := newTestService(store)
	data, err := svc.GetRole(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, role.ID, data.Role.ID)
	require.Len(t, data.Permissions, 1)
	require.Len(t, data.Users, 2)
	require.Equal(t, "user11@example.com", data.Users[0].Email)
}

func TestGetRoleMissing(t *testing.T) {
	svc := newTestService(newMemoryStore())
	_, err := svc.GetRole(context.Background(), 999)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetProjectRoleUsersTagsRoleID(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	admin := store.seedRole(RoleAdmin, RoleTypeProjectAdmin, "alpha")
	regular := store.seedRole(RoleRegular, RoleTypeProjectRegular, "alpha")
	store.seedRole(RoleAdmin, RoleTypeProjectAdmin, "beta")

	require.NoError(t, store.AddUserToRole(ctx, 1, admin.ID))
	require.NoError(t, store.AddUserToRole(ctx, 2, regular.ID))
	require.NoError(t, store.AddUserToRole(ctx, 3, regular.ID))

	svc := newTestService(store)
	roles, users, err := svc.GetProjectRoleUsers(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, roles, 2)
	require.Len(t, users, 3)

	byUser := make(map[int64]int64)
	for _, u := range users {
		byUser[u.ID] = u.RoleID
	}
	require.Equal(t, admin.ID, byUser[1])
	require.Equal(t, regular.ID, byUser[2])
	require.Equal(t, regular.ID, byUser[3])
}

func TestCreateDefaultProjectRoles(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := newTestService(store)
	owner := &shared.User{ID: 42}

	require.NoError(t, svc.CreateDefaultProjectRoles(ctx, owner, "alpha"))

	roles, err := store.GetRolesForProject(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, roles, 2)

	byType := make(map[string]Role)
	for _, role := range roles {
		byType[role.Type] = role
	}
	adminRole, ok := byType[RoleTypeProjectAdmin]
	require.True(t, ok)
	regularRole, ok := byType[RoleTypeProjectRegular]
	require.True(t, ok)

	adminGrants, err := store.GetPermissionsForRole(ctx, adminRole.ID)
	require.NoError(t, err)
	require.Len(t, adminGrants, len(ProjectAdminPermissions))
	names := make([]string, 0, len(adminGrants))
	for _, g := range adminGrants {
		require.Equal(t, "alpha", g.Project)
		names = append(names, g.Permission)
	}
	require.ElementsMatch(t, ProjectAdminPermissions, names)

	regularGrants, err := store.GetPermissionsForRole(ctx, regularRole.ID)
	require.NoError(t, err)
	require.Len(t, regularGrants, len(ProjectRegularPermissions))

	members, err := store.GetUserIDsForRole(ctx, adminRole.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{42}, members, "the owner becomes the first project admin")
}

func TestCreateDefaultProjectRolesWithoutOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := newTestService(store)

	require.NoError(t, svc.CreateDefaultProjectRoles(ctx, nil, "alpha"))

	roles, err := store.GetRolesForProject(ctx, "alpha")
	require.NoError(t, err)
	require.Len(t, roles, 2)
	for _, role := range roles {
		members, err := store.GetUserIDsForRole(ctx, role.ID)
		require.NoError(t, err)
		require.Empty(t, members, "no owner means no admin assignment")
	}
}

func TestCreateDefaultProjectRolesEmptyProjectID(t *testing.T) {
	svc := newTestService(newMemoryStore())
	err := svc.CreateDefaultProjectRoles(context.Background(), &shared.User{ID: 1}, "")
	require.ErrorIs(t, err, ErrProjectIDEmpty)
}

func TestRemoveDefaultProjectRoles(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	svc := newTestService(store)
	require.NoError(t, svc.CreateDefaultProjectRoles(ctx, &shared.User{ID: 1}, "alpha"))
	require.NoError(t, svc.CreateDefaultProjectRoles(ctx, &shared.User{ID: 1}, "beta"))

	removed, err := store.GetRolesForProject(ctx, "alpha")
	require.NoError(t, err)

	require.NoError(t, svc.RemoveDefaultProjectRoles(ctx, nil, "alpha"))

	remaining, err := store.GetRolesForProject(ctx, "alpha")
	require.NoError(t, err)
	require.Empty(t, remaining)

	// Grants cascade away with the roles; asking for them afterwards
	// yields an empty set, not an error.
	for _, role := range removed {
		grants, err := store.GetPermissionsForRole(ctx, role.ID)
		require.NoError(t, err)
		require.Empty(t, grants)
	}

	kept, err := store.GetRolesForProject(ctx, "beta")
	require.NoError(t, err)
	require.Len(t, kept, 2, "teardown is scoped to one project")
}
