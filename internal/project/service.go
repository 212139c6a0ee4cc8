package project

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/beaconhq/beacon/internal/access"
	"github.com/beaconhq/beacon/internal/events"
	"github.com/beaconhq/beacon/internal/shared"
)

// Policy failures surfaced to callers.
var (
	// ErrDefaultProjectProtected guards the built-in project from deletion.
	ErrDefaultProjectProtected = fmt.Errorf("the default project cannot be deleted: %w", shared.ErrInvalidArgument)
	// ErrProjectNotEmpty rejects deleting a project that still has
	// active feature toggles.
	ErrProjectNotEmpty = fmt.Errorf("project still has active feature toggles: %w", shared.ErrInvalidArgument)
	// ErrLastProjectAdmin rejects removing the only remaining admin of a
	// project. The check lives here, not in the access store: any other
	// caller of the core must reproduce it.
	ErrLastProjectAdmin = fmt.Errorf("a project must have at least one admin: %w", shared.ErrInvalidArgument)
	// ErrAlreadyMember rejects granting project access a user already has.
	ErrAlreadyMember = fmt.Errorf("user already has access to this project: %w", shared.ErrDuplicate)
	// ErrInvalidProjectID rejects ids that are not URL-safe slugs.
	ErrInvalidProjectID = fmt.Errorf("project id must be a lowercase slug: %w", shared.ErrInvalidArgument)
)

var projectIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-_]*$`)

// RepositoryPort defines data access methods for projects.
type RepositoryPort interface {
	GetAll(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id string) (Project, error)
	Has(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, p Project) error
	Update(ctx context.Context, p Project) error
	Delete(ctx context.Context, id string) error
}

// AccessControl is the slice of the access core the project lifecycle drives.
type AccessControl interface {
	CreateDefaultProjectRoles(ctx context.Context, owner *shared.User, projectID string) error
	RemoveDefaultProjectRoles(ctx context.Context, owner *shared.User, projectID string) error
	GetProjectRoleUsers(ctx context.Context, projectID string) ([]access.Role, []access.UserWithRole, error)
	GetRolesForProject(ctx context.Context, projectID string) ([]access.Role, error)
	GetUsersForRole(ctx context.Context, roleID int64) ([]access.UserSummary, error)
	AddUserToRole(ctx context.Context, userID, roleID int64) error
	RemoveUserFromRole(ctx context.Context, userID, roleID int64) error
}

// ToggleCounter reports how many active toggles a project still owns.
type ToggleCounter interface {
	ActiveCountByProject(ctx context.Context, project string) (int, error)
}

// EventSink receives domain events; appends are fire-and-forget.
type EventSink interface {
	Append(ctx context.Context, event events.Event)
}

// Service owns the project lifecycle and drives the access core's
// project role provisioning.
type Service struct {
	repo        RepositoryPort
	accessCtl   AccessControl
	toggles     ToggleCounter
	eventStore  EventSink
	logger      *slog.Logger
	rbacEnabled bool
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, accessCtl AccessControl, toggles ToggleCounter, eventStore EventSink, logger *slog.Logger, rbacEnabled bool) *Service {
	return &Service{
		repo:        repo,
		accessCtl:   accessCtl,
		toggles:     toggles,
		eventStore:  eventStore,
		logger:      logger,
		rbacEnabled: rbacEnabled,
	}
}

// GetProjects returns all projects.
func (s *Service) GetProjects(ctx context.Context) ([]Project, error) {
	return s.repo.GetAll(ctx)
}

// GetProject returns a single project.
func (s *Service) GetProject(ctx context.Context, id string) (Project, error) {
	return s.repo.Get(ctx, id)
}

// CreateProject validates and stores a new project, provisioning its
// default roles when RBAC is enabled and appending a creation event.
func (s *Service) CreateProject(ctx context.Context, p Project, user *shared.User) (Project, error) {
	p.ID = strings.TrimSpace(p.ID)
	if !projectIDPattern.MatchString(p.ID) {
		return Project{}, ErrInvalidProjectID
	}
	if p.Name == "" {
		p.Name = p.ID
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Project{}, err
	}

	if s.rbacEnabled {
		if err := s.accessCtl.CreateDefaultProjectRoles(ctx, user, p.ID); err != nil {
			return Project{}, err
		}
	}

	s.eventStore.Append(ctx, events.Event{
		Type:      events.ProjectCreated,
		CreatedBy: createdBy(user),
		Data:      map[string]any{"id": p.ID, "name": p.Name},
	})
	return p, nil
}

// UpdateProject rewrites the project's metadata.
func (s *Service) UpdateProject(ctx context.Context, p Project, user *shared.User) error {
	if _, err := s.repo.Get(ctx, p.ID); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	s.eventStore.Append(ctx, events.Event{
		Type:      events.ProjectUpdated,
		CreatedBy: createdBy(user),
		Data:      map[string]any{"id": p.ID, "name": p.Name},
	})
	return nil
}

// DeleteProject removes a project and tears down its roles. The default
// project and projects with active toggles are protected.
func (s *Service) DeleteProject(ctx context.Context, id string, user *shared.User) error {
	if id == DefaultProject {
		return ErrDefaultProjectProtected
	}

	count, err := s.toggles.ActiveCountByProject(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrProjectNotEmpty
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.eventStore.Append(ctx, events.Event{
		Type:      events.ProjectDeleted,
		CreatedBy: createdBy(user),
		Data:      map[string]any{"id": id},
	})

	if s.rbacEnabled {
		// Best effort: the project is gone, so leftover roles are
		// unreachable by any project-scoped lookup anyway.
		if err := s.accessCtl.RemoveDefaultProjectRoles(ctx, user, id); err != nil {
			s.logger.Warn("remove project roles", slog.String("projectId", id), slog.Any("error", err))
		}
	}
	return nil
}

// AccessOverview is the "who has access" view for a project.
type AccessOverview struct {
	Roles []access.Role         `json:"roles"`
	Users []access.UserWithRole `json:"users"`
}

// GetUsersWithAccess lists the project's roles and members, repairing
// missing default roles for projects created before RBAC was enabled.
func (s *Service) GetUsersWithAccess(ctx context.Context, projectID string, user *shared.User) (AccessOverview, error) {
	roles, members, err := s.accessCtl.GetProjectRoleUsers(ctx, projectID)
	if err != nil {
		return AccessOverview{}, err
	}
	if len(roles) == 0 && s.rbacEnabled {
		s.logger.Warn("creating missing roles for project", slog.String("projectId", projectID))
		if err := s.accessCtl.CreateDefaultProjectRoles(ctx, user, projectID); err != nil {
			return AccessOverview{}, err
		}
		roles, members, err = s.accessCtl.GetProjectRoleUsers(ctx, projectID)
		if err != nil {
			return AccessOverview{}, err
		}
	}
	return AccessOverview{Roles: roles, Users: members}, nil
}

// AddUser grants a user one of the project's roles.
func (s *Service) AddUser(ctx context.Context, projectID string, roleID, userID int64) error {
	roles, members, err := s.accessCtl.GetProjectRoleUsers(ctx, projectID)
	if err != nil {
		return err
	}

	role := findRole(roles, roleID)
	if role == nil {
		return fmt.Errorf("role %d does not belong to project %q: %w", roleID, projectID, shared.ErrNotFound)
	}

	for _, member := range members {
		if member.ID == userID {
			return ErrAlreadyMember
		}
	}
	return s.accessCtl.AddUserToRole(ctx, userID, role.ID)
}

// RemoveUser revokes a user's project role. Removing the last member of
// a project-admin role is rejected so no project is left without an
// administrator.
func (s *Service) RemoveUser(ctx context.Context, projectID string, roleID, userID int64) error {
	roles, err := s.accessCtl.GetRolesForProject(ctx, projectID)
	if err != nil {
		return err
	}

	role := findRole(roles, roleID)
	if role == nil {
		return fmt.Errorf("role %d does not belong to project %q: %w", roleID, projectID, shared.ErrNotFound)
	}

	if role.Type == access.RoleTypeProjectAdmin {
		admins, err := s.accessCtl.GetUsersForRole(ctx, role.ID)
		if err != nil {
			return err
		}
		if len(admins) < 2 {
			return ErrLastProjectAdmin
		}
	}
	return s.accessCtl.RemoveUserFromRole(ctx, userID, role.ID)
}

func findRole(roles []access.Role, roleID int64) *access.Role {
	for i := range roles {
		if roles[i].ID == roleID {
			return &roles[i]
		}
	}
	return nil
}

func createdBy(user *shared.User) string {
	if user == nil {
		return ""
	}
	return user.DisplayName()
}
