package access

import (
	"context"
	"time"

	"github.com/beaconhq/beacon/internal/shared"
)

// Role kinds. Root roles apply instance-wide; project roles are created
// per project and removed with it.
const (
	RoleTypeRoot           = "root"
	RoleTypeProjectAdmin   = "project-admin"
	RoleTypeProjectRegular = "project-regular"
)

// Built-in root role names seeded at bootstrap.
const (
	RoleAdmin   = "Admin"
	RoleRegular = "Regular"
	RoleRead    = "Read"
)

// Role represents a named permission grouping, optionally scoped to a project.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Project     string    `json:"project,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// GrantedPermission is a single grant row reachable from a role. An empty
// Project means the grant has no project restriction.
type GrantedPermission struct {
	Project    string `json:"project,omitempty"`
	Permission string `json:"permission"`
}

// UserSummary is a display-ready user record hydrated from the user directory.
type UserSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// UserWithRole tags a user with the role that gives them project access.
type UserWithRole struct {
	UserSummary
	RoleID int64 `json:"roleId"`
}

// RoleData aggregates a role with its grants and members.
type RoleData struct {
	Role        Role                `json:"role"`
	Permissions []GrantedPermission `json:"permissions"`
	Users       []UserSummary       `json:"users"`
}

// UserDirectory hydrates role membership into display-ready user records.
type UserDirectory interface {
	GetAllWithID(ctx context.Context, ids []int64) ([]UserSummary, error)
}

// ProjectIDResolver resolves the owning project for a feature toggle. The
// gate needs it because feature routes carry a feature name, not a
// project id.
type ProjectIDResolver interface {
	GetProjectID(ctx context.Context, featureName string) (string, error)
}

// User aliases the request identity type consumed by the core.
type User = shared.User
