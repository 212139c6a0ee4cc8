package access

// Permission identifiers. These are referenced by name in role grants and
// are never persisted as entities themselves.
const (
	PermAdmin  = "ADMIN"
	PermClient = "CLIENT"

	PermCreateFeature = "CREATE_FEATURE"
	PermUpdateFeature = "UPDATE_FEATURE"
	PermDeleteFeature = "DELETE_FEATURE"

	PermCreateProject = "CREATE_PROJECT"
	PermUpdateProject = "UPDATE_PROJECT"
	PermDeleteProject = "DELETE_PROJECT"

	PermCreateStrategy = "CREATE_STRATEGY"
	PermUpdateStrategy = "UPDATE_STRATEGY"
	PermDeleteStrategy = "DELETE_STRATEGY"

	PermCreateAddon = "CREATE_ADDON"
	PermUpdateAddon = "UPDATE_ADDON"
	PermDeleteAddon = "DELETE_ADDON"

	PermCreateContextField = "CREATE_CONTEXT_FIELD"
	PermUpdateContextField = "UPDATE_CONTEXT_FIELD"
	PermDeleteContextField = "DELETE_CONTEXT_FIELD"

	PermCreateAPIToken = "CREATE_API_TOKEN"
	PermDeleteAPIToken = "DELETE_API_TOKEN"

	PermUpdateApplication = "UPDATE_APPLICATION"

	PermReadRole   = "READ_ROLE"
	PermUpdateRole = "UPDATE_ROLE"
)

// AllProjects is the wildcard grant value matching every project. In
// resolution it is equivalent to an unset project restriction.
const AllProjects = "*"

// PermissionType classifies catalog entries by scope.
type PermissionType string

const (
	// PermissionRoot applies instance-wide, independent of any project.
	PermissionRoot PermissionType = "root"
	// PermissionProject is meaningful only within a specific project.
	PermissionProject PermissionType = "project"
)

// CatalogPermission is a catalog entry pairing a permission name with its scope.
type CatalogPermission struct {
	Name string         `json:"name"`
	Type PermissionType `json:"type"`
}

// ProjectAdminPermissions is the full grant set for a project admin role.
var ProjectAdminPermissions = []string{
	PermUpdateProject,
	PermDeleteProject,
	PermCreateFeature,
	PermUpdateFeature,
	PermDeleteFeature,
}

// ProjectRegularPermissions is the grant set for a project contributor role.
var ProjectRegularPermissions = []string{
	PermCreateFeature,
	PermUpdateFeature,
	PermDeleteFeature,
}

var allPermissions = []string{
	PermAdmin,
	PermClient,
	PermCreateFeature,
	PermUpdateFeature,
	PermDeleteFeature,
	PermCreateProject,
	PermUpdateProject,
	PermDeleteProject,
	PermCreateStrategy,
	PermUpdateStrategy,
	PermDeleteStrategy,
	PermCreateAddon,
	PermUpdateAddon,
	PermDeleteAddon,
	PermCreateContextField,
	PermUpdateContextField,
	PermDeleteContextField,
	PermCreateAPIToken,
	PermDeleteAPIToken,
	PermUpdateApplication,
	PermReadRole,
	PermUpdateRole,
}

// IsProjectPermission reports whether the permission is project-scoped.
// Everything outside the project admin set is root-scoped.
func IsProjectPermission(permission string) bool {
	for _, p := range ProjectAdminPermissions {
		if p == permission {
			return true
		}
	}
	return false
}

// KnownPermission reports whether the name exists in the catalog.
func KnownPermission(permission string) bool {
	for _, p := range allPermissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Catalog returns the ordered permission catalog built from the fixed
// identifier set at process start.
func Catalog() []CatalogPermission {
	catalog := make([]CatalogPermission, 0, len(allPermissions))
	for _, name := range allPermissions {
		entry := CatalogPermission{Name: name, Type: PermissionRoot}
		if IsProjectPermission(name) {
			entry.Type = PermissionProject
		}
		catalog = append(catalog, entry)
	}
	return catalog
}
