package shared

// User is the identity resolved for a request, either a logged-in person
// or an API token principal carrying its own permission claims.
type User struct {
	ID          int64
	Username    string
	Email       string
	ImageURL    string
	IsAPI       bool
	Permissions []string
}

// DisplayName prefers email over username for event attribution.
func (u User) DisplayName() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Username
}

// HasClaim reports whether the principal's own claim set carries the
// given permission. Only meaningful for API principals.
func (u User) HasClaim(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
