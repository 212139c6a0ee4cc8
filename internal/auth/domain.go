package auth

import "time"

// Account represents a login-capable user account.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// APIToken is a service principal carrying its own permission claims.
type APIToken struct {
	Secret      string
	Username    string
	Permissions []string
	ExpiresAt   time.Time
}

// Expired reports whether the token is past its expiry, if any.
func (t APIToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
