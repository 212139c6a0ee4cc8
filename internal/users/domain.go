package users

import "time"

// User represents a user account.
type User struct {
	ID        int64
	Username  string
	Email     string
	Name      string
	ImageURL  string
	IsActive  bool
	CreatedAt time.Time
}
