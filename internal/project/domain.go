package project

import "time"

// Project groups feature toggles under a single access scope.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DefaultProject is the built-in project that can never be deleted.
const DefaultProject = "default"
