package feature

import "time"

// Toggle represents a feature toggle owned by a project.
type Toggle struct {
	Name        string    `json:"name"`
	Project     string    `json:"project"`
	Description string    `json:"description,omitempty"`
	Enabled     bool      `json:"enabled"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"createdAt"`
}
