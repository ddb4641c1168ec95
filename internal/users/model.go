package users

import (
	"time"

	"jobboard-backend/internal/analysis"
)

// User is the profile a saved resume attaches to. Guests get a profile on first save.
type User struct {
	ID        string           `json:"id"`
	Email     string           `json:"email,omitempty"`
	Resume    *PermanentResume `json:"resume,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// PermanentResume is the durable resume on a profile. Only a save replaces it.
type PermanentResume struct {
	Path         string          `json:"path"`
	Analysis     analysis.Result `json:"analysis"`
	LastAnalyzed time.Time       `json:"lastAnalyzed"`
}
