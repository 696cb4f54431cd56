package domain

import "time"

// Authentication strategies a user can originate from.
const (
	ProviderLocal  = "local"
	ProviderGitHub = "github"
	ProviderGoogle = "google"
)

// User is an account allowed past the auth gate
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Password   string    `json:"-"` // bcrypt hash, empty for OAuth users
	Provider   string    `json:"provider"`
	ProviderID string    `json:"provider_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Principal is the authenticated identity carried by a session
type Principal struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Provider string `json:"provider"`
}
