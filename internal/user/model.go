// File: internal/user/model.go
package user

import (
	"strings"
	"time"
)

// Auth providers recognized at login.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// Profile represents one user record in the profile store. uid, email,
// provider and createdAt are immutable after creation; username changes only
// through the uniqueness-checked path.
type Profile struct {
	UID          string     `json:"uid"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	Name         string     `json:"name"`
	PhotoURL     string     `json:"photoURL"`
	Provider     string     `json:"provider"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    time.Time  `json:"lastLogin"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	ProfileViews int64      `json:"profileViews"`
}

// NormalizeUsername lowercases a username and strips all spaces. This is the
// form stored and compared everywhere.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.ReplaceAll(username, " ", ""))
}

// --- DTOs (Data Transfer Objects) for API requests ---

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Provider    string `json:"provider" binding:"required,oneof=email google"`
	DisplayName string `json:"displayName" binding:"omitempty,max=100"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=100"`
	PhotoURL string `json:"photoURL" binding:"omitempty,url"`
}

// CheckUsernameRequest is the body of POST /auth/check-username.
type CheckUsernameRequest struct {
	Username string `json:"username" binding:"required"`
}
