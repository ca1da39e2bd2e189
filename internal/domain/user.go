package domain

import (
	"time"
)

// User represents a registered account in the system.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Enabled      bool      `json:"enabled"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionToken is a server-side session row. The JWT handed to clients
// carries only the session ID; revocation flips Enabled here.
type SessionToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Code purposes for one-time codes.
const (
	CodePurposeVerify = "verify"
	CodePurposeReset  = "reset"
)

// OneTimeCode is a stored single-use code for email verification or
// password reset. Only the bcrypt hash of the code is persisted.
type OneTimeCode struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Purpose   string    `json:"purpose"`
	CodeHash  string    `json:"-"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the code's validity window has passed.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Expired reports whether the session's validity window has passed.
func (s *SessionToken) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
