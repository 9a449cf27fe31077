// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// OTPRecord is the stored state of a one-time code for a single purpose.
// Zero times mean "unset". Hash is a bcrypt digest, never the code itself.
type OTPRecord struct {
	Hash      string
	ExpiresAt time.Time
	// SentAt is lastSentAt for email verification and requestedAt for
	// password reset.
	SentAt     time.Time
	VerifiedAt time.Time
}

// Live reports whether the record holds a code that has not expired at now.
func (o OTPRecord) Live(now time.Time) bool {
	return o.Hash != "" && !o.ExpiresAt.IsZero() && !now.After(o.ExpiresAt)
}

type User struct {
	ID                string
	Name              string
	Email             string
	Phone             string
	City              string
	PasswordHash      string
	Role              Role
	IsEmailVerified   bool
	EmailVerification OTPRecord
	PasswordReset     OTPRecord
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
