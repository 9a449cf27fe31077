// Package users is the credential store: user rows together with their
// email-verification and password-reset OTP sub-records.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/laplink/internal/server/models"
)

type Repository interface {
	// Create inserts a new user. A duplicate email yields common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Provision inserts user unless the email is taken and returns the stored
	// row either way. created reports whether the insert happened.
	Provision(ctx context.Context, user *models.User) (u *models.User, created bool, err error)

	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetRole(ctx context.Context, id string) (models.Role, error)

	// SetOTP overwrites the sub-record for purpose in a single statement. With
	// a positive cooldown the write only happens when the previous send is at
	// least cooldown old, otherwise *common.RateLimitedError is returned.
	SetOTP(ctx context.Context, userID string, purpose models.OTPPurpose, hash string, expiresAt, now time.Time, cooldown time.Duration) error
	// ConsumeOTP clears the sub-record only if it still holds hash, so a code
	// is accepted at most once. Returns common.ErrorNotFound otherwise.
	ConsumeOTP(ctx context.Context, userID string, purpose models.OTPPurpose, hash string, now time.Time) error
	// ClearOTP drops the sub-record, send time included, if it still holds hash.
	ClearOTP(ctx context.Context, userID string, purpose models.OTPPurpose, hash string) error

	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	// SetRole fails with common.ErrValidation for a role outside models.Role's set.
	SetRole(ctx context.Context, userID string, role models.Role) error
}
