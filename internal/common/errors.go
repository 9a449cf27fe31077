// Package common defines shared constants and sentinel errors used across
// the LapLink server layers. Callers should use errors.Is (or errors.As for
// RateLimitedError) to match these values.
package common

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")
	ErrValidation = errors.New("validation error")
	ErrDependency = errors.New("dependency unavailable")

	// Authentication errors. ErrInvalidToken and ErrTokenExpired both wrap
	// ErrUnauthenticated so transport layers can treat them as one category.
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", ErrUnauthenticated)
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Authorization errors.
	ErrForbidden        = errors.New("forbidden")
	ErrEmailNotVerified = fmt.Errorf("%w: email not verified", ErrForbidden)
)

// RateLimitedError reports that an operation was attempted inside its
// cooldown window. RetryAfter is the remaining wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many requests, retry in %ds", e.Seconds())
}

// Seconds returns RetryAfter rounded up to whole seconds, never less than 1.
func (e *RateLimitedError) Seconds() int {
	s := int(math.Ceil(e.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
