// Package otp issues and verifies numeric one-time codes. Codes are stored
// only as bcrypt digests; the plaintext goes straight to the Sender.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/cryptox"
	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/models"
)

const (
	CodeMin = 100000
	CodeMax = 999999

	LoginTTL      = 5 * time.Minute
	LoginCooldown = 45 * time.Second
	LongTTL       = 10 * time.Minute
)

var (
	// ErrExpired is returned when no code is pending or it is past its deadline.
	ErrExpired = fmt.Errorf("%w: otp expired or invalid", common.ErrUnauthenticated)
	// ErrMismatch is returned when the candidate does not match the pending code.
	ErrMismatch = fmt.Errorf("%w: invalid otp", common.ErrUnauthenticated)
)

// Policy is the lifetime and resend cooldown of a purpose.
type Policy struct {
	TTL      time.Duration
	Cooldown time.Duration
}

// PolicyFor returns the fixed policy of purpose.
func PolicyFor(purpose models.OTPPurpose) Policy {
	if purpose == models.PurposeLogin {
		return Policy{TTL: LoginTTL, Cooldown: LoginCooldown}
	}
	return Policy{TTL: LongTTL}
}

// Store persists OTP sub-records. users.Repository satisfies it.
type Store interface {
	SetOTP(ctx context.Context, userID string, purpose models.OTPPurpose, hash string, expiresAt, now time.Time, cooldown time.Duration) error
	ConsumeOTP(ctx context.Context, userID string, purpose models.OTPPurpose, hash string, now time.Time) error
	ClearOTP(ctx context.Context, userID string, purpose models.OTPPurpose, hash string) error
}

// Sender delivers a plaintext code to its recipient.
type Sender interface {
	SendOTP(ctx context.Context, to, code string, purpose models.OTPPurpose, ttl time.Duration) error
}

type Engine struct {
	hasher   cryptox.Hasher
	sender   Sender
	logger   logging.Logger
	now      func() time.Time
	generate func() (string, error)
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithGenerator replaces the random code source.
func WithGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.generate = gen }
}

func NewEngine(hasher cryptox.Hasher, sender Sender, logger logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		hasher: hasher,
		sender: sender,
		logger: logger,
		now:    time.Now,
		generate: func() (string, error) {
			return cryptox.RandomNumber(CodeMin, CodeMax)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Issue creates a fresh code for user and purpose, overwriting any pending
// one, and sends it. A send failure rolls the stored code back and yields
// common.ErrDependency so the caller can retry.
func (e *Engine) Issue(ctx context.Context, store Store, user *models.User, purpose models.OTPPurpose) error {
	policy := PolicyFor(purpose)

	code, err := e.generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	hash, err := e.hasher.Hash(code)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	now := e.now()
	if err := store.SetOTP(ctx, user.ID, purpose, hash, now.Add(policy.TTL), now, policy.Cooldown); err != nil {
		return err
	}

	if err := e.sender.SendOTP(ctx, user.Email, code, purpose, policy.TTL); err != nil {
		if cerr := store.ClearOTP(ctx, user.ID, purpose, hash); cerr != nil {
			e.logger.Warn(ctx, "otp rollback failed", "user_id", user.ID, "purpose", purpose, "error", cerr)
		}
		return fmt.Errorf("%w: send otp: %v", common.ErrDependency, err)
	}

	e.logger.Info(ctx, "otp issued", "user_id", user.ID, "purpose", purpose)
	return nil
}

// Verify checks candidate against user's pending code for purpose and
// consumes it. user must be freshly loaded from the store.
func (e *Engine) Verify(ctx context.Context, store Store, user *models.User, purpose models.OTPPurpose, candidate string) error {
	record := user.EmailVerification
	if purpose == models.PurposePasswordReset {
		record = user.PasswordReset
	}

	now := e.now()
	if !record.Live(now) {
		return ErrExpired
	}
	if !e.hasher.Matches(record.Hash, candidate) {
		return ErrMismatch
	}

	if err := store.ConsumeOTP(ctx, user.ID, purpose, record.Hash, now); err != nil {
		// Someone consumed or replaced the code between load and update.
		if errors.Is(err, common.ErrorNotFound) {
			return ErrExpired
		}
		return err
	}
	return nil
}
