package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/server/models"
)

type userRepo struct {
	m *InMemoryRepositoryManager
}

func (r *userRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, ok := r.m.emails[user.Email]; ok {
		return nil, common.ErrAlreadyExists
	}
	r.insertLocked(user)
	return user, nil
}

func (r *userRepo) Provision(_ context.Context, user *models.User) (*models.User, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if id, ok := r.m.emails[user.Email]; ok {
		u := r.m.users[id]
		return &u, false, nil
	}
	r.insertLocked(user)
	return user, true, nil
}

func (r *userRepo) insertLocked(user *models.User) {
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.m.users[user.ID] = *user
	r.m.emails[user.Email] = user.ID
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	id, ok := r.m.emails[strings.ToLower(strings.TrimSpace(email))]
	r.m.mu.Unlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *userRepo) GetRole(ctx context.Context, id string) (models.Role, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

func (r *userRepo) SetOTP(_ context.Context, userID string, purpose models.OTPPurpose, hash string, expiresAt, now time.Time, cooldown time.Duration) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	rec, err := record(&u, purpose)
	if err != nil {
		return err
	}
	if cooldown > 0 && !rec.SentAt.IsZero() && rec.SentAt.After(now.Add(-cooldown)) {
		return &common.RateLimitedError{RetryAfter: rec.SentAt.Add(cooldown).Sub(now)}
	}

	rec.Hash, rec.ExpiresAt, rec.SentAt = hash, expiresAt, now
	u.UpdatedAt = now
	r.m.users[userID] = u
	return nil
}

func (r *userRepo) ConsumeOTP(_ context.Context, userID string, purpose models.OTPPurpose, hash string, now time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	rec, err := record(&u, purpose)
	if err != nil {
		return err
	}
	if rec.Hash == "" || rec.Hash != hash {
		return common.ErrorNotFound
	}

	switch purpose {
	case models.PurposeRegistration:
		rec.Hash = ""
		rec.VerifiedAt = now
		u.IsEmailVerified = true
	case models.PurposeLogin:
		rec.Hash, rec.ExpiresAt, rec.SentAt = "", time.Time{}, time.Time{}
		u.IsEmailVerified = true
	default:
		*rec = models.OTPRecord{}
	}
	u.UpdatedAt = now
	r.m.users[userID] = u
	return nil
}

func (r *userRepo) ClearOTP(_ context.Context, userID string, purpose models.OTPPurpose, hash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[userID]
	if !ok {
		return nil
	}
	rec, err := record(&u, purpose)
	if err != nil {
		return err
	}
	if rec.Hash == hash {
		rec.Hash, rec.ExpiresAt, rec.SentAt = "", time.Time{}, time.Time{}
		r.m.users[userID] = u
	}
	return nil
}

func (r *userRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	return r.update(userID, func(u *models.User) { u.PasswordHash = passwordHash })
}

func (r *userRepo) SetRole(_ context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}
	return r.update(userID, func(u *models.User) { u.Role = role })
}

func (r *userRepo) update(userID string, fn func(*models.User)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	r.m.users[userID] = u
	return nil
}

func record(u *models.User, purpose models.OTPPurpose) (*models.OTPRecord, error) {
	switch purpose {
	case models.PurposeLogin, models.PurposeRegistration:
		return &u.EmailVerification, nil
	case models.PurposePasswordReset:
		return &u.PasswordReset, nil
	default:
		return nil, fmt.Errorf("unknown otp purpose %q", purpose)
	}
}
