package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/dbx"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, phone, city, password_hash, role, is_email_verified,
		ev_otp_hash, ev_expires_at, ev_last_sent_at, ev_verified_at,
		pr_otp_hash, pr_expires_at, pr_requested_at,
		created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, name, email, phone, city, password_hash, role, is_email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, nullString(user.Phone), nullString(user.City),
		user.PasswordHash, string(user.Role), user.IsEmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Provision(ctx context.Context, user *models.User) (*models.User, bool, error) {
	query :=
		`INSERT INTO users (id, name, email, password_hash, role, is_email_verified)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING created_at, updated_at`

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, string(user.Role), user.IsEmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	switch {
	case err == nil:
		return user, true, nil
	case errors.Is(err, sql.ErrNoRows):
		existing, err := r.GetByEmail(ctx, user.Email)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	default:
		return nil, false, fmt.Errorf("db error: %w", err)
	}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *PostgresRepository) GetRole(ctx context.Context, id string) (models.Role, error) {
	query := `SELECT role FROM users WHERE id = $1`

	var role string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return models.Role(role), nil
}

func (r *PostgresRepository) SetOTP(ctx context.Context, userID string, purpose models.OTPPurpose, hash string, expiresAt, now time.Time, cooldown time.Duration) error {
	cols, err := otpColumnsFor(purpose)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE users SET %s = $2, %s = $3, %s = $4, updated_at = $4
		 WHERE id = $1`, cols.hash, cols.expires, cols.sent)
	args := []any{userID, hash, expiresAt, now}

	if cooldown > 0 {
		query += fmt.Sprintf(` AND (%s IS NULL OR %s <= $5)`, cols.sent, cols.sent)
		args = append(args, now.Add(-cooldown))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing updated: either the user is gone or the cooldown guard held.
	var lastSent sql.NullTime
	err = r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, cols.sent), userID).Scan(&lastSent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	wait := time.Duration(0)
	if lastSent.Valid {
		wait = lastSent.Time.Add(cooldown).Sub(now)
	}
	return &common.RateLimitedError{RetryAfter: wait}
}

func (r *PostgresRepository) ConsumeOTP(ctx context.Context, userID string, purpose models.OTPPurpose, hash string, now time.Time) error {
	var query string
	switch purpose {
	case models.PurposeRegistration:
		query = `UPDATE users SET ev_otp_hash = NULL, ev_verified_at = $3, is_email_verified = TRUE, updated_at = $3
		 WHERE id = $1 AND ev_otp_hash = $2`
	case models.PurposeLogin:
		query = `UPDATE users SET ev_otp_hash = NULL, ev_expires_at = NULL, ev_last_sent_at = NULL,
		 is_email_verified = TRUE, updated_at = $3
		 WHERE id = $1 AND ev_otp_hash = $2`
	case models.PurposePasswordReset:
		query = `UPDATE users SET pr_otp_hash = NULL, pr_expires_at = NULL, pr_requested_at = NULL, updated_at = $3
		 WHERE id = $1 AND pr_otp_hash = $2`
	default:
		return fmt.Errorf("unknown otp purpose %q", purpose)
	}

	return r.execOne(ctx, query, userID, hash, now)
}

func (r *PostgresRepository) ClearOTP(ctx context.Context, userID string, purpose models.OTPPurpose, hash string) error {
	cols, err := otpColumnsFor(purpose)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE users SET %s = NULL, %s = NULL, %s = NULL WHERE id = $1 AND %s = $2`,
		cols.hash, cols.expires, cols.sent, cols.hash)

	if _, err := r.db.ExecContext(ctx, query, userID, hash); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, userID, passwordHash)
}

func (r *PostgresRepository) SetRole(ctx context.Context, userID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", common.ErrValidation, role)
	}
	query := `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`
	return r.execOne(ctx, query, userID, string(role))
}

// execOne runs an UPDATE expected to touch exactly one row.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

type otpColumns struct {
	hash, expires, sent string
}

// Login and registration codes share the email-verification sub-record.
func otpColumnsFor(purpose models.OTPPurpose) (otpColumns, error) {
	switch purpose {
	case models.PurposeLogin, models.PurposeRegistration:
		return otpColumns{"ev_otp_hash", "ev_expires_at", "ev_last_sent_at"}, nil
	case models.PurposePasswordReset:
		return otpColumns{"pr_otp_hash", "pr_expires_at", "pr_requested_at"}, nil
	default:
		return otpColumns{}, fmt.Errorf("unknown otp purpose %q", purpose)
	}
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                           models.User
		role                        string
		phone, city, evHash, prHash sql.NullString
		evExp, evSent, evVerified   sql.NullTime
		prExp, prRequested          sql.NullTime
	)

	err := row.Scan(&u.ID, &u.Name, &u.Email, &phone, &city, &u.PasswordHash, &role, &u.IsEmailVerified,
		&evHash, &evExp, &evSent, &evVerified,
		&prHash, &prExp, &prRequested,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	u.Role = models.Role(role)
	u.Phone = phone.String
	u.City = city.String
	u.EmailVerification = models.OTPRecord{
		Hash:       evHash.String,
		ExpiresAt:  evExp.Time,
		SentAt:     evSent.Time,
		VerifiedAt: evVerified.Time,
	}
	u.PasswordReset = models.OTPRecord{
		Hash:      prHash.String,
		ExpiresAt: prExp.Time,
		SentAt:    prRequested.Time,
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
