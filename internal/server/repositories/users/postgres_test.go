package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{
	"id", "name", "email", "phone", "city", "password_hash", "role", "is_email_verified",
	"ev_otp_hash", "ev_expires_at", "ev_last_sent_at", "ev_verified_at",
	"pr_otp_hash", "pr_expires_at", "pr_requested_at",
	"created_at", "updated_at",
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users\s*\(id,\s*name,\s*email,.*RETURNING\s+created_at,\s*updated_at$`).
		WithArgs("u-1", "Asha", "a@x.com", nil, "Pune", "hash", "user", false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u := &models.User{ID: "u-1", Name: "Asha", Email: " A@X.com", City: "Pune", PasswordHash: "hash", Role: models.RoleUser}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, now, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.User{ID: "u-1", Email: "a@x.com", Role: models.RoleUser})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{ID: "u-1", Email: "a@x.com"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestProvision_Inserted(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users.*ON\s+CONFLICT\s+\(email\)\s+DO\s+NOTHING`).
		WithArgs("u-1", "new@x.com", "new@x.com", "ph", "user", true).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	u, created, err := repo.Provision(context.Background(), &models.User{
		ID: "u-1", Name: "new@x.com", Email: "new@x.com", PasswordHash: "ph", Role: models.RoleUser, IsEmailVerified: true,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u-1", u.ID)
}

func TestProvision_ExistingUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users.*ON\s+CONFLICT`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*name,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("old@x.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u-old", "Old", "old@x.com", nil, nil, "h", "admin", true,
			nil, nil, nil, nil, nil, nil, nil, now, now))

	u, created, err := repo.Provision(context.Background(), &models.User{ID: "u-new", Email: "old@x.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u-old", u.ID)
	assert.Equal(t, models.RoleAdmin, u.Role)
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	exp := now.Add(5 * time.Minute)
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("alice@x.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			"u-1", "Alice", "alice@x.com", "+919876543210", "Pune", "pw", "user", false,
			"otp-hash", exp, now, nil,
			nil, nil, nil,
			now, now))

	u, err := repo.GetByEmail(context.Background(), "Alice@X.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "+919876543210", u.Phone)
	assert.Equal(t, "otp-hash", u.EmailVerification.Hash)
	assert.Equal(t, exp, u.EmailVerification.ExpiresAt)
	assert.True(t, u.EmailVerification.VerifiedAt.IsZero())
	assert.Empty(t, u.PasswordReset.Hash)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+id\s*=\s*\$1$`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetRole(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`^SELECT\s+role\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))
	mock.ExpectQuery(`^SELECT\s+role\s+FROM\s+users`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	role, err := repo.GetRole(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	_, err = repo.GetRole(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSetOTP_WithCooldown_Written(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	exp := now.Add(5 * time.Minute)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+ev_otp_hash\s*=\s*\$2,\s*ev_expires_at\s*=\s*\$3,\s*ev_last_sent_at\s*=\s*\$4.*WHERE\s+id\s*=\s*\$1\s+AND\s+\(ev_last_sent_at\s+IS\s+NULL\s+OR\s+ev_last_sent_at\s*<=\s*\$5\)$`).
		WithArgs("u-1", "h", exp, now, now.Add(-45*time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetOTP(context.Background(), "u-1", models.PurposeLogin, "h", exp, now, 45*time.Second)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOTP_WithCooldown_RateLimited(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	last := now.Add(-10*time.Second - 500*time.Millisecond)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+ev_otp_hash`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`^SELECT\s+ev_last_sent_at\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"ev_last_sent_at"}).AddRow(last))

	err := repo.SetOTP(context.Background(), "u-1", models.PurposeLogin, "h", now.Add(time.Minute), now, 45*time.Second)

	var rl *common.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 35, rl.Seconds())
}

func TestSetOTP_UnknownUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+pr_otp_hash\s*=\s*\$2,\s*pr_expires_at\s*=\s*\$3,\s*pr_requested_at\s*=\s*\$4.*WHERE\s+id\s*=\s*\$1$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`^SELECT\s+pr_requested_at\s+FROM\s+users`).
		WillReturnError(sql.ErrNoRows)

	now := time.Now()
	err := repo.SetOTP(context.Background(), "ghost", models.PurposePasswordReset, "h", now.Add(time.Minute), now, 0)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSetOTP_UnknownPurpose(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	assert.Error(t, repo.SetOTP(context.Background(), "u-1", "sms", "h", now, now, 0))
}

func TestConsumeOTP(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		purpose models.OTPPurpose
		query   string
	}{
		{"registration", models.PurposeRegistration, `(?s)^UPDATE\s+users\s+SET\s+ev_otp_hash\s*=\s*NULL,\s*ev_verified_at\s*=\s*\$3,\s*is_email_verified\s*=\s*TRUE.*WHERE\s+id\s*=\s*\$1\s+AND\s+ev_otp_hash\s*=\s*\$2$`},
		{"login", models.PurposeLogin, `(?s)^UPDATE\s+users\s+SET\s+ev_otp_hash\s*=\s*NULL,\s*ev_expires_at\s*=\s*NULL,\s*ev_last_sent_at\s*=\s*NULL.*AND\s+ev_otp_hash\s*=\s*\$2$`},
		{"password reset", models.PurposePasswordReset, `(?s)^UPDATE\s+users\s+SET\s+pr_otp_hash\s*=\s*NULL.*AND\s+pr_otp_hash\s*=\s*\$2$`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(tt.query).
				WithArgs("u-1", "h", now).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectExec(tt.query).
				WithArgs("u-1", "h", now).
				WillReturnResult(sqlmock.NewResult(0, 0))

			require.NoError(t, repo.ConsumeOTP(context.Background(), "u-1", tt.purpose, "h", now))
			assert.ErrorIs(t, repo.ConsumeOTP(context.Background(), "u-1", tt.purpose, "h", now), common.ErrorNotFound)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestClearOTP(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+ev_otp_hash\s*=\s*NULL,\s*ev_expires_at\s*=\s*NULL,\s*ev_last_sent_at\s*=\s*NULL\s+WHERE\s+id\s*=\s*\$1\s+AND\s+ev_otp_hash\s*=\s*\$2$`).
		WithArgs("u-1", "h").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearOTP(context.Background(), "u-1", models.PurposeLogin, "h"))
}

func TestUpdatePasswordAndRole(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2`).
		WithArgs("u-1", "new").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+role\s*=\s*\$2`).
		WithArgs("ghost", "admin").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+role\s*=\s*\$2`).
		WithArgs("u-1", "admin").
		WillReturnError(errors.New("boom"))

	require.NoError(t, repo.UpdatePassword(context.Background(), "u-1", "new"))
	assert.ErrorIs(t, repo.SetRole(context.Background(), "ghost", models.RoleAdmin), common.ErrorNotFound)
	assert.ErrorContains(t, repo.SetRole(context.Background(), "u-1", models.RoleAdmin), "db error")
	assert.ErrorIs(t, repo.SetRole(context.Background(), "u-1", models.Role("root")), common.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}
