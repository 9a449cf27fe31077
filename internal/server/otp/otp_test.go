package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/cryptox"
	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/memory"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type captureSender struct {
	mu    sync.Mutex
	codes []string
	ttl   time.Duration
	err   error
}

func (s *captureSender) SendOTP(_ context.Context, _, code string, _ models.OTPPurpose, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.codes = append(s.codes, code)
	s.ttl = ttl
	return nil
}

func (s *captureSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[len(s.codes)-1]
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T) (*Engine, users.Repository, *captureSender, *clock, *models.User) {
	t.Helper()
	store := memory.NewInMemoryRepositoryManager().Users(nil)
	u, err := store.Create(context.Background(), &models.User{ID: "u-1", Email: "a@x.com", Role: models.RoleUser})
	require.NoError(t, err)

	sender := &captureSender{}
	c := &clock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	e := NewEngine(cryptox.NewHasher(bcrypt.MinCost), sender, logging.Nop{}, WithClock(c.now))
	return e, store, sender, c, u
}

func reload(t *testing.T, store users.Repository) *models.User {
	t.Helper()
	u, err := store.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	return u
}

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, Policy{TTL: 5 * time.Minute, Cooldown: 45 * time.Second}, PolicyFor(models.PurposeLogin))
	assert.Equal(t, Policy{TTL: 10 * time.Minute}, PolicyFor(models.PurposeRegistration))
	assert.Equal(t, Policy{TTL: 10 * time.Minute}, PolicyFor(models.PurposePasswordReset))
}

func TestIssue_StoresHashNotCode(t *testing.T) {
	e, store, sender, c, u := setup(t)
	ctx := context.Background()

	require.NoError(t, e.Issue(ctx, store, u, models.PurposeRegistration))

	code := sender.last()
	assert.Len(t, code, 6)
	assert.Equal(t, 10*time.Minute, sender.ttl)

	got := reload(t, store)
	assert.NotEmpty(t, got.EmailVerification.Hash)
	assert.NotEqual(t, code, got.EmailVerification.Hash)
	assert.Equal(t, c.t.Add(10*time.Minute), got.EmailVerification.ExpiresAt)
	assert.Equal(t, c.t, got.EmailVerification.SentAt)
}

func TestVerify_SucceedsExactlyOnce(t *testing.T) {
	purposes := []models.OTPPurpose{models.PurposeLogin, models.PurposeRegistration, models.PurposePasswordReset}

	for _, purpose := range purposes {
		t.Run(string(purpose), func(t *testing.T) {
			e, store, sender, _, u := setup(t)
			ctx := context.Background()

			require.NoError(t, e.Issue(ctx, store, u, purpose))
			code := sender.last()

			require.NoError(t, e.Verify(ctx, store, reload(t, store), purpose, code))

			err := e.Verify(ctx, store, reload(t, store), purpose, code)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrUnauthenticated)
		})
	}
}

func TestVerify_StaleSnapshotCannotReuse(t *testing.T) {
	e, store, sender, _, u := setup(t)
	ctx := context.Background()

	require.NoError(t, e.Issue(ctx, store, u, models.PurposeLogin))
	snapshot := reload(t, store)

	require.NoError(t, e.Verify(ctx, store, snapshot, models.PurposeLogin, sender.last()))
	assert.ErrorIs(t, e.Verify(ctx, store, snapshot, models.PurposeLogin, sender.last()), ErrExpired)
}

func TestVerify_Mismatch(t *testing.T) {
	e, store, sender, _, u := setup(t)
	ctx := context.Background()

	require.NoError(t, e.Issue(ctx, store, u, models.PurposeRegistration))
	wrong := "000000"
	if sender.last() == wrong {
		wrong = "111111"
	}

	err := e.Verify(ctx, store, reload(t, store), models.PurposeRegistration, wrong)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	assert.NoError(t, e.Verify(ctx, store, reload(t, store), models.PurposeRegistration, sender.last()))
}

func TestVerify_AfterExpiry(t *testing.T) {
	e, store, sender, c, u := setup(t)
	ctx := context.Background()

	require.NoError(t, e.Issue(ctx, store, u, models.PurposeLogin))
	c.advance(5*time.Minute + time.Second)

	err := e.Verify(ctx, store, reload(t, store), models.PurposeLogin, sender.last())
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestVerify_NothingPending(t *testing.T) {
	e, store, _, _, _ := setup(t)

	err := e.Verify(context.Background(), store, reload(t, store), models.PurposePasswordReset, "123456")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestIssue_LoginCooldown(t *testing.T) {
	e, store, _, c, u := setup(t)
	ctx := context.Background()

	require.NoError(t, e.Issue(ctx, store, u, models.PurposeLogin))

	c.advance(30 * time.Second)
	err := e.Issue(ctx, store, u, models.PurposeLogin)
	var rl *common.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 15, rl.Seconds())

	c.advance(15 * time.Second)
	require.NoError(t, e.Issue(ctx, store, u, models.PurposeLogin))
}

func TestIssue_RegistrationHasNoCooldown(t *testing.T) {
	e, store, sender, _, u := setup(t)
	ctx := context.Background()

	require.NoError(t, e.Issue(ctx, store, u, models.PurposeRegistration))
	first := sender.last()
	require.NoError(t, e.Issue(ctx, store, u, models.PurposeRegistration))

	if first != sender.last() {
		assert.ErrorIs(t, e.Verify(ctx, store, reload(t, store), models.PurposeRegistration, first), ErrMismatch,
			"a new send supersedes the previous code")
	}
}

func TestIssue_SendFailureRollsBack(t *testing.T) {
	e, store, sender, _, u := setup(t)
	ctx := context.Background()
	sender.err = errors.New("smtp down")

	err := e.Issue(ctx, store, u, models.PurposeLogin)
	assert.ErrorIs(t, err, common.ErrDependency)

	got := reload(t, store)
	assert.Empty(t, got.EmailVerification.Hash)
	assert.True(t, got.EmailVerification.SentAt.IsZero(), "a failed send does not start the cooldown")

	sender.err = nil
	assert.NoError(t, e.Issue(ctx, store, u, models.PurposeLogin))
}

func TestIssue_UnknownUser(t *testing.T) {
	e, store, _, _, _ := setup(t)

	err := e.Issue(context.Background(), store, &models.User{ID: "ghost"}, models.PurposePasswordReset)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestIssue_GeneratorFailure(t *testing.T) {
	store := memory.NewInMemoryRepositoryManager().Users(nil)
	e := NewEngine(cryptox.NewHasher(bcrypt.MinCost), &captureSender{}, logging.Nop{},
		WithGenerator(func() (string, error) { return "", errors.New("no entropy") }))

	err := e.Issue(context.Background(), store, &models.User{ID: "u-1"}, models.PurposeLogin)
	assert.ErrorContains(t, err, "no entropy")
}
