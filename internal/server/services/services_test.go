package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/laplink/internal/cryptox"
	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/auth"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/dmitrijs2005/laplink/internal/server/otp"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeNotifier struct {
	mu      sync.Mutex
	codes   map[string]string
	ttls    map[string]time.Duration
	welcome []string
	admin   []*models.Request

	otpErr   error
	adminErr error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{codes: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (n *fakeNotifier) SendOTP(_ context.Context, to, code string, _ models.OTPPurpose, ttl time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.otpErr != nil {
		return n.otpErr
	}
	n.codes[to] = code
	n.ttls[to] = ttl
	return nil
}

func (n *fakeNotifier) SendWelcome(_ context.Context, to, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcome = append(n.welcome, to)
	return nil
}

func (n *fakeNotifier) NotifyAdmin(_ context.Context, req *models.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.adminErr != nil {
		return n.adminErr
	}
	n.admin = append(n.admin, req)
	return nil
}

func (n *fakeNotifier) code(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[to]
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	repos    *memory.InMemoryRepositoryManager
	notifier *fakeNotifier
	clock    *clock
	hasher   cryptox.Hasher
	auth     *AuthService
	requests *RequestService
}

func syncDispatcher() dispatcher {
	return dispatcher{logger: logging.Nop{}, run: func(f func()) { f() }}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repos := memory.NewInMemoryRepositoryManager()
	notifier := newFakeNotifier()
	c := &clock{t: time.Now().UTC().Truncate(time.Second)}
	hasher := cryptox.NewHasher(bcrypt.MinCost)

	issuer, err := auth.NewIssuer("access-secret", "refresh-secret", time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	engine := otp.NewEngine(hasher, notifier, logging.Nop{}, otp.WithClock(c.now))

	authSvc := NewAuthService(nil, repos.WithTx, repos, engine, issuer, hasher, notifier, logging.Nop{})
	authSvc.async = syncDispatcher()
	reqSvc := NewRequestService(nil, repos, notifier, logging.Nop{})
	reqSvc.async = syncDispatcher()

	return &fixture{
		repos:    repos,
		notifier: notifier,
		clock:    c,
		hasher:   hasher,
		auth:     authSvc,
		requests: reqSvc,
	}
}

// addUser stores a verified user directly.
func (f *fixture) addUser(t *testing.T, id, email, password string, role models.Role) *models.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	u, err := f.repos.Users(nil).Create(context.Background(), &models.User{
		ID: id, Name: "User " + id, Email: email, Phone: "+919800000000", PasswordHash: hash, Role: role, IsEmailVerified: true,
	})
	require.NoError(t, err)
	return u
}

// wrongCode returns a six-digit code different from code.
func wrongCode(code string) string {
	if code == "999999" {
		return "100000"
	}
	return "999999"
}

var errSMTPDown = errors.New("smtp down")

func identity(u *models.User) auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}
