package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type fakeTransport struct {
	sent    []*mail.Msg
	sendErr error
	dialErr error
	closed  int
}

func (f *fakeTransport) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msgs...)
	return nil
}

func (f *fakeTransport) DialWithContext(context.Context) error { return f.dialErr }

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

func newTestMailer(t *testing.T, cfg SMTPConfig, opts Options) (*Mailer, *fakeTransport, *int) {
	t.Helper()
	m, err := NewMailer(cfg, opts, logging.Nop{})
	require.NoError(t, err)

	ft := &fakeTransport{}
	dials := 0
	m.dial = func(SMTPConfig) (transport, error) {
		dials++
		return ft, nil
	}
	return m, ft, &dials
}

func smtpConfig() SMTPConfig {
	return SMTPConfig{Host: "smtp.example.com", Port: 587, User: "shop@example.com", Pass: "secret", From: "shop@example.com"}
}

func body(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestMailer_SendOTP(t *testing.T) {
	m, ft, _ := newTestMailer(t, smtpConfig(), Options{})

	err := m.SendOTP(context.Background(), "user@example.com", "482913", models.PurposeLogin, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, ft.sent, 1)

	msg := ft.sent[0]
	assert.Equal(t, []string{"LapLink - Login OTP"}, msg.GetGenHeader(mail.HeaderSubject))
	out := body(t, msg)
	assert.Contains(t, out, "482913")
	assert.Contains(t, out, "user@example.com")
}

func TestMailer_SimulatedWhenHostEmpty(t *testing.T) {
	cfg := smtpConfig()
	cfg.Host = ""
	m, ft, dials := newTestMailer(t, cfg, Options{})

	require.NoError(t, m.SendWelcome(context.Background(), "user@example.com", "Asha"))
	assert.Empty(t, ft.sent)
	assert.Zero(t, *dials)
}

func TestMailer_ClientCachedUntilConfigChanges(t *testing.T) {
	m, ft, dials := newTestMailer(t, smtpConfig(), Options{})
	ctx := context.Background()

	require.NoError(t, m.SendWelcome(ctx, "a@example.com", "A"))
	require.NoError(t, m.SendWelcome(ctx, "b@example.com", "B"))
	assert.Equal(t, 1, *dials)

	m.Reconfigure(smtpConfig())
	require.NoError(t, m.SendWelcome(ctx, "c@example.com", "C"))
	assert.Equal(t, 1, *dials)

	changed := smtpConfig()
	changed.Pass = "rotated"
	m.Reconfigure(changed)
	require.NoError(t, m.SendWelcome(ctx, "d@example.com", "D"))
	assert.Equal(t, 2, *dials)
	assert.Len(t, ft.sent, 4)
}

func TestMailer_SendFailure(t *testing.T) {
	m, ft, _ := newTestMailer(t, smtpConfig(), Options{})
	ft.sendErr = errors.New("connection refused")

	err := m.SendOTP(context.Background(), "user@example.com", "111111", models.PurposeRegistration, 10*time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMailer_NotifyAdmin(t *testing.T) {
	m, ft, _ := newTestMailer(t, smtpConfig(), Options{AdminEmail: "admin@example.com", AppBaseURL: "https://laplink.example/"})

	req := &models.Request{
		ID:      "req-1",
		OwnerID: "user-1",
		Kind:    models.KindSell,
		Payload: &models.SellPayload{Name: "Ravi", Phone: "+919876543210", City: "Pune", LaptopSpec: models.LaptopSpec{Brand: "Dell"}},
		Owner:   &models.Owner{Email: "ravi@example.com"},
	}
	require.NoError(t, m.NotifyAdmin(context.Background(), req))
	require.Len(t, ft.sent, 1)

	msg := ft.sent[0]
	assert.Equal(t, []string{"LapLink: New Sell Request"}, msg.GetGenHeader(mail.HeaderSubject))
	out := body(t, msg)
	assert.Contains(t, out, "admin@example.com")
	assert.Contains(t, out, "Dell")
	assert.Contains(t, out, "https://laplink.example/admin")
}

func TestMailer_NotifyAdminWithoutAddress(t *testing.T) {
	cfg := smtpConfig()
	cfg.User = ""
	m, ft, _ := newTestMailer(t, cfg, Options{})

	req := &models.Request{ID: "r", Kind: models.KindService, Payload: &models.ServicePayload{}}
	require.NoError(t, m.NotifyAdmin(context.Background(), req))
	assert.Empty(t, ft.sent)
}

func TestMailer_Verify(t *testing.T) {
	m, ft, _ := newTestMailer(t, smtpConfig(), Options{})
	require.NoError(t, m.Verify(context.Background()))
	assert.Equal(t, 1, ft.closed)

	ft.dialErr = errors.New("timeout")
	assert.Error(t, m.Verify(context.Background()))

	cfg := smtpConfig()
	cfg.Host = ""
	m.Reconfigure(cfg)
	assert.Error(t, m.Verify(context.Background()))
}
