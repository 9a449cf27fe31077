// Package notify delivers transactional email: one-time codes, welcome
// messages and new-request alerts for the shop admin.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/gofiber/template/django/v3"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

const dialTimeout = 10 * time.Second

// SMTPConfig is the outgoing mail configuration. An empty Host switches the
// mailer to simulation: messages are logged (without bodies) and dropped.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

func (c SMTPConfig) signature() string {
	return fmt.Sprintf("%s|%d|%s|%s", c.Host, c.Port, c.User, c.Pass)
}

// Options are the non-transport settings of a Mailer.
type Options struct {
	Brand      string
	AdminEmail string
	AppBaseURL string
}

// transport is the part of *mail.Client the mailer uses.
type transport interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
	DialWithContext(ctx context.Context) error
	Close() error
}

// Mailer renders templates and sends them over SMTP. The SMTP client is
// built lazily and cached until the configuration signature changes.
type Mailer struct {
	opts   Options
	logger logging.Logger
	views  *django.Engine

	mu        sync.Mutex
	cfg       SMTPConfig
	client    transport
	signature string

	dial func(SMTPConfig) (transport, error)
}

func NewMailer(cfg SMTPConfig, opts Options, logger logging.Logger) (*Mailer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	views := django.NewFileSystem(http.FS(sub), ".html")
	if err := views.Load(); err != nil {
		return nil, fmt.Errorf("load mail templates: %w", err)
	}

	if opts.Brand == "" {
		opts.Brand = "LapLink"
	}
	if opts.AdminEmail == "" {
		opts.AdminEmail = cfg.User
	}

	return &Mailer{
		opts:   opts,
		logger: logger,
		views:  views,
		cfg:    cfg,
		dial:   dialSMTP,
	}, nil
}

func dialSMTP(cfg SMTPConfig) (transport, error) {
	opts := []mail.Option{mail.WithTimeout(dialTimeout)}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithPort(cfg.Port), mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Pass),
		)
	}
	return mail.NewClient(cfg.Host, opts...)
}

// Reconfigure swaps the SMTP settings. The cached client is rebuilt on the
// next send if the host, port or credentials changed.
func (m *Mailer) Reconfigure(cfg SMTPConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// current returns the configuration and a client matching it, or a nil
// client in simulation mode.
func (m *Mailer) current() (SMTPConfig, transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.cfg
	if cfg.Host == "" {
		return cfg, nil, nil
	}
	if sig := cfg.signature(); m.client == nil || sig != m.signature {
		c, err := m.dial(cfg)
		if err != nil {
			return cfg, nil, fmt.Errorf("smtp client: %w", err)
		}
		m.client, m.signature = c, sig
	}
	return cfg, m.client, nil
}

// Verify dials the SMTP server once. Used as a startup check.
func (m *Mailer) Verify(ctx context.Context) error {
	cfg, client, err := m.current()
	if err != nil {
		return err
	}
	if client == nil {
		return errors.New("smtp host not configured")
	}
	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("smtp dial %s: %w", cfg.Host, err)
	}
	return client.Close()
}

// SendOTP mails a one-time code. The code is never logged.
func (m *Mailer) SendOTP(ctx context.Context, to, code string, purpose models.OTPPurpose, ttl time.Duration) error {
	minutes := int(ttl.Minutes())
	html, err := m.render("otp", map[string]any{
		"brand":   m.opts.Brand,
		"purpose": purpose.Title(),
		"code":    code,
		"minutes": minutes,
	})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Your OTP for %s is %s. It expires in %d minutes.", purpose.Title(), code, minutes)
	subject := fmt.Sprintf("%s - %s OTP", m.opts.Brand, purpose.Title())
	return m.send(ctx, m.opts.Brand+" Support", to, subject, text, html)
}

// SendWelcome greets a freshly verified user.
func (m *Mailer) SendWelcome(ctx context.Context, to, name string) error {
	html, err := m.render("welcome", map[string]any{"brand": m.opts.Brand, "name": name})
	if err != nil {
		return err
	}
	return m.send(ctx, m.opts.Brand+" Team", to, "Welcome to "+m.opts.Brand+"!", "", html)
}

// NotifyAdmin alerts the admin mailbox about a new request. It is a no-op
// when no admin address is configured.
func (m *Mailer) NotifyAdmin(ctx context.Context, req *models.Request) error {
	if m.opts.AdminEmail == "" {
		return nil
	}

	label := kindLabel(req.Kind)
	owner := req.OwnerID
	if req.Owner != nil && req.Owner.Email != "" {
		owner = req.Owner.Email
	}
	html, err := m.render("admin_request", map[string]any{
		"label":    label,
		"id":       req.ID,
		"owner":    owner,
		"details":  req.Payload.Details(),
		"adminURL": strings.TrimRight(m.opts.AppBaseURL, "/") + "/admin",
	})
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("%s: New %s Request", m.opts.Brand, label)
	return m.send(ctx, m.opts.Brand+" Notifications", m.opts.AdminEmail, subject, "", html)
}

func (m *Mailer) render(name string, binding map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := m.views.Render(&buf, name, binding); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (m *Mailer) send(ctx context.Context, fromName, to, subject, text, html string) error {
	cfg, client, err := m.current()
	if err != nil {
		return err
	}
	if client == nil {
		m.logger.Info(ctx, "email simulated", "to", to, "subject", subject)
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(fromName, cfg.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("to address: %w", err)
	}
	msg.Subject(subject)
	if text != "" {
		msg.SetBodyString(mail.TypeTextPlain, text)
		msg.AddAlternativeString(mail.TypeTextHTML, html)
	} else {
		msg.SetBodyString(mail.TypeTextHTML, html)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	m.logger.Debug(ctx, "email sent", "to", to, "subject", subject)
	return nil
}

func kindLabel(k models.Kind) string {
	switch k {
	case models.KindService:
		return "Service"
	case models.KindSell:
		return "Sell"
	case models.KindBuy:
		return "Buy"
	default:
		return string(k)
	}
}
