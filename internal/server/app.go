// Package server wires configuration, storage, services and the HTTP
// surface together and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/laplink/internal/cryptox"
	"github.com/dmitrijs2005/laplink/internal/dbx"
	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/auth"
	"github.com/dmitrijs2005/laplink/internal/server/config"
	"github.com/dmitrijs2005/laplink/internal/server/httpapi"
	"github.com/dmitrijs2005/laplink/internal/server/notify"
	"github.com/dmitrijs2005/laplink/internal/server/otp"
	"github.com/dmitrijs2005/laplink/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/laplink/internal/server/services"
	"github.com/dmitrijs2005/laplink/internal/server/storage"
)

const (
	startupTimeout   = 15 * time.Second
	smtpCheckTimeout = 10 * time.Second
)

// loadConfig is a seam for config.LoadConfig.
var loadConfig = config.LoadConfig

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	mailer *notify.Mailer
	http   *httpapi.HTTPServer
}

// NewApp connects to the database, applies migrations and builds the
// services. Any failure here is fatal for the process.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(os.Stdout, logging.Options{
		Backend:    c.LogBackend,
		Format:     c.LogFormat,
		Production: c.IsProduction(),
	})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	mailer, err := notify.NewMailer(smtpConfig(c), notify.Options{
		AdminEmail: c.AdminEmail,
		AppBaseURL: c.AppBaseURL,
	}, logger.With("module", "mailer"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mailer init error: %w", err)
	}

	issuer, err := auth.NewIssuer(c.AccessSecret, c.RefreshSecret, c.AccessTokenTTL, c.RefreshTokenTTL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("token issuer init error: %w", err)
	}

	hasher := cryptox.NewHasher(0)
	engine := otp.NewEngine(hasher, mailer, logger.With("module", "otp"))

	as := services.NewAuthService(db, dbx.SQLTxRunner(db), rm, engine, issuer, hasher, mailer, logger.With("module", "auth"))
	rs := services.NewRequestService(db, rm, mailer, logger.With("module", "requests"))
	uploads := storage.NewPresigner(storage.S3Config{
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})

	srv := httpapi.NewHTTPServer(c.HTTPAddr, logger, as, rs, uploads, httpapi.Options{
		CORSAllowedOrigins: c.CORSAllowedOrigins,
		RateLimitRPM:       c.RateLimitRPM,
		Environment:        c.Environment,
	})

	return &App{config: c, logger: logger, db: db, mailer: mailer, http: srv}, nil
}

func smtpConfig(c *config.Config) notify.SMTPConfig {
	return notify.SMTPConfig{
		Host: c.SMTPHost,
		Port: c.SMTPPort,
		User: c.SMTPUser,
		Pass: c.SMTPPass,
		From: c.SMTPFrom,
	}
}

// initSignalHandler cancels on SIGINT/SIGTERM/SIGQUIT and reloads the
// mail settings on SIGHUP.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)

	go func() {
		for sig := range sigs {
			if sig == syscall.SIGHUP {
				app.reloadMail(ctx)
				continue
			}
			cancelFunc()
			return
		}
	}()
}

// reloadMail re-reads the configuration and hands the SMTP part to the
// mailer, which rebuilds its client on the next send if anything changed.
func (app *App) reloadMail(ctx context.Context) {
	c, err := loadConfig(os.Args[1:])
	if err != nil {
		app.logger.Warn(ctx, "config reload failed", "error", err)
		return
	}
	app.mailer.Reconfigure(smtpConfig(c))
	app.logger.Info(ctx, "mail settings reloaded", "smtp_host", c.SMTPHost)
	app.checkSMTP(ctx, c.SMTPHost)
}

// checkSMTP reports mail connectivity without blocking startup.
func (app *App) checkSMTP(ctx context.Context, host string) {
	if host == "" {
		app.logger.Warn(ctx, "SMTP host not configured, emails will be simulated")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, smtpCheckTimeout)
	defer cancel()
	if err := app.mailer.Verify(ctx); err != nil {
		app.logger.Warn(ctx, "SMTP check failed", "error", err)
		return
	}
	app.logger.Info(ctx, "SMTP server is ready")
}

// Run serves until SIGINT/SIGTERM or a server error, then closes the database.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)
	app.initSignalHandler(ctx, cancelFunc)

	go app.checkSMTP(ctx, app.config.SMTPHost)

	var (
		wg     sync.WaitGroup
		runErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			runErr = err
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()
	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
	return runErr
}
