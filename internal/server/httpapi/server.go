// Package httpapi is the JSON-over-HTTP surface of the server, built on
// fiber. Routes live under /api; errors from the services are mapped onto
// status codes in one place (errorHandler).
package httpapi

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/services"
	"github.com/dmitrijs2005/laplink/internal/server/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

type Options struct {
	// CORSAllowedOrigins is a comma-separated allow-list.
	CORSAllowedOrigins string
	// RateLimitRPM caps requests per minute and IP on /api/auth. Zero disables it.
	RateLimitRPM int
	Environment  string
	// AccessLog receives one line per request. Defaults to stdout.
	AccessLog io.Writer
}

type HTTPServer struct {
	address  string
	app      *fiber.App
	logger   logging.Logger
	auth     *services.AuthService
	requests *services.RequestService
	uploads  *storage.Presigner
	opts     Options
}

func NewHTTPServer(address string, logger logging.Logger, as *services.AuthService, rs *services.RequestService,
	uploads *storage.Presigner, opts Options) *HTTPServer {
	if opts.AccessLog == nil {
		opts.AccessLog = os.Stdout
	}

	s := &HTTPServer{
		address:  address,
		logger:   logger.With("module", "http_server"),
		auth:     as,
		requests: rs,
		uploads:  uploads,
		opts:     opts,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "laplink",
		ErrorHandler:          s.errorHandler,
		DisableStartupMessage: true,
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(logContext)
	s.app.Use(fiberlogger.New(fiberlogger.Config{Output: opts.AccessLog}))
	s.app.Use(helmet.New())
	s.app.Use(cors.New(corsConfig(opts.CORSAllowedOrigins)))

	s.routes()
	return s
}

func corsConfig(origins string) cors.Config {
	origins = strings.TrimSpace(origins)
	cfg := cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}
	// fiber refuses credentials with a wildcard origin.
	if origins != "" && origins != "*" {
		cfg.AllowCredentials = true
	}
	if origins == "" {
		cfg.AllowOrigins = "*"
	}
	return cfg
}

// App exposes the fiber application, mainly for app.Test.
func (s *HTTPServer) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
	return s.app.Listen(s.address)
}
