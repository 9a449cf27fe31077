// Package services contains the server's business logic: the OTP and
// password authentication flows and the request lifecycle. Services are
// transport-agnostic; httpapi maps their errors onto status codes.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/laplink/internal/logging"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/dmitrijs2005/laplink/internal/server/otp"
)

// notifyTimeout bounds a single best-effort notification.
const notifyTimeout = 30 * time.Second

// Notifier delivers the emails the services trigger. notify.Mailer
// satisfies it.
type Notifier interface {
	otp.Sender
	SendWelcome(ctx context.Context, to, name string) error
	NotifyAdmin(ctx context.Context, req *models.Request) error
}

// dispatcher runs best-effort notifications off the request path. Failures
// are logged and never reach the caller.
type dispatcher struct {
	logger logging.Logger
	run    func(func())
}

func newDispatcher(logger logging.Logger) dispatcher {
	return dispatcher{logger: logger, run: func(f func()) { go f() }}
}

func (d dispatcher) dispatch(ctx context.Context, what string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	d.run(func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.logger.Warn(ctx, "notification failed", "notification", what, "error", err)
		}
	})
}
