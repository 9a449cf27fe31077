package logging

import (
	"io"
	"log/slog"

	"go.uber.org/zap"
)

// Options selects the logger backend.
//
//   - Backend: "slog" (default) or "zap".
//   - Format: "json" (default) or "text"; only used by slog.
//   - Production: zap production config instead of the development one.
type Options struct {
	Backend    string
	Format     string
	Production bool
}

// New builds a Logger writing to w (slog) or to zap's configured sinks.
func New(w io.Writer, opts Options) (Logger, error) {
	if opts.Backend == "zap" {
		var (
			zl  *zap.Logger
			err error
		)
		if opts.Production {
			zl, err = zap.NewProduction()
		} else {
			zl, err = zap.NewDevelopment()
		}
		if err != nil {
			return nil, err
		}
		return NewZapLogger(zl), nil
	}

	var h slog.Handler
	if opts.Format == "text" {
		h = slog.NewTextHandler(w, nil)
	} else {
		h = slog.NewJSONHandler(w, nil)
	}
	return NewSlogLogger(slog.New(h)), nil
}
