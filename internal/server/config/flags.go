package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/laplink/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":5000")
//	-d string     PostgreSQL DSN
//	-s string     access token secret
//	-S string     refresh token secret
//	-t duration   access token lifetime (e.g. "1h")
//	-r duration   refresh token lifetime
//	-l string     log format, "text" or "json"
//
// args are filtered with flagx.FilterArgs first so -c/-env and flags of other
// components do not break parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-d", "-s", "-S", "-t", "-r", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessSecret, "s", config.AccessSecret, "access token secret")
	fs.StringVar(&config.RefreshSecret, "S", config.RefreshSecret, "refresh token secret")
	fs.DurationVar(&config.AccessTokenTTL, "t", config.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&config.RefreshTokenTTL, "r", config.RefreshTokenTTL, "refresh token lifetime")
	fs.StringVar(&config.LogFormat, "l", config.LogFormat, "log format (text|json)")

	return fs.Parse(args)
}
