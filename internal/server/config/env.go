package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/laplink/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv loads the dotenv file named by -env (".env" by default) into the
// process environment and then reads known variables into config. Variables
// already present in the environment win over the file. A missing file is
// not an error.
func parseEnv(config *Config, args []string) error {
	if err := godotenv.Load(flagx.EnvFilePath(args)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	str("HTTP_ADDR", &config.HTTPAddr)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("JWT_SECRET", &config.AccessSecret)
	str("JWT_REFRESH_SECRET", &config.RefreshSecret)
	str("SMTP_HOST", &config.SMTPHost)
	str("SMTP_USER", &config.SMTPUser)
	str("SMTP_PASS", &config.SMTPPass)
	str("SMTP_FROM", &config.SMTPFrom)
	str("ADMIN_EMAIL", &config.AdminEmail)
	str("APP_BASE_URL", &config.AppBaseURL)
	str("CORS_ALLOWED_ORIGINS", &config.CORSAllowedOrigins)
	str("S3_ACCESS_KEY", &config.S3AccessKey)
	str("S3_SECRET_KEY", &config.S3SecretKey)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("LOG_FORMAT", &config.LogFormat)
	str("LOG_BACKEND", &config.LogBackend)
	str("APP_ENV", &config.Environment)

	var errs []error
	durations := map[string]*time.Duration{
		"ACCESS_TOKEN_TTL":  &config.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": &config.RefreshTokenTTL,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				continue
			}
			*dst = d
		}
	}

	ints := map[string]*int{
		"SMTP_PORT":      &config.SMTPPort,
		"RATE_LIMIT_RPM": &config.RateLimitRPM,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				continue
			}
			*dst = n
		}
	}

	return errors.Join(errs...)
}
