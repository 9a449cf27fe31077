package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/laplink/internal/flagx"
	"github.com/dmitrijs2005/laplink/internal/timex"
)

// JSONConfig is the on-disk shape of the optional config file. Durations
// accept "1h" strings or integer nanoseconds. Zero values leave the
// corresponding Config field untouched.
type JSONConfig struct {
	HTTPAddr           string         `json:"http_addr"`
	DatabaseDSN        string         `json:"database_dsn"`
	AccessSecret       string         `json:"jwt_secret"`
	RefreshSecret      string         `json:"jwt_refresh_secret"`
	AccessTokenTTL     timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL    timex.Duration `json:"refresh_token_ttl"`
	SMTPHost           string         `json:"smtp_host"`
	SMTPPort           int            `json:"smtp_port"`
	SMTPUser           string         `json:"smtp_user"`
	SMTPPass           string         `json:"smtp_pass"`
	SMTPFrom           string         `json:"smtp_from"`
	AdminEmail         string         `json:"admin_email"`
	AppBaseURL         string         `json:"app_base_url"`
	CORSAllowedOrigins string         `json:"cors_allowed_origins"`
	RateLimitRPM       int            `json:"rate_limit_rpm"`
	S3AccessKey        string         `json:"s3_access_key"`
	S3SecretKey        string         `json:"s3_secret_key"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	LogFormat          string         `json:"log_format"`
	LogBackend         string         `json:"log_backend"`
	Environment        string         `json:"app_env"`
}

// parseJSON overlays values from the file named by -c/-config. Without the
// flag nothing is loaded.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFilePath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JSONConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessSecret, c.AccessSecret)
	setString(&config.RefreshSecret, c.RefreshSecret)
	setString(&config.SMTPHost, c.SMTPHost)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPass, c.SMTPPass)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.AppBaseURL, c.AppBaseURL)
	setString(&config.CORSAllowedOrigins, c.CORSAllowedOrigins)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.Environment, c.Environment)

	if c.AccessTokenTTL.Duration > 0 {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL.Duration > 0 {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.SMTPPort > 0 {
		config.SMTPPort = c.SMTPPort
	}
	if c.RateLimitRPM > 0 {
		config.RateLimitRPM = c.RateLimitRPM
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
