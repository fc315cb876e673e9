// Package config loads runtime settings from defaults, an optional TOML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that decodes from strings like "12h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

type Config struct {
	Server struct {
		Port      string `toml:"port"`
		BaseURL   string `toml:"base_url"`
		LogLevel  string `toml:"log_level"`
		LogFormat string `toml:"log_format"`
		Timezone  string `toml:"timezone"`
	} `toml:"server"`

	Database struct {
		Driver string `toml:"driver"`
		DSN    string `toml:"dsn"`
	} `toml:"database"`

	Auth struct {
		JWTSigningKey      string   `toml:"jwt_signing_key"`
		JWTIssuer          string   `toml:"jwt_issuer"`
		TokenTTL           Duration `toml:"token_ttl"`
		StudentEmailDomain string   `toml:"student_email_domain"`
		SuperAdminEmail    string   `toml:"super_admin_email"`
		SuperAdminPassword string   `toml:"super_admin_password"`
		ResetTokenTTL      Duration `toml:"reset_token_ttl"`
	} `toml:"auth"`

	Email struct {
		PostmarkToken string `toml:"postmark_token"`
		FromEmail     string `toml:"from_email"`
	} `toml:"email"`

	Redis struct {
		Addr    string `toml:"addr"`
		Channel string `toml:"channel"`
	} `toml:"redis"`

	Backup struct {
		Endpoint      string `toml:"endpoint"`
		Bucket        string `toml:"bucket"`
		Region        string `toml:"region"`
		AccessKey     string `toml:"access_key"`
		SecretKey     string `toml:"secret_key"`
		Passphrase    string `toml:"passphrase"`
		RetentionDays int    `toml:"retention_days"`
	} `toml:"backup"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var c Config
	c.Server.Port = "8080"
	c.Server.LogLevel = "info"
	c.Server.LogFormat = "text"
	c.Server.Timezone = "UTC"
	c.Database.Driver = "sqlite"
	c.Database.DSN = "classpoints.db"
	c.Auth.JWTIssuer = "classpoints"
	c.Auth.TokenTTL = Duration{12 * time.Hour}
	c.Auth.ResetTokenTTL = Duration{time.Hour}
	c.Redis.Channel = "classpoints:events"
	c.Backup.Region = "us-east-1"
	c.Backup.RetentionDays = 30
	return &c
}

// Load reads an optional .env file, then the TOML file named by
// CLASSPOINTS_CONFIG (if any), then environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("CLASSPOINTS_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("CLASSPOINTS_PORT", c.Server.Port)
	c.Server.BaseURL = getEnv("CLASSPOINTS_BASE_URL", c.Server.BaseURL)
	c.Server.LogLevel = getEnv("CLASSPOINTS_LOG_LEVEL", c.Server.LogLevel)
	c.Server.LogFormat = getEnv("CLASSPOINTS_LOG_FORMAT", c.Server.LogFormat)
	c.Server.Timezone = getEnv("CLASSPOINTS_TIMEZONE", c.Server.Timezone)

	c.Database.Driver = getEnv("CLASSPOINTS_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("CLASSPOINTS_DB_DSN", c.Database.DSN)

	c.Auth.JWTSigningKey = getEnv("CLASSPOINTS_JWT_KEY", c.Auth.JWTSigningKey)
	c.Auth.JWTIssuer = getEnv("CLASSPOINTS_JWT_ISSUER", c.Auth.JWTIssuer)
	c.Auth.TokenTTL.Duration = durationEnv("CLASSPOINTS_TOKEN_TTL", c.Auth.TokenTTL.Duration)
	c.Auth.ResetTokenTTL.Duration = durationEnv("CLASSPOINTS_RESET_TOKEN_TTL", c.Auth.ResetTokenTTL.Duration)
	c.Auth.StudentEmailDomain = getEnv("CLASSPOINTS_STUDENT_EMAIL_DOMAIN", c.Auth.StudentEmailDomain)
	c.Auth.SuperAdminEmail = getEnv("CLASSPOINTS_SUPERADMIN_EMAIL", c.Auth.SuperAdminEmail)
	c.Auth.SuperAdminPassword = getEnv("CLASSPOINTS_SUPERADMIN_PASSWORD", c.Auth.SuperAdminPassword)

	c.Email.PostmarkToken = getEnv("CLASSPOINTS_POSTMARK_TOKEN", c.Email.PostmarkToken)
	c.Email.FromEmail = getEnv("CLASSPOINTS_FROM_EMAIL", c.Email.FromEmail)

	c.Redis.Addr = getEnv("CLASSPOINTS_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Channel = getEnv("CLASSPOINTS_REDIS_CHANNEL", c.Redis.Channel)

	c.Backup.Endpoint = getEnv("CLASSPOINTS_S3_ENDPOINT", c.Backup.Endpoint)
	c.Backup.Bucket = getEnv("CLASSPOINTS_S3_BUCKET", c.Backup.Bucket)
	c.Backup.Region = getEnv("CLASSPOINTS_S3_REGION", c.Backup.Region)
	c.Backup.AccessKey = getEnv("CLASSPOINTS_S3_ACCESS_KEY", c.Backup.AccessKey)
	c.Backup.SecretKey = getEnv("CLASSPOINTS_S3_SECRET_KEY", c.Backup.SecretKey)
	c.Backup.Passphrase = getEnv("CLASSPOINTS_BACKUP_PASSPHRASE", c.Backup.Passphrase)
	c.Backup.RetentionDays = intEnv("CLASSPOINTS_BACKUP_RETENTION_DAYS", c.Backup.RetentionDays)
}

// Validate checks settings that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is not set")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("jwt signing key is not set (CLASSPOINTS_JWT_KEY)")
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Server.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone; Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BaseURLOrDefault returns the public base URL used in emailed links.
func (c *Config) BaseURLOrDefault() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	return "http://localhost:" + c.Server.Port
}

// BackupEnabled reports whether S3 snapshot storage is configured.
func (c *Config) BackupEnabled() bool {
	return c.Backup.Bucket != "" && c.Backup.AccessKey != "" && c.Backup.SecretKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			slog.Warn("invalid duration, using fallback", "key", key, "error", err, "fallback", fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			slog.Warn("invalid int, using fallback", "key", key, "fallback", fallback)
			return fallback
		}
		return n
	}
	return fallback
}
