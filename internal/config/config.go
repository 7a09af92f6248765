package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath      = "config/config.yaml"
	MemoryDSN        = "memory://"
	defaultJWTSecret = "change-me"
)

type ServerConfig struct {
	Port               int      `yaml:"port"`
	GinMode            string   `yaml:"gin_mode"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	MaxCommentBytes    int64    `yaml:"max_comment_bytes"`
}

type DatabaseConfig struct {
	// DSN is a postgres URL, or "memory://" for the in-process store.
	DSN           string `yaml:"url"`
	RunMigrations bool   `yaml:"run_migrations"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	DryRun       bool   `yaml:"dry_run"`
}

type QueueConfig struct {
	// RedisURL enables the asynq mail queue and the attempt limiter.
	// Empty means mail is sent from an in-process goroutine and nothing is throttled.
	RedisURL    string `yaml:"redis_url"`
	Concurrency int    `yaml:"concurrency"`
}

type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	ConfirmationWindow time.Duration `yaml:"confirmation_window"`
	UsernameCookieTTL  time.Duration `yaml:"username_cookie_ttl"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
}

type RateLimitConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Window      time.Duration `yaml:"window"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Email     EmailConfig     `yaml:"email"`
	Queue     QueueConfig     `yaml:"queue"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Defaults returns a configuration that runs locally without any external service.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               8080,
			GinMode:            "debug",
			CORSAllowedOrigins: []string{"http://localhost:3000"},
			MaxCommentBytes:    4 << 10,
		},
		Database: DatabaseConfig{
			DSN:           MemoryDSN,
			RunMigrations: true,
		},
		Email: EmailConfig{
			SMTPPort:  587,
			FromEmail: "no-reply@commentboard.local",
			DryRun:    true,
		},
		Queue: QueueConfig{
			Concurrency: 4,
		},
		Auth: AuthConfig{
			JWTSecret:          defaultJWTSecret,
			SessionTTL:         24 * time.Hour,
			ConfirmationWindow: 6 * time.Hour,
			UsernameCookieTTL:  5 * 24 * time.Hour,
			BcryptCost:         10,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts: 10,
			Window:      15 * time.Minute,
		},
	}
}

// Load reads the yaml file at path on top of Defaults and then applies
// environment overrides (a .env file in the working directory is honoured).
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads from CONFIG_PATH (or DefaultPath) and panics on failure.
func LoadConfig() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

func (c *Config) applyEnv() error {
	setString(&c.Server.GinMode, "GIN_MODE")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Email.SMTPHost, "SMTP_HOST")
	setString(&c.Email.SMTPUser, "SMTP_USER")
	setString(&c.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&c.Email.FromEmail, "SMTP_FROM")
	setString(&c.Queue.RedisURL, "REDIS_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.CORSAllowedOrigins = strings.Split(v, ",")
	}
	if err := setInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Email.SMTPPort, "SMTP_PORT"); err != nil {
		return err
	}
	if err := setDuration(&c.Auth.SessionTTL, "SESSION_TTL"); err != nil {
		return err
	}
	return setDuration(&c.Auth.ConfirmationWindow, "CONFIRMATION_WINDOW")
}

// Validate rejects settings that would break the confirmation protocol.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.Server.MaxCommentBytes <= 0 {
		return fmt.Errorf("server.max_comment_bytes must be positive")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Server.GinMode == "release" && c.Auth.JWTSecret == defaultJWTSecret {
		return fmt.Errorf("auth.jwt_secret must be changed in release mode")
	}
	if c.Server.GinMode == "release" && c.Database.DSN == MemoryDSN {
		return fmt.Errorf("database.url must point at postgres in release mode")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Auth.ConfirmationWindow <= 0 {
		return fmt.Errorf("auth.confirmation_window must be positive")
	}
	if c.Auth.UsernameCookieTTL <= 0 {
		return fmt.Errorf("auth.username_cookie_ttl must be positive")
	}
	if c.RateLimit.MaxAttempts <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.max_attempts and rate_limit.window must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
