package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env         string        `yaml:"env"`
	Addr        string        `yaml:"addr"`
	BaseURL     string        `yaml:"base_url"`
	DataDir     string        `yaml:"data_dir"`
	UploadDir   string        `yaml:"upload_dir"`
	AdminEmails []string      `yaml:"admin_emails"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	DB          DBConfig      `yaml:"db"`
	Cron        CronConfig    `yaml:"cron"`
	Email       EmailConfig   `yaml:"email"`
}

type DBConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// DSN is the postgres connection string. Ignored for sqlite, which
	// lives in DataDir.
	DSN string `yaml:"dsn"`
}

// EmailConfig selects how notification mail is sent: SMTP when
// enabled, otherwise Resend when an API key is set, otherwise mail is
// only logged.
type EmailConfig struct {
	FromEmail    string `yaml:"from_email"`
	ResendAPIKey string `yaml:"resend_api_key"`
	SMTPEnabled  bool   `yaml:"smtp_enabled"`
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     string `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPass     string `yaml:"smtp_pass"`
}

type CronConfig struct {
	TZ           string `yaml:"tz"`
	SessionPurge string `yaml:"session_purge"`
}

func Default() Config {
	return Config{
		Env:        "dev",
		Addr:       ":8080",
		BaseURL:    "http://localhost:8080",
		DataDir:    "data",
		UploadDir:  "uploads",
		SessionTTL: 30 * 24 * time.Hour,
		DB:         DBConfig{Driver: "sqlite"},
		Cron:       CronConfig{TZ: "UTC", SessionPurge: "0 * * * *"},
		Email:      EmailConfig{FromEmail: "Sprintboard <sprintboard@resend.dev>", SMTPPort: "587"},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load starts from Default, overlays the YAML file at path (a missing
// file is not an error) and finally the SPRINTBOARD_* environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.Env = getEnv("SPRINTBOARD_ENV", cfg.Env)
	cfg.Addr = getEnv("SPRINTBOARD_ADDR", cfg.Addr)
	cfg.BaseURL = getEnv("SPRINTBOARD_BASE_URL", cfg.BaseURL)
	cfg.DataDir = getEnv("SPRINTBOARD_DATA_DIR", cfg.DataDir)
	cfg.UploadDir = getEnv("SPRINTBOARD_UPLOAD_DIR", cfg.UploadDir)
	cfg.DB.Driver = getEnv("SPRINTBOARD_DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DSN = getEnv("SPRINTBOARD_DB_DSN", cfg.DB.DSN)
	cfg.Cron.TZ = getEnv("SPRINTBOARD_TZ", cfg.Cron.TZ)
	cfg.Email.FromEmail = getEnv("SPRINTBOARD_FROM_EMAIL", cfg.Email.FromEmail)
	cfg.Email.ResendAPIKey = getEnv("RESEND_API_KEY", cfg.Email.ResendAPIKey)
	if v := os.Getenv("SMTP_ENABLED"); v != "" {
		cfg.Email.SMTPEnabled = strings.EqualFold(v, "true")
	}
	cfg.Email.SMTPHost = getEnv("SMTP_HOST", cfg.Email.SMTPHost)
	cfg.Email.SMTPPort = getEnv("SMTP_PORT", cfg.Email.SMTPPort)
	cfg.Email.SMTPUser = getEnv("SMTP_USER", cfg.Email.SMTPUser)
	cfg.Email.SMTPPass = getEnv("SMTP_PASS", cfg.Email.SMTPPass)
	if v := os.Getenv("SPRINTBOARD_ADMIN_EMAILS"); v != "" {
		cfg.AdminEmails = strings.Split(v, ",")
	}
	if v := os.Getenv("SPRINTBOARD_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("SPRINTBOARD_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite":
	case "postgres":
		if c.DB.DSN == "" {
			return errors.New("db.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown db driver %q", c.DB.Driver)
	}
	if c.SessionTTL <= 0 {
		return errors.New("session_ttl must be positive")
	}
	if c.Email.SMTPEnabled && c.Email.SMTPHost == "" {
		return errors.New("email.smtp_host is required when smtp is enabled")
	}
	return nil
}
