// Package config loads server settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/erazemk/knjiznica/internal/mail"
	"github.com/erazemk/knjiznica/internal/model"
)

// Config holds every runtime setting.
type Config struct {
	DBPath  string
	Addr    string
	LogFile string

	// JWTSecret overrides the secret persisted in the database when set.
	JWTSecret string

	SMTP       mail.SMTPConfig
	AdminEmail string

	Fines        model.FinePolicy
	LoanPeriod   time.Duration
	HomeCacheTTL time.Duration
}

// Defaults.
const (
	DefaultDBPath       = "knjiznica.db"
	DefaultAddr         = ":8080"
	DefaultSMTPPort     = 587
	DefaultHomeCacheTTL = 5 * time.Minute
)

// Load reads the given .env files (".env" when none are given) into the
// process environment without overriding variables that are already set,
// then builds a Config from the environment. Missing .env files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a variable lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		DBPath:     get("KNJIZNICA_DB", DefaultDBPath),
		Addr:       get("KNJIZNICA_ADDR", DefaultAddr),
		LogFile:    get("KNJIZNICA_LOG", ""),
		JWTSecret:  get("JWT_SECRET", ""),
		AdminEmail: get("ADMIN_EMAIL", ""),
		SMTP: mail.SMTPConfig{
			Host:     get("SMTP_HOST", ""),
			Username: get("SMTP_USER", ""),
			Password: get("SMTP_PASS", ""),
			From:     get("MAIL_FROM", ""),
		},
		Fines:        model.DefaultFinePolicy,
		LoanPeriod:   model.DefaultLoanPeriod,
		HomeCacheTTL: DefaultHomeCacheTTL,
	}

	var err error
	if cfg.SMTP.Port, err = intVar(get, "SMTP_PORT", DefaultSMTPPort); err != nil {
		return nil, err
	}
	perDay, err := intVar(get, "FINE_PER_DAY", int(model.DefaultFinePolicy.PerDay))
	if err != nil {
		return nil, err
	}
	cfg.Fines.PerDay = int64(perDay)
	if cfg.Fines.GraceDays, err = intVar(get, "FINE_GRACE_DAYS", model.DefaultFinePolicy.GraceDays); err != nil {
		return nil, err
	}
	loanDays, err := intVar(get, "LOAN_DAYS", int(model.DefaultLoanPeriod/(24*time.Hour)))
	if err != nil {
		return nil, err
	}
	cfg.LoanPeriod = time.Duration(loanDays) * 24 * time.Hour

	if v := get("HOME_CACHE_TTL", ""); v != "" {
		if cfg.HomeCacheTTL, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid HOME_CACHE_TTL %q: %w", v, err)
		}
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return errors.New("database path must not be empty")
	case c.Fines.PerDay < 0:
		return errors.New("FINE_PER_DAY must not be negative")
	case c.Fines.GraceDays < 0:
		return errors.New("FINE_GRACE_DAYS must not be negative")
	case c.LoanPeriod <= 0:
		return errors.New("LOAN_DAYS must be positive")
	case c.HomeCacheTTL < 0:
		return errors.New("HOME_CACHE_TTL must not be negative")
	case c.SMTP.Host != "" && c.SMTP.From == "":
		return errors.New("MAIL_FROM or SMTP_USER is required when SMTP_HOST is set")
	}
	return nil
}

// MailEnabled reports whether an SMTP relay is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTP.Host != ""
}

func intVar(get func(string, string) string, key string, def int) (int, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
