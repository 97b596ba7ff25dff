// Package config loads server configuration from the environment.
// A .env file in the working directory is read first when present;
// variables already set in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Workflow navigation modes.
const (
	WorkflowLocal = "local"
	WorkflowHTTP  = "http"
)

// DevJWTSecret is accepted only outside production.
const DevJWTSecret = "dev-secret-change-me"

// Config is the server configuration.
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Workflow WorkflowConfig
	Notify   NotifyConfig

	// WriteTimeout bounds every write transaction
	WriteTimeout time.Duration
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// Development reports whether the server runs in development mode.
func (c AppConfig) Development() bool {
	return c.Env == "development"
}

// DatabaseConfig selects the store. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL         string
	MaxConns    int32
	ApplySchema bool
}

// InMemory reports whether no database is configured.
func (c DatabaseConfig) InMemory() bool {
	return c.URL == ""
}

// AuthConfig configures bearer-token validation.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// WorkflowConfig selects and configures the workflow navigator.
type WorkflowConfig struct {
	Mode    string
	URL     string
	Timeout time.Duration

	// DefinitionID is the workflow new purchase orders start in
	DefinitionID string
}

// NotifyConfig configures post-commit notifications. An empty WebhookURL
// writes notifications to the log.
type NotifyConfig struct {
	WebhookURL  string
	Timeout     time.Duration
	Concurrency int
}

// Load reads files (default .env) into the environment when they exist
// and parses the result.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return Parse(os.Getenv)
}

// Parse builds a Config from getenv and validates it.
func Parse(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}

	cfg := &Config{
		App: AppConfig{
			Port:     e.str("APP_PORT", "8080"),
			Env:      e.str("APP_ENV", "development"),
			LogLevel: e.str("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:         e.str("DATABASE_URL", ""),
			MaxConns:    int32(e.int("DB_MAX_CONNS", 20)),
			ApplySchema: e.bool("DB_APPLY_SCHEMA", false),
		},
		Auth: AuthConfig{
			JWTSecret: e.str("JWT_SECRET", DevJWTSecret),
			TokenTTL:  e.duration("JWT_TTL", 15*time.Minute),
		},
		Workflow: WorkflowConfig{
			Mode:         strings.ToLower(e.str("WORKFLOW_MODE", WorkflowLocal)),
			URL:          e.str("WORKFLOW_URL", ""),
			Timeout:      e.duration("WORKFLOW_TIMEOUT", 5*time.Second),
			DefinitionID: e.str("PO_WORKFLOW_ID", "po-default"),
		},
		Notify: NotifyConfig{
			WebhookURL:  e.str("NOTIFY_WEBHOOK_URL", ""),
			Timeout:     e.duration("NOTIFY_TIMEOUT", 10*time.Second),
			Concurrency: e.int("NOTIFY_CONCURRENCY", 4),
		},
		WriteTimeout: e.duration("WRITE_TIMEOUT", 30*time.Second),
	}

	if err := errors.Join(append(e.errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if _, err := strconv.ParseUint(c.App.Port, 10, 16); err != nil {
		errs = append(errs, fmt.Errorf("APP_PORT: invalid port %q", c.App.Port))
	}

	switch c.Workflow.Mode {
	case WorkflowLocal:
	case WorkflowHTTP:
		if c.Workflow.URL == "" {
			errs = append(errs, errors.New("WORKFLOW_URL is required when WORKFLOW_MODE=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("WORKFLOW_MODE: unknown mode %q", c.Workflow.Mode))
	}

	if c.Workflow.DefinitionID == "" {
		errs = append(errs, errors.New("PO_WORKFLOW_ID must not be empty"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	} else if c.App.Env == "production" && c.Auth.JWTSecret == DevJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}

	if c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("WRITE_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// env reads typed values and collects parse errors.
type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	v := e.get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
