// Package config loads process configuration from the environment and
// assistant definitions from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces all environment variables, e.g. DOCPAL_ADMIN_KEY.
const envPrefix = "docpal"

// Config is the process configuration, read once at startup.
type Config struct {
	// Env selects logger and error detail behavior.
	Env string `envconfig:"ENV" default:"development"`
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	// OpenRouterBaseURL overrides the OpenRouter API root, mainly in tests.
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`
	// OpenRouterAPIKey is the server-held upstream credential.
	OpenRouterAPIKey string `envconfig:"OPENROUTER_API_KEY"`
	// AdminKey authorizes chat listing and deletion. Empty disables those
	// endpoints.
	AdminKey string `envconfig:"ADMIN_KEY"`
	// DBPath is the SQLite database location.
	DBPath string `envconfig:"DB_PATH" default:"docpal.db"`
	// AssistantsPath is the TOML file defining assistant profiles.
	AssistantsPath string `envconfig:"ASSISTANTS_PATH" default:"assistants.toml"`
	// RequestTimeoutMS bounds a full completion round.
	RequestTimeoutMS int `envconfig:"REQUEST_TIMEOUT_MS" default:"600000"`
	// RateLimitPerMinute is the per-IP request budget.
	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	// AppReferer and AppTitle identify the app to OpenRouter.
	AppReferer string `envconfig:"APP_REFERER"`
	AppTitle   string `envconfig:"APP_TITLE" default:"docpal"`
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	// .env is a development convenience; absence is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks values the zero defaults cannot cover.
func (c *Config) validate() error {
	if c.RequestTimeoutMS <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}
