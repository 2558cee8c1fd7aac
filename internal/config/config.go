// Package config parses and validates all connector configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] into the
// connector. Startup fails if any field tagged "required" is missing —
// configuration errors are never retried.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all connector configuration sourced from environment variables.
type Config struct {
	// ── OpenCTI (downstream) ─────────────────────────────────────────────────────
	OpenCTIURL   string `env:"OPENCTI_URL,required,notEmpty"`
	OpenCTIToken string `env:"OPENCTI_TOKEN,required,notEmpty"`

	// ── Trend Vision One (upstream) ──────────────────────────────────────────────
	APIRoot string `env:"TV1_API_ROOT" envDefault:"https://api.eu.xdr.trendmicro.com"`
	APIKey  string `env:"TV1_API_KEY,required,notEmpty"`

	// ContextualFilter, when set, is sent verbatim as the TMV1-Contextual-Filter
	// header and overrides the Location/Industry synthesis.
	ContextualFilter string `env:"TV1_CONTEXTUAL_FILTER"`
	Location         string `env:"TV1_LOCATION" envDefault:"No specified locations"`
	Industry         string `env:"TV1_INDUSTRY" envDefault:"No specified industries"`

	// ── Polling ──────────────────────────────────────────────────────────────────
	// PollMinutes is the width of the fetch window [now − PollMinutes, now).
	// The window is recomputed every cycle with no persisted high-water mark, so
	// consecutive windows only tile exactly when SleepSeconds ≈ PollMinutes×60.
	// Overlap is absorbed by OpenCTI's import-with-update; a too-small window
	// relative to the sleep can miss objects.
	PollMinutes  int `env:"POLL_MINUTES"  envDefault:"60"`
	SleepSeconds int `env:"SLEEP_SECONDS" envDefault:"900"`

	// TopReport is the preferred per-page size requested from the feed. Tenants
	// reject large values inconsistently; the cycle falls back through a fixed
	// descending size list when an attempt fails.
	TopReport int `env:"TOP_REPORT" envDefault:"100"`

	// ResponseFormat is "taxiiEnvelope" or "stixBundle".
	ResponseFormat string `env:"RESPONSE_FORMAT" envDefault:"taxiiEnvelope"`

	MaxObjectsPerBundle int `env:"MAX_OBJECTS_PER_BUNDLE" envDefault:"5000"`

	// ── HTTP ─────────────────────────────────────────────────────────────────────
	HTTPTimeoutSeconds int `env:"HTTP_TIMEOUT_SECONDS" envDefault:"60"`
	FetchMaxRetries    int `env:"FETCH_MAX_RETRIES"    envDefault:"5"`

	// ── Ops listener ─────────────────────────────────────────────────────────────
	OpsEnabled bool   `env:"OPS_ENABLED" envDefault:"true"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	// Debug forces LogLevel to debug regardless of LOG_LEVEL.
	Debug bool `env:"DEBUG" envDefault:"false"`
}

// Load parses and returns Config from environment variables.
// Returns an error if any required field is missing or a value is malformed.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	cfg.APIRoot = strings.TrimRight(cfg.APIRoot, "/")
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PollMinutes <= 0 {
		return fmt.Errorf("POLL_MINUTES must be positive, got %d", c.PollMinutes)
	}
	if c.SleepSeconds <= 0 {
		return fmt.Errorf("SLEEP_SECONDS must be positive, got %d", c.SleepSeconds)
	}
	if c.TopReport <= 0 {
		return fmt.Errorf("TOP_REPORT must be positive, got %d", c.TopReport)
	}
	if c.MaxObjectsPerBundle <= 0 {
		return fmt.Errorf("MAX_OBJECTS_PER_BUNDLE must be positive, got %d", c.MaxObjectsPerBundle)
	}
	if c.FetchMaxRetries <= 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES must be positive, got %d", c.FetchMaxRetries)
	}
	switch c.ResponseFormat {
	case "taxiiEnvelope", "stixBundle":
	default:
		return fmt.Errorf("RESPONSE_FORMAT must be taxiiEnvelope or stixBundle, got %q", c.ResponseFormat)
	}
	return nil
}

// EffectiveLogLevel returns the log level with the DEBUG override applied.
func (c *Config) EffectiveLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
