// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Completion modes accepted for COMPLETION_MODE.
const (
	CompletionTwoStep = "two_step"
	CompletionDirect  = "direct"
)

// Defaults for optional settings.
const (
	DefaultPort                 = "8080"
	DefaultCurrency             = "USD"
	DefaultBackdate             = 24 * time.Hour
	DefaultLicenseAPIURL        = "http://easydigitaldownloads.com"
	DefaultLicenseCheckInterval = 12 * time.Hour
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	StoreID    string

	// Purchase settings
	Backdate       time.Duration
	CompletionMode string

	// Licensing server
	LicenseAPIURL        string
	LicenseCheckInterval time.Duration

	// Store connection and admin credentials (loaded from secrets)
	Store StoreConfig
}

// StoreConfig contains the host connection and the secrets this service owns.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type StoreConfig struct {
	StoreURL    string `json:"store_url"`
	Username    string `json:"username"`
	AppPassword string `json:"app_password"`
	Currency    string `json:"currency,omitempty"`

	// Fingerprint routes store calls through the Chrome TLS transport.
	Fingerprint bool `json:"fingerprint,omitempty"`

	// NonceSecret keys the HMAC behind form forgery tokens.
	NonceSecret string `json:"nonce_secret"`

	// AdminUser and AdminPassword guard the /admin routes.
	AdminUser     string `json:"admin_user,omitempty"`
	AdminPassword string `json:"admin_password"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:           envOrDefault("PORT", DefaultPort),
		Environment:    envOrDefault("ENVIRONMENT", "development"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		GCPProject:     os.Getenv("GCP_PROJECT"),
		StoreID:        os.Getenv("STORE_ID"),
		CompletionMode: envOrDefault("COMPLETION_MODE", CompletionTwoStep),
		LicenseAPIURL:  envOrDefault("LICENSE_API_URL", DefaultLicenseAPIURL),
	}

	var err error
	if cfg.Backdate, err = parseDuration("PURCHASE_BACKDATE", os.Getenv("PURCHASE_BACKDATE"), DefaultBackdate); err != nil {
		return nil, err
	}
	if cfg.LicenseCheckInterval, err = parseDuration("LICENSE_CHECK_INTERVAL", os.Getenv("LICENSE_CHECK_INTERVAL"), DefaultLicenseCheckInterval); err != nil {
		return nil, err
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StoreID == "" {
			return nil, fmt.Errorf("STORE_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port                 string      `json:"port"`
		Environment          string      `json:"environment"`
		LogLevel             string      `json:"log_level"`
		Backdate             string      `json:"purchase_backdate"`
		CompletionMode       string      `json:"completion_mode"`
		LicenseAPIURL        string      `json:"license_api_url"`
		LicenseCheckInterval string      `json:"license_check_interval"`
		Store                StoreConfig `json:"store"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:           withDefault(fileConfig.Port, DefaultPort),
		Environment:    withDefault(fileConfig.Environment, "development"),
		LogLevel:       withDefault(fileConfig.LogLevel, "info"),
		CompletionMode: withDefault(fileConfig.CompletionMode, CompletionTwoStep),
		LicenseAPIURL:  withDefault(fileConfig.LicenseAPIURL, DefaultLicenseAPIURL),
		Store:          fileConfig.Store,
	}
	if cfg.Backdate, err = parseDuration("purchase_backdate", fileConfig.Backdate, DefaultBackdate); err != nil {
		return nil, err
	}
	if cfg.LicenseCheckInterval, err = parseDuration("license_check_interval", fileConfig.LicenseCheckInterval, DefaultLicenseCheckInterval); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches store config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{store_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.StoreID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadFromEnv reads store config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() error {
	c.Store = StoreConfig{
		StoreURL:      os.Getenv("STORE_URL"),
		Username:      os.Getenv("STORE_USERNAME"),
		AppPassword:   os.Getenv("STORE_APP_PASSWORD"),
		Currency:      os.Getenv("STORE_CURRENCY"),
		NonceSecret:   os.Getenv("NONCE_SECRET"),
		AdminUser:     os.Getenv("ADMIN_USER"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	if v := os.Getenv("STORE_FINGERPRINT"); v != "" {
		fp, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing STORE_FINGERPRINT: %w", err)
		}
		c.Store.Fingerprint = fp
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Store.Currency = withDefault(strings.ToUpper(c.Store.Currency), DefaultCurrency)
	c.Store.AdminUser = withDefault(c.Store.AdminUser, "admin")
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Store.StoreURL == "" {
		return fmt.Errorf("store_url is required")
	}
	if c.Store.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Store.AppPassword == "" {
		return fmt.Errorf("app_password is required")
	}
	if c.Store.NonceSecret == "" {
		return fmt.Errorf("nonce_secret is required")
	}
	if c.Store.AdminPassword == "" {
		return fmt.Errorf("admin_password is required")
	}

	u, err := url.Parse(c.Store.StoreURL)
	if err != nil {
		return fmt.Errorf("invalid store_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid store_url: %q is not an absolute http(s) URL", c.Store.StoreURL)
	}

	switch c.CompletionMode {
	case CompletionTwoStep, CompletionDirect:
	default:
		return fmt.Errorf("invalid completion_mode %q (want %s or %s)", c.CompletionMode, CompletionTwoStep, CompletionDirect)
	}
	if c.Backdate < 0 {
		return fmt.Errorf("purchase_backdate must not be negative")
	}
	if c.LicenseCheckInterval <= 0 {
		return fmt.Errorf("license_check_interval must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// parseDuration parses a Go duration, returning def for an empty value.
func parseDuration(name, val string, def time.Duration) (time.Duration, error) {
	if val == "" {
		return def, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return d, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
