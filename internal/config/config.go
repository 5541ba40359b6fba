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

	"cartsync/internal/cart"
	"cartsync/internal/gateway"
	"cartsync/internal/session"
)

// Defaults applied when a setting is absent.
const (
	DefaultPort           = "8080"
	DefaultGatewayTimeout = 30 * time.Second
)

// Config holds all service configuration.
// Environment determines whether gateway credentials load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SecretID   string

	// Cart service connection
	Gateway GatewayConfig

	// Engine and session tuning
	RefreshDelay   time.Duration
	SessionIdleTTL time.Duration
}

// GatewayConfig describes how to reach the cart service.
// In production, BaseURL and APIKey are loaded from Secret Manager as JSON.
type GatewayConfig struct {
	BaseURL   string        `json:"base_url"`
	APIKey    string        `json:"api_key,omitempty"`
	Timeout   time.Duration `json:"-"`
	ChromeTLS bool          `json:"chrome_tls,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", DefaultPort),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		SecretID:    envOrDefault("SECRET_ID", "cartsync-gateway"),
	}

	var err error
	if cfg.Gateway.Timeout, err = envDuration("GATEWAY_TIMEOUT", DefaultGatewayTimeout); err != nil {
		return nil, err
	}
	if cfg.RefreshDelay, err = envDuration("REFRESH_DELAY", cart.DefaultRefreshDelay); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = envDuration("SESSION_IDLE_TTL", session.DefaultIdleTTL); err != nil {
		return nil, err
	}
	if v := os.Getenv("GATEWAY_CHROME_TLS"); v != "" {
		if cfg.Gateway.ChromeTLS, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("parsing GATEWAY_CHROME_TLS: %w", err)
		}
	}

	// Load gateway credentials based on environment
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading gateway config: %w", err)
	}

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

	// Durations are Go duration strings in the file
	var fileConfig struct {
		Port           string        `json:"port"`
		Environment    string        `json:"environment"`
		LogLevel       string        `json:"log_level"`
		Gateway        GatewayConfig `json:"gateway"`
		GatewayTimeout string        `json:"gateway_timeout"`
		RefreshDelay   string        `json:"refresh_delay"`
		SessionIdleTTL string        `json:"session_idle_ttl"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, DefaultPort),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		Gateway:     fileConfig.Gateway,
	}

	if cfg.Gateway.Timeout, err = parseDuration("gateway_timeout", fileConfig.GatewayTimeout, DefaultGatewayTimeout); err != nil {
		return nil, err
	}
	if cfg.RefreshDelay, err = parseDuration("refresh_delay", fileConfig.RefreshDelay, cart.DefaultRefreshDelay); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = parseDuration("session_idle_ttl", fileConfig.SessionIdleTTL, session.DefaultIdleTTL); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches gateway credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
// Settings not present in the secret keep their env var values.
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	c.loadFromEnv()
	return c.applySecret(result.Payload.Data)
}

// applySecret overlays the JSON secret payload on the gateway settings.
func (c *Config) applySecret(data []byte) error {
	var secret GatewayConfig
	if err := json.Unmarshal(data, &secret); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if secret.BaseURL != "" {
		c.Gateway.BaseURL = secret.BaseURL
	}
	if secret.APIKey != "" {
		c.Gateway.APIKey = secret.APIKey
	}
	return nil
}

// loadFromEnv reads gateway settings from individual environment variables.
func (c *Config) loadFromEnv() {
	c.Gateway.BaseURL = os.Getenv("GATEWAY_BASE_URL")
	c.Gateway.APIKey = os.Getenv("GATEWAY_API_KEY")
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway base_url is required")
	}

	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid gateway base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid gateway base_url: scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("invalid gateway base_url: missing host")
	}

	if c.RefreshDelay < 0 {
		return fmt.Errorf("refresh delay must not be negative")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("session idle TTL must be positive")
	}

	return nil
}

// BuildGatewayConfig creates the cart service client configuration.
func (c *Config) BuildGatewayConfig() gateway.Config {
	return gateway.Config{
		BaseURL:   strings.TrimSuffix(c.Gateway.BaseURL, "/"),
		APIKey:    c.Gateway.APIKey,
		Timeout:   c.Gateway.Timeout,
		ChromeTLS: c.Gateway.ChromeTLS,
	}
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// envDuration parses a Go duration from the environment.
func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	return parseDuration(key, os.Getenv(key), defaultVal)
}

func parseDuration(name, val string, defaultVal time.Duration) (time.Duration, error) {
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", name, err)
	}
	return d, nil
}
