// Package config loads the portal configuration from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// InsecureSessionSecret is the development fallback signing key. It must be overridden outside development.
const InsecureSessionSecret = "fallback-secret-key"

// Config holds portal configuration loaded from the environment.
type Config struct {
	Port string `mapstructure:"PORTAL_PORT"`
	// Env is the application environment; "production" turns on Secure cookies.
	Env string `mapstructure:"APP_ENV"`

	// APIBaseURL is the backend origin (without /api/v1). It is the only API URL variable;
	// server-side actions and the API client both read it.
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// BackendServiceName enables Consul discovery of the backend when CONSUL_HTTP_ADDR is set.
	BackendServiceName string        `mapstructure:"BACKEND_SERVICE_NAME"`
	HTTPClientTimeout  time.Duration `mapstructure:"HTTP_CLIENT_TIMEOUT"`

	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	// GuardVerifySession makes the route guard verify the session signature instead of checking presence only.
	GuardVerifySession bool `mapstructure:"GUARD_VERIFY_SESSION"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	ConsulAddr     string `mapstructure:"CONSUL_HTTP_ADDR"`
	ConsulToken    string `mapstructure:"CONSUL_HTTP_TOKEN"`
	ServiceHost    string `mapstructure:"PORTAL_HOST"`
	RegisterConsul bool   `mapstructure:"PORTAL_REGISTER_CONSUL"`

	KafkaBrokers         string `mapstructure:"KAFKA_BROKERS"`
	KafkaAuthEventsTopic string `mapstructure:"KAFKA_TOPIC_AUTH_EVENTS"`

	S3Endpoint       string        `mapstructure:"S3_ENDPOINT"`
	S3PublicEndpoint string        `mapstructure:"S3_PUBLIC_ENDPOINT"`
	S3AccessKey      string        `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey      string        `mapstructure:"S3_SECRET_KEY"`
	S3Bucket         string        `mapstructure:"S3_BUCKET_NAME"`
	S3UseSSL         bool          `mapstructure:"S3_USE_SSL"`
	InvoiceURLTTL    time.Duration `mapstructure:"INVOICE_URL_TTL"`

	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

var defaults = map[string]any{
	"PORTAL_PORT":             "3000",
	"APP_ENV":                 "development",
	"API_BASE_URL":            "http://localhost:8080",
	"BACKEND_SERVICE_NAME":    "",
	"HTTP_CLIENT_TIMEOUT":     "15s",
	"SESSION_SECRET":          InsecureSessionSecret,
	"SESSION_TTL":             "168h",
	"GUARD_VERIFY_SESSION":    false,
	"REDIS_ADDR":              "",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"CONSUL_HTTP_ADDR":        "",
	"CONSUL_HTTP_TOKEN":       "",
	"PORTAL_HOST":             "localhost",
	"PORTAL_REGISTER_CONSUL":  false,
	"KAFKA_BROKERS":           "",
	"KAFKA_TOPIC_AUTH_EVENTS": "portal-auth-events",
	"S3_ENDPOINT":             "",
	"S3_PUBLIC_ENDPOINT":      "",
	"S3_ACCESS_KEY":           "",
	"S3_SECRET_KEY":           "",
	"S3_BUCKET_NAME":          "",
	"S3_USE_SSL":              false,
	"INVOICE_URL_TTL":         "15m",
	"SERVER_READ_TIMEOUT":     "15s",
	"SERVER_WRITE_TIMEOUT":    "30s",
	"SERVER_IDLE_TIMEOUT":     "60s",
}

// Load reads .env (if present), then builds and validates Config from the environment.
// Env vars override .env.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		_ = v.ReadInConfig() // missing .env is fine
	}

	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: PORTAL_PORT must be set")
	}
	if c.APIBaseURL == "" && c.BackendServiceName == "" {
		return errors.New("config: API_BASE_URL or BACKEND_SERVICE_NAME must be set")
	}
	if err := ValidateSessionSecret(c.SessionSecret, c.IsProduction()); err != nil {
		return err
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// UsesInsecureSecret reports whether the session secret is empty or the development fallback.
func (c *Config) UsesInsecureSecret() bool {
	return c.SessionSecret == "" || c.SessionSecret == InsecureSessionSecret
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool { return c.RedisAddr != "" }

// KafkaEnabled reports whether Kafka brokers are configured.
func (c *Config) KafkaEnabled() bool { return c.KafkaBrokers != "" }

// StorageEnabled reports whether the S3 invoice archive is configured.
func (c *Config) StorageEnabled() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != "" && c.S3Bucket != ""
}

// DiscoveryEnabled reports whether the backend should be resolved through Consul.
func (c *Config) DiscoveryEnabled() bool {
	return c.ConsulAddr != "" && c.BackendServiceName != ""
}
