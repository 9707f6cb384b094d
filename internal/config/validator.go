package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrMissingEnv is wrapped by ValidateEnv.
var ErrMissingEnv = errors.New("missing required environment variables")

// ValidateEnv reports every name in required that is unset or empty, for binaries that read the
// environment directly instead of through Load.
func ValidateEnv(required []string) error {
	missing := make([]string, 0, len(required))
	for _, name := range required {
		if strings.TrimSpace(os.Getenv(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
}

// ValidateSessionSecret rejects an empty secret, and the development fallback in production.
func ValidateSessionSecret(secret string, production bool) error {
	switch {
	case secret == "":
		return errors.New("config: SESSION_SECRET is required")
	case production && secret == InsecureSessionSecret:
		return errors.New("config: SESSION_SECRET must be overridden when APP_ENV=production")
	}
	return nil
}

// GetEnvOrDefault returns the variable, or def when it is unset or empty.
func GetEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// GetEnvDuration parses the variable as a time.Duration, returning def when it is unset.
func GetEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := GetEnvOrDefault(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
