// Package config provides configuration management for the condition services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable read by this package.
const EnvPrefix = "COND"

// ConditionAPIConfig holds configuration for the gRPC condition API service.
type ConditionAPIConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	// MaxDocumentBytes caps encoded condition documents accepted over the API.
	MaxDocumentBytes int
	// MetricsPort serves /metrics over HTTP; 0 disables the endpoint.
	MetricsPort int
	DataDir     string
	// DatabaseURL selects the condition set store; empty derives a SQLite
	// database under DataDir.
	DatabaseURL string
	// DefinitionsFile is a YAML or JSON registry; empty selects the built-in catalog.
	DefinitionsFile string
	LogLevel        string
	LogFormat       string
}

// DefaultConditionAPIConfig returns configuration with default values.
func DefaultConditionAPIConfig() *ConditionAPIConfig {
	return &ConditionAPIConfig{
		Host:             "0.0.0.0",
		Port:             50061,
		MaxConnections:   1000,
		RequestTimeout:   30 * time.Second,
		MaxDocumentBytes: 1024 * 1024,
		MetricsPort:      0,
		DataDir:          "./data",
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// DatabaseURLOrDefault returns DatabaseURL, or sqlite://<DataDir>/conditions.db.
func (c *ConditionAPIConfig) DatabaseURLOrDefault() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return "sqlite://" + filepath.ToSlash(filepath.Join(c.DataDir, "conditions.db"))
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports COND_HMAC_SECRET (single) and COND_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)
	single := EnvPrefix + "_HMAC_SECRET"

	add := func(name, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' in %s (check %s and %s_* for conflicts)", secretID, name, single, single)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv(single); val != "" {
		if err := add(single, val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation.
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", single, i)
		val := os.Getenv(name)
		if val == "" {
			break
		}
		if err := add(name, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret of at least 32 bytes.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lowercase hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	id, encoded, ok := strings.Cut(strings.TrimSpace(envValue), ":")
	if !ok {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	if len(id) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(encoded)
	if err != nil {
		return "", nil, err
	}
	return id, secret, nil
}
