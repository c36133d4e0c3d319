// Package config provides configuration management for logview commands.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the full logview configuration.
type Config struct {
	Web    WebConfig
	Output OutputConfig
}

// WebConfig holds configuration for the HTTP and gRPC query services.
type WebConfig struct {
	Host           string
	Port           int
	GRPCPort       int // 0 disables the gRPC listener
	LogFile        string
	MaxRecords     int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	QueryRate      float64 // requests per second per server, 0 disables limiting
	QueryBurst     int
	RequireAuth    bool
}

// OutputConfig holds configuration for terminal rendering.
type OutputConfig struct {
	// Palette lists the colors handed out to distinct fromValue colors in
	// first-seen order.
	Palette []string
}

// DefaultPalette is the color rotation used when none is configured.
var DefaultPalette = []string{"cyan", "green", "yellow", "magenta", "blue", "red", "hi-cyan", "hi-green", "hi-yellow", "hi-magenta", "hi-blue", "hi-red"}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Web: WebConfig{
			Host:           "127.0.0.1",
			Port:           8000,
			GRPCPort:       0,
			MaxRecords:     1000,
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   1 << 20,
			QueryRate:      10,
			QueryBurst:     20,
		},
		Output: OutputConfig{
			Palette: append([]string(nil), DefaultPalette...),
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports LV_HMAC_SECRET (single) and LV_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are UUIDv7 (32 hex chars without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("LV_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("LV_HMAC_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Numbered secrets keep old and new keys valid during rotation.
	for i := 1; ; i++ {
		key := fmt.Sprintf("LV_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check LV_HMAC_SECRET and LV_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
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
// Secret ID must be 32 hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}
	return secretID, secret, nil
}
