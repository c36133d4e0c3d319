package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// keyPrefix and keyVersion lead every API key: lv-v1-<secret_id>-<random>.
const (
	keyPrefix  = "lv"
	keyVersion = "v1"
	randomLen  = 32 // bytes, 64 hex chars
)

// ParseAPIKey extracts secret_id and random_data from API key format.
// Format: lv-v1-<secret_id>-<random_data> (103 chars total).
// Returns ErrInvalidKeyFormat if format doesn't match.
func ParseAPIKey(key string) (secretID, randomData string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 4 || parts[0] != keyPrefix || parts[1] != keyVersion {
		return "", "", ErrInvalidKeyFormat
	}

	secretID = parts[2]
	randomData = parts[3]

	// secret_id is a UUID without hyphens, random_data is 256 bits
	if len(secretID) != 32 || len(randomData) != 2*randomLen {
		return "", "", ErrInvalidKeyFormat
	}
	if !isLowerHex(secretID) || !isLowerHex(randomData) {
		return "", "", ErrInvalidKeyFormat
	}

	return secretID, randomData, nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// ComputeHMAC computes HMAC-SHA256 signature of API key using secret.
func ComputeHMAC(secret []byte, apiKey string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(apiKey))
	return h.Sum(nil)
}

// VerifyHMAC verifies HMAC signature using constant-time comparison.
func VerifyHMAC(expectedHash, computedHash []byte) bool {
	return hmac.Equal(expectedHash, computedHash)
}

// FormatAPIKey constructs API key from components.
func FormatAPIKey(secretID, randomData string) string {
	return fmt.Sprintf("%s-%s-%s-%s", keyPrefix, keyVersion, secretID, randomData)
}

// NewAPIKey mints a key under the newest secret (secret IDs are UUIDv7, so
// the greatest ID is the most recent) and returns the key with its HMAC.
// The key is shown once; only the hash is stored.
func NewAPIKey(secrets map[string][]byte) (key string, hash []byte, err error) {
	if len(secrets) == 0 {
		return "", nil, ErrNoSecrets
	}
	ids := make([]string, 0, len(secrets))
	for id := range secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	secretID := ids[len(ids)-1]

	random := make([]byte, randomLen)
	if _, err := rand.Read(random); err != nil {
		return "", nil, fmt.Errorf("failed to generate key: %w", err)
	}

	key = FormatAPIKey(secretID, hex.EncodeToString(random))
	return key, ComputeHMAC(secrets[secretID], key), nil
}
