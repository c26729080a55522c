package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// keyPattern allows alphanumeric characters, hyphens and underscores
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateKey validates an idempotency key format against the default length
func ValidateKey(key string) error {
	return ValidateKeyWithMaxLength(key, DefaultMaxKeyLength)
}

// ValidateKeyWithMaxLength validates an idempotency key with a custom max length
func ValidateKeyWithMaxLength(key string, maxLength int) error {
	if key == "" {
		return ErrKeyRequired
	}
	if len(key) > maxLength {
		return ErrKeyTooLong
	}
	if !keyPattern.MatchString(key) {
		return ErrKeyInvalid
	}
	return nil
}

// ComputeFingerprint hashes the request line and body. A key reused for a
// different route or payload is a client bug, not a retry.
func ComputeFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeKey normalizes an idempotency key by trimming whitespace
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}
