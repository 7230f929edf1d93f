package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// HMACEnvKey is the env var name for the slot-digest HMAC secret.
// #nosec G101 -- not a credential; it's an environment variable name.
const HMACEnvKey = "KEEL_TOKEN_HMAC_KEY"

// DigestSHA256Hex returns a SHA-256 hex digest of s (64 hex chars).
func DigestSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// DigestHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func DigestHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a
// minimum byte length. Missing/blank -> ErrHMACKeyMissing; short -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// HMACEnabled reports whether slot digests are keyed in this runtime.
func HMACEnabled() bool {
	return strings.TrimSpace(os.Getenv(HMACEnvKey)) != ""
}

// RefreshTokenDigest digests a refresh token for server-side slot storage.
// If KEEL_TOKEN_HMAC_KEY is set, uses HMAC-SHA256(token, key); otherwise
// falls back to plain SHA-256 for dev use.
func RefreshTokenDigest(tok string) string {
	key := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if key == "" {
		return DigestSHA256Hex(tok)
	}
	return DigestHMACSHA256Hex(tok, []byte(key))
}
