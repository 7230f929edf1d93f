package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	// TrustProxy enables X-Forwarded-For / X-Real-IP parsing for client IPs.
	// Only enable behind a proxy that strips these headers from clients.
	TrustProxy bool

	// MaxBodyBytes caps request body size for JSON endpoints.
	MaxBodyBytes int64

	// CookieSecure marks the refresh cookie Secure. Off only for local dev.
	CookieSecure bool
	CookieDomain string

	// LoginIPMax failed logins per LoginIPWindow from one IP trip the
	// throttle. Zero disables it.
	LoginIPMax    int
	LoginIPWindow time.Duration
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
//
// Env surface:
//   - KEEL_AUTH_TRUST_PROXY
//   - KEEL_AUTH_MAX_BODY_BYTES
//   - KEEL_AUTH_COOKIE_SECURE
//   - KEEL_AUTH_COOKIE_DOMAIN
//   - KEEL_AUTH_LOGIN_IP_MAX
//   - KEEL_AUTH_LOGIN_IP_WINDOW
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:    envBool("KEEL_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:  envInt64("KEEL_AUTH_MAX_BODY_BYTES", 1<<20), // 1 MiB
		CookieSecure:  envBool("KEEL_AUTH_COOKIE_SECURE", true),
		CookieDomain:  strings.TrimSpace(os.Getenv("KEEL_AUTH_COOKIE_DOMAIN")),
		LoginIPMax:    envInt("KEEL_AUTH_LOGIN_IP_MAX", 20),
		LoginIPWindow: envDuration("KEEL_AUTH_LOGIN_IP_WINDOW", 5*time.Minute),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
