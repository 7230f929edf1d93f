package session

import (
	"os"
	"strings"
	"time"
)

// Config defines runtime configuration for the session subsystem.
//
// The two signing secrets are deliberately distinct per token class: a token
// signed with one secret must never verify under the other. Secrets are
// loaded once at startup and shared read-only; there is no in-process
// rotation support.
type Config struct {
	// Issuer is the value set in the "iss" claim of both token classes.
	Issuer string

	// AccessTokenTTL is the lifetime of access tokens (short by design).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens and of the stored
	// refresh slot (long; revocable by slot overwrite).
	RefreshTokenTTL time.Duration

	// AccessSecret signs access tokens (HS256).
	AccessSecret []byte

	// RefreshSecret signs refresh tokens (HS256). Must differ from AccessSecret.
	RefreshSecret []byte
}

const minSecretBytes = 32

// DefaultConfig returns defaults matching the service's security posture:
// ten-minute access tokens, seven-day refresh tokens. Secrets have no
// default and must come from the environment.
func DefaultConfig() Config {
	return Config{
		Issuer:          "keel",
		AccessTokenTTL:  10 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - KEEL_ACCESS_TOKEN_SECRET  (>= 32 bytes)
//   - KEEL_REFRESH_TOKEN_SECRET (>= 32 bytes, different from access secret)
//
// Optional:
//   - KEEL_AUTH_ISSUER
//   - KEEL_AUTH_ACCESS_TTL  (Go duration)
//   - KEEL_AUTH_REFRESH_TTL (Go duration)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("KEEL_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("KEEL_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("KEEL_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	cfg.AccessSecret = []byte(strings.TrimSpace(os.Getenv("KEEL_ACCESS_TOKEN_SECRET")))
	cfg.RefreshSecret = []byte(strings.TrimSpace(os.Getenv("KEEL_REFRESH_TOKEN_SECRET")))

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if len(c.AccessSecret) < minSecretBytes || len(c.RefreshSecret) < minSecretBytes {
		return ErrConfig
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return ErrConfig
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return ErrConfig
	}
	// Access tokens are the short-lived class; a longer access TTL than
	// refresh TTL inverts the exposure model.
	if c.AccessTokenTTL > c.RefreshTokenTTL {
		return ErrConfig
	}
	return nil
}
