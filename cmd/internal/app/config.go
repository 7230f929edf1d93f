package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL empty means in-memory credential store (dev mode).
	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// If true, KEEL_TOKEN_HMAC_KEY must be set (>= 32 bytes) so refresh-slot
	// digests are keyed rather than plain SHA-256.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("KEEL_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("KEEL_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("KEEL_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("KEEL_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("KEEL_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("KEEL_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("KEEL_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:    EnvString("KEEL_DATABASE_URL", ""),
		DBMaxConns:     EnvInt32("KEEL_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("KEEL_DB_MIN_CONNS", 0),
		MigrateOnStart: EnvBool("KEEL_DB_MIGRATE", true),

		CORSAllowedOrigins:   EnvStringSlice("KEEL_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("KEEL_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("KEEL_CORS_MAX_AGE_SECONDS", 600),

		ReadinessRequireDB: EnvBool("KEEL_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("KEEL_REQUIRE_TOKEN_HMAC", false),
	}
}
