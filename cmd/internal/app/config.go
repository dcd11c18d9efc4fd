package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, the schema and tables are created on startup when missing.
	DBBootstrap bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, CHORD_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) so session
	// tokens are hashed with HMAC instead of plain SHA-256.
	RequireTokenHMAC bool

	// If true, session cookies carry the Secure attribute.
	CookieSecure bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("CHORD_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("CHORD_LOG_LEVEL", "info"),
		LogFormat: EnvString("CHORD_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("CHORD_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CHORD_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CHORD_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CHORD_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("CHORD_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("CHORD_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("CHORD_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CHORD_DB_MIN_CONNS", 0),
		DBBootstrap: EnvBool("CHORD_DB_BOOTSTRAP", true),

		ReadinessRequireDB: EnvBool("CHORD_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("CHORD_REQUIRE_TOKEN_HMAC", false),

		CookieSecure: EnvBool("CHORD_COOKIE_SECURE", false),
	}
}
