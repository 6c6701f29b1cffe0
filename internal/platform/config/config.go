package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	pstrings "rollcall/pkg/platform/strings"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Token verifier kinds.
const (
	VerifierFirebase = "firebase"
	VerifierHMAC     = "hmac"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	Server    Server
	Identity  Identity
	Token     Token
	Store     Store
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ROLLCALL_ADDR" envDefault:":5000"`
	Environment     string        `env:"APP_ENV" envDefault:"production"`
	RequestTimeout  time.Duration `env:"ROLLCALL_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"ROLLCALL_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"ROLLCALL_CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	// TrustedProxies lists the CIDRs (for example 10.0.0.0/8) whose
	// X-Forwarded-For and X-Real-IP headers are believed. Empty trusts none.
	TrustedProxies []netip.Prefix `env:"ROLLCALL_TRUSTED_PROXIES" envSeparator:","`
	// RequireOwnerToken guards the profile routes with a bearer token whose
	// subject must match the uid in the path.
	RequireOwnerToken bool `env:"ROLLCALL_REQUIRE_OWNER_TOKEN" envDefault:"false"`
	// AdminToken guards /metrics through the X-Admin-Token header. Empty
	// leaves /metrics open.
	AdminToken      string `env:"ROLLCALL_ADMIN_TOKEN"`
	AuditBufferSize int    `env:"ROLLCALL_AUDIT_BUFFER" envDefault:"1024"`
}

// Identity configures email-to-identity derivation.
type Identity struct {
	Domain string `env:"INSTITUTION_DOMAIN" envDefault:"sece.ac.in"`
}

// Token configures ID token verification.
type Token struct {
	Verifier          string `env:"TOKEN_VERIFIER" envDefault:"firebase"`
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	HMACSigningKey    string `env:"TOKEN_HMAC_SIGNING_KEY"`
	HMACIssuer        string `env:"TOKEN_HMAC_ISSUER" envDefault:"rollcall-dev"`
	HMACAudience      string `env:"TOKEN_HMAC_AUDIENCE" envDefault:"rollcall"`
}

// Store selects and configures profile persistence.
type Store struct {
	Backend         string `env:"STORE_BACKEND" envDefault:"memory"`
	DatabaseURL     string `env:"DATABASE_URL"`
	MongoURI        string `env:"MONGO_URI"`
	MongoDatabase   string `env:"MONGO_DATABASE" envDefault:"rollcall"`
	MongoCollection string `env:"MONGO_COLLECTION" envDefault:"Students"`
}

// RedisConfig configures the optional profile cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
	ProfileTTL   time.Duration `env:"REDIS_PROFILE_TTL" envDefault:"5m"`
}

// KafkaConfig configures the optional audit stream. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	AuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"rollcall.audit"`
}

// RateLimitConfig bounds sign-in attempts per client address. The budget is
// shared across instances when Redis is configured.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	SignInRequests int           `env:"RATE_LIMIT_SIGNIN_REQUESTS" envDefault:"10"`
	Window         time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// IsDevelopment reports whether internal error details may be returned.
func (s Server) IsDevelopment() bool {
	return strings.EqualFold(s.Environment, "development")
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Server.AllowedOrigins = pstrings.DedupeAndTrimLower(cfg.Server.AllowedOrigins)
	cfg.Kafka.Brokers = pstrings.DedupeAndTrim(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// minHMACKeyLen matches the HS256 output size.
const minHMACKeyLen = 32

// Validate checks cross-field requirements env tags cannot express.
func (c Config) Validate() error {
	switch c.Token.Verifier {
	case VerifierFirebase:
		if c.Token.FirebaseProjectID == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required when TOKEN_VERIFIER=%s", VerifierFirebase)
		}
	case VerifierHMAC:
		if c.Token.HMACSigningKey == "" {
			return fmt.Errorf("TOKEN_HMAC_SIGNING_KEY is required when TOKEN_VERIFIER=%s", VerifierHMAC)
		}
		if !c.Server.IsDevelopment() && len(c.Token.HMACSigningKey) < minHMACKeyLen {
			return fmt.Errorf("TOKEN_HMAC_SIGNING_KEY must be at least %d bytes outside development", minHMACKeyLen)
		}
	default:
		return fmt.Errorf("unknown TOKEN_VERIFIER %q", c.Token.Verifier)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", BackendPostgres)
		}
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when STORE_BACKEND=%s", BackendMongo)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if c.RateLimit.Enabled && (c.RateLimit.SignInRequests < 1 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("RATE_LIMIT_SIGNIN_REQUESTS and RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}
