// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; signs access tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; verifies access tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "merchant-docs-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "merchant-docs-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// RefreshTTLRaw is the refresh record lifetime (e.g. "720h" = 30d).
	RefreshTTLRaw string `mapstructure:"REFRESH_TTL"`

	// Argon2MemoryKB is the argon2id memory parameter in KiB; default 65536.
	Argon2MemoryKB uint32 `mapstructure:"ARGON2_MEMORY_KB"`
	// Argon2Time is the argon2id time (iterations) parameter; default 3.
	Argon2Time uint32 `mapstructure:"ARGON2_TIME"`
	// Argon2Parallelism is the argon2id lanes parameter; default 2.
	Argon2Parallelism uint8 `mapstructure:"ARGON2_PARALLELISM"`

	// TOTPIssuer is the issuer label embedded in otpauth:// provisioning URIs.
	TOTPIssuer string `mapstructure:"TOTP_ISSUER"`

	// RedisAddr enables the redis login-attempt limiter when set (e.g. localhost:6379).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// LoginAttemptLimit is the max failed logins per email+IP inside the window; default 10.
	LoginAttemptLimit int `mapstructure:"LOGIN_ATTEMPT_LIMIT"`
	// LoginAttemptWindow is the limiter window (e.g. "15m").
	LoginAttemptWindow string `mapstructure:"LOGIN_ATTEMPT_WINDOW"`

	// UploadBaseURL is the base URL presigned upload/download links point at.
	UploadBaseURL string `mapstructure:"UPLOAD_BASE_URL"`
	// UploadSigningSecret signs presigned URLs; required in production.
	UploadSigningSecret string `mapstructure:"UPLOAD_SIGNING_SECRET"`

	// SecurityKafkaBrokers is a comma-separated broker list; empty disables the event stream.
	SecurityKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityKafkaTopic is the topic security events are produced to.
	SecurityKafkaTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`
	// SecurityKafkaGroupID is the consumer group the archiver worker joins.
	SecurityKafkaGroupID string `mapstructure:"SECURITY_EVENTS_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "merchant-docs-auth")
	v.SetDefault("JWT_AUDIENCE", "merchant-docs-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("REFRESH_TTL", "720h") // 30d
	v.SetDefault("ARGON2_MEMORY_KB", 64*1024)
	v.SetDefault("ARGON2_TIME", 3)
	v.SetDefault("ARGON2_PARALLELISM", 2)
	v.SetDefault("TOTP_ISSUER", "MerchantDocs")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOGIN_ATTEMPT_LIMIT", 10)
	v.SetDefault("LOGIN_ATTEMPT_WINDOW", "15m")
	v.SetDefault("UPLOAD_BASE_URL", "http://localhost:9000/uploads")
	v.SetDefault("UPLOAD_SIGNING_SECRET", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_TOPIC", "merchant-docs-security")
	v.SetDefault("SECURITY_EVENTS_GROUP_ID", "merchant-docs-archiver")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.Argon2MemoryKB < 8*1024 {
		return nil, errors.New("config: ARGON2_MEMORY_KB must be at least 8192")
	}
	if cfg.Argon2Time < 1 {
		return nil, errors.New("config: ARGON2_TIME must be at least 1")
	}
	if cfg.Argon2Parallelism < 1 {
		return nil, errors.New("config: ARGON2_PARALLELISM must be at least 1")
	}
	if cfg.LoginAttemptLimit < 1 {
		return nil, errors.New("config: LOGIN_ATTEMPT_LIMIT must be at least 1")
	}
	if cfg.Env == "production" && cfg.UploadSigningSecret == "" {
		return nil, errors.New("config: UPLOAD_SIGNING_SECRET must be set when APP_ENV=production")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses RefreshTTLRaw as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTTLRaw)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// AttemptWindow parses LoginAttemptWindow as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AttemptWindow() time.Duration {
	d, err := time.ParseDuration(c.LoginAttemptWindow)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// SecurityKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// A non-empty list means the security event stream is enabled.
func (c *Config) SecurityKafkaBrokersList() []string {
	if c == nil || c.SecurityKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.SecurityKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
