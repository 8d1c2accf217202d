// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Storage    StorageConfig
	MinIO      MinIOConfig
	Generation GenerationConfig
	Download   DownloadConfig
	Session    SessionConfig
	Auth       AuthConfig
	Rate       RateLimitConfig
	Security   SecurityConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response.
	// Zero keeps long dataset downloads from being cut off (default: 0s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds repository settings.
type DatabaseConfig struct {
	// Driver selects the repository: postgres or memory (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Bootstrap creates the tables on startup if they do not exist (default: true)
	Bootstrap bool `env:"DB_BOOTSTRAP" default:"true"`
}

// StorageConfig selects where generated files live.
type StorageConfig struct {
	// Backend is local or minio (default: local)
	Backend string `env:"STORAGE_BACKEND" default:"local"`

	// MediaRoot is the directory for generated files with the local backend (default: media)
	MediaRoot string `env:"MEDIA_ROOT" default:"media"`
}

// MinIOConfig holds object storage settings for the minio backend.
type MinIOConfig struct {
	Endpoint  string `env:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey string `env:"MINIO_ACCESS_KEY"`
	SecretKey string `env:"MINIO_SECRET_KEY"`
	UseSSL    bool   `env:"MINIO_USE_SSL" default:"false"`
	Region    string `env:"MINIO_REGION"`
	Bucket    string `env:"MINIO_BUCKET" default:"datasets"`
}

// GenerationConfig holds background generation settings.
type GenerationConfig struct {
	// BatchSize is the number of rows per write and per download chunk (default: 1000)
	BatchSize int `env:"GENERATION_BATCH_SIZE" default:"1000"`

	// Workers is the number of concurrent generation jobs (default: 4)
	Workers int `env:"GENERATION_WORKERS" default:"4"`

	// QueueSize is the capacity of the in-process job queue (default: 256)
	QueueSize int `env:"GENERATION_QUEUE_SIZE" default:"256"`

	// MaxAttempts is how many times a job runs before it is marked failed (default: 5)
	MaxAttempts int `env:"GENERATION_MAX_ATTEMPTS" default:"5"`

	// RetryBackoff is the delay before the first retry, doubled per attempt (default: 2s)
	RetryBackoff time.Duration `env:"GENERATION_RETRY_BACKOFF" default:"2s"`

	// MaxBackoff caps the retry delay (default: 1m)
	MaxBackoff time.Duration `env:"GENERATION_MAX_BACKOFF" default:"1m"`

	// MaxRows is the largest row count a dataset may request (default: 10000000)
	MaxRows int `env:"GENERATION_MAX_ROWS" default:"10000000"`

	// ScanInterval is how often the scheduler looks for due and stale jobs (default: 1m)
	ScanInterval time.Duration `env:"GENERATION_SCAN_INTERVAL" default:"1m"`

	// StaleAfter is how long a job may stay running before it is requeued (default: 30m)
	StaleAfter time.Duration `env:"GENERATION_STALE_AFTER" default:"30m"`
}

// DownloadConfig holds streaming download settings.
type DownloadConfig struct {
	// MaxConcurrent is the maximum number of parallel downloads (default: 10)
	MaxConcurrent int `env:"DOWNLOAD_MAX_CONCURRENT" default:"10"`

	// MaxWaitTime is how long to wait for a download slot (default: 10s)
	MaxWaitTime time.Duration `env:"DOWNLOAD_MAX_WAIT_TIME" default:"10s"`
}

// SessionConfig holds cookie session settings.
type SessionConfig struct {
	// Secret signs session cookies; at least 32 characters (required)
	Secret string `env:"SESSION_SECRET" required:"true"`

	// Name is the cookie name (default: dummycsv_session)
	Name string `env:"SESSION_NAME" default:"dummycsv_session"`

	// MaxAge is the session lifetime (default: 12h)
	MaxAge time.Duration `env:"SESSION_MAX_AGE" default:"12h"`

	// Secure marks the cookie HTTPS-only (default: false)
	Secure bool `env:"SESSION_SECURE" default:"false"`
}

// AuthConfig holds account settings.
type AuthConfig struct {
	// AllowRegistration enables POST /api/auth/register (default: false)
	AllowRegistration bool `env:"AUTH_ALLOW_REGISTRATION" default:"false"`

	// BootstrapUser and BootstrapPassword create an account on startup when both are set
	BootstrapUser     string `env:"AUTH_BOOTSTRAP_USER"`
	BootstrapPassword string `env:"AUTH_BOOTSTRAP_PASSWORD"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
