package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Every missing or malformed variable is reported in one error.
func Load() (*Config, error) {
	cfg := &Config{}

	var problems []string
	loadStruct(reflect.ValueOf(cfg).Elem(), &problems)
	if len(problems) > 0 {
		return nil, fmt.Errorf("config load:\n  - %s", strings.Join(problems, "\n  - "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct populates struct fields from environment variables, recursing
// into the config groups, and appends one entry to problems per variable
// that is missing or cannot be parsed.
func loadStruct(v reflect.Value, problems *[]string) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			loadStruct(fieldVal, problems)
			continue
		}

		envName, ok := field.Tag.Lookup("env")
		if !ok || envName == "" {
			continue
		}

		value, set := lookupEnv(envName, field.Tag.Get("envAlt"))
		if !set {
			if field.Tag.Get("required") == "true" {
				*problems = append(*problems, fmt.Sprintf("required environment variable %s is not set", envName))
				continue
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			*problems = append(*problems, fmt.Sprintf("invalid value for %s=%q: %v", envName, value, err))
		}
	}
}

// lookupEnv reads name, falling back to alt. Empty values count as unset.
func lookupEnv(name, alt string) (string, bool) {
	if v := os.Getenv(name); v != "" {
		return v, true
	}
	if alt != "" {
		if v := os.Getenv(alt); v != "" {
			return v, true
		}
	}
	return "", false
}

var durationType = reflect.TypeOf(time.Duration(0))

// setField parses value into field according to the field's type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int64:
		if field.Type() != durationType {
			return fmt.Errorf("unsupported int64 type: %s", field.Type())
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))

	case reflect.Int:
		i, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(int64(i))

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		// Comma-separated, blanks dropped
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	switch strings.ToLower(c.Database.Driver) {
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required when DB_DRIVER is postgres")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("DB_DRIVER (%q) must be one of: postgres, memory", c.Database.Driver))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.WriteTimeout < 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, "SERVER_REQUEST_TIMEOUT must be positive")
	}

	// Storage validation
	switch strings.ToLower(c.Storage.Backend) {
	case "local":
		if c.Storage.MediaRoot == "" {
			errs = append(errs, "MEDIA_ROOT is required when STORAGE_BACKEND is local")
		}
	case "minio":
		if c.MinIO.Endpoint == "" {
			errs = append(errs, "MINIO_ENDPOINT is required when STORAGE_BACKEND is minio")
		}
		if c.MinIO.Bucket == "" {
			errs = append(errs, "MINIO_BUCKET is required when STORAGE_BACKEND is minio")
		}
		if c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			errs = append(errs, "MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when STORAGE_BACKEND is minio")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_BACKEND (%q) must be one of: local, minio", c.Storage.Backend))
	}

	// Generation validation
	if c.Generation.BatchSize <= 0 {
		errs = append(errs, "GENERATION_BATCH_SIZE must be positive")
	}
	if c.Generation.Workers <= 0 {
		errs = append(errs, "GENERATION_WORKERS must be positive")
	}
	if c.Generation.QueueSize <= 0 {
		errs = append(errs, "GENERATION_QUEUE_SIZE must be positive")
	}
	if c.Generation.MaxAttempts <= 0 {
		errs = append(errs, "GENERATION_MAX_ATTEMPTS must be positive")
	}
	if c.Generation.RetryBackoff <= 0 {
		errs = append(errs, "GENERATION_RETRY_BACKOFF must be positive")
	}
	if c.Generation.MaxBackoff < c.Generation.RetryBackoff {
		errs = append(errs, "GENERATION_MAX_BACKOFF must be >= GENERATION_RETRY_BACKOFF")
	}
	if c.Generation.MaxRows <= 0 {
		errs = append(errs, "GENERATION_MAX_ROWS must be positive")
	}
	if c.Generation.ScanInterval <= 0 {
		errs = append(errs, "GENERATION_SCAN_INTERVAL must be positive")
	}
	if c.Generation.StaleAfter <= 0 {
		errs = append(errs, "GENERATION_STALE_AFTER must be positive")
	}

	// Download validation
	if c.Download.MaxConcurrent <= 0 {
		errs = append(errs, "DOWNLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Download.MaxWaitTime <= 0 {
		errs = append(errs, "DOWNLOAD_MAX_WAIT_TIME must be positive")
	}

	// Session validation
	if len(c.Session.Secret) < 32 {
		errs = append(errs, "SESSION_SECRET must be at least 32 characters")
	}
	if c.Session.MaxAge <= 0 {
		errs = append(errs, "SESSION_MAX_AGE must be positive")
	}

	// Auth validation
	if (c.Auth.BootstrapUser == "") != (c.Auth.BootstrapPassword == "") {
		errs = append(errs, "AUTH_BOOTSTRAP_USER and AUTH_BOOTSTRAP_PASSWORD must be set together")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Secrets like the database URL, MinIO keys and the session secret are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {Driver: %q, URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.Driver, c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Storage: {Backend: %q, MediaRoot: %q, Bucket: %q}, ",
		c.Storage.Backend, c.Storage.MediaRoot, c.MinIO.Bucket))
	b.WriteString(fmt.Sprintf("Generation: {BatchSize: %d, Workers: %d, MaxAttempts: %d, MaxRows: %d}, ",
		c.Generation.BatchSize, c.Generation.Workers, c.Generation.MaxAttempts, c.Generation.MaxRows))
	b.WriteString(fmt.Sprintf("Download: {MaxConcurrent: %d}, ", c.Download.MaxConcurrent))
	b.WriteString(fmt.Sprintf("Session: {Name: %q, Secret: [MASKED]}, ", c.Session.Name))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
