// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`

	// Redis (rate limiting; optional, in-memory fallback when unset)
	RedisURL string `koanf:"redis_url"`

	// Embeddings
	EmbeddingsProvider    string `koanf:"embeddings_provider"`
	EmbeddingsEndpoint    string `koanf:"embeddings_endpoint"`
	EmbeddingsModel       string `koanf:"embeddings_model"`
	EmbeddingModelVersion int    `koanf:"embedding_model_version"`

	// CORS (comma-separated origin allowlist; empty disables CORS)
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	// S3-compatible object storage (media uploads; optional)
	S3BucketName      string `koanf:"s3_bucket_name"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3MaxUploadSizeMB int    `koanf:"s3_max_upload_size_mb"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL        = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret          = errors.New("JWT_SECRET is required")
	ErrUnknownEmbeddingsProvider = errors.New("EMBEDDINGS_PROVIDER must be one of: simulated, local")
	ErrMissingEmbeddingsEndpoint = errors.New("EMBEDDINGS_ENDPOINT is required when EMBEDDINGS_PROVIDER is local")
	ErrMissingS3BucketName       = errors.New("S3_BUCKET_NAME is required")
	ErrMissingS3AccessKeyID      = errors.New("S3_ACCESS_KEY_ID is required")
	ErrMissingS3SecretAccessKey  = errors.New("S3_SECRET_ACCESS_KEY is required")
	ErrMissingS3Endpoint         = errors.New("S3_ENDPOINT is required")
	ErrInvalidPort               = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort                  = 8080
	DefaultEnv                   = "development"
	DefaultEmbeddingsProvider    = "simulated"
	DefaultEmbeddingModelVersion = 1
	DefaultS3MaxUploadSizeMB     = 15
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	modelVersion, versionErr := getEnvIntOrDefault("EMBEDDING_MODEL_VERSION", k.Int("embedding_model_version"), DefaultEmbeddingModelVersion)
	if versionErr != nil {
		loadErrs = append(loadErrs, versionErr)
	}

	maxUploadSize, uploadSizeErr := getEnvIntOrDefault("S3_MAX_UPLOAD_SIZE_MB", k.Int("s3_max_upload_size_mb"), DefaultS3MaxUploadSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                  port,
		Env:                   getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		DatabaseURL:           getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		JWTSecret:             getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		RedisURL:              getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		EmbeddingsProvider:    getEnvOrDefault("EMBEDDINGS_PROVIDER", k.String("embeddings_provider"), DefaultEmbeddingsProvider),
		EmbeddingsEndpoint:    getEnvOrKoanf("EMBEDDINGS_ENDPOINT", k, "embeddings_endpoint"),
		EmbeddingsModel:       getEnvOrKoanf("EMBEDDINGS_MODEL", k, "embeddings_model"),
		EmbeddingModelVersion: modelVersion,
		CORSAllowedOrigins:    getEnvOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		S3BucketName:          getEnvOrKoanf("S3_BUCKET_NAME", k, "s3_bucket_name"),
		S3AccessKeyID:         getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey:     getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		S3Endpoint:            getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		S3MaxUploadSizeMB:     maxUploadSize,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// CORSOrigins splits the comma-separated origin allowlist. Returns nil when
// no origins are configured.
func (c *Config) CORSOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: A port value of 0 from a YAML file will fall back to the default; port 0 is not supported in YAML files.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}

	// The provider set is closed: a typo must fail startup, not silently
	// fall back to the simulated provider.
	switch c.EmbeddingsProvider {
	case "simulated":
	case "local":
		if c.EmbeddingsEndpoint == "" {
			errs = append(errs, ErrMissingEmbeddingsEndpoint)
		}
	default:
		errs = append(errs, fmt.Errorf("%w (got %q)", ErrUnknownEmbeddingsProvider, c.EmbeddingsProvider))
	}

	// S3 configuration is optional. Only validate fields if any S3 value is set.
	if c.S3BucketName != "" || c.S3AccessKeyID != "" || c.S3SecretAccessKey != "" || c.S3Endpoint != "" {
		if c.S3BucketName == "" {
			errs = append(errs, ErrMissingS3BucketName)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretAccessKey)
		}
		if c.S3Endpoint == "" {
			errs = append(errs, ErrMissingS3Endpoint)
		}
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                    fmt.Sprintf("%d", c.Port),
		"env":                     c.Env,
		"database_url":            maskDatabaseURL(c.DatabaseURL),
		"jwt_secret":              maskSecret(c.JWTSecret),
		"redis_url":               maskDatabaseURL(c.RedisURL),
		"embeddings_provider":     c.EmbeddingsProvider,
		"embeddings_endpoint":     c.EmbeddingsEndpoint,
		"embeddings_model":        c.EmbeddingsModel,
		"embedding_model_version": fmt.Sprintf("%d", c.EmbeddingModelVersion),
		"cors_allowed_origins":    c.CORSAllowedOrigins,
		"s3_bucket_name":          c.S3BucketName,
		"s3_access_key_id":        maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key":    maskSecret(c.S3SecretAccessKey),
		"s3_endpoint":             c.S3Endpoint,
		"s3_max_upload_size_mb":   fmt.Sprintf("%d", c.S3MaxUploadSizeMB),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Supports postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
