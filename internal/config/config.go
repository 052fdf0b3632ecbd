// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// TLS (both set enables HTTPS)
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Storage backend ("databricks", "s3" or "local", default: "databricks")
	StorageBackend string `yaml:"storage_backend"`

	// VolumePath is the volume root listed and uploaded into, e.g.
	// /Volumes/catalog/schema/files/
	VolumePath string `yaml:"volume_path"`

	// Databricks Files API
	DatabricksHost  string        `yaml:"databricks_host"`
	DatabricksToken string        `yaml:"databricks_token"`
	HTTPTimeout     time.Duration `yaml:"http_timeout"`

	// S3 storage
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Region    string `yaml:"s3_region"`

	// Local storage
	LocalStoragePath string `yaml:"local_storage_path"`

	// Uploads (0 = unlimited)
	MaxUploadSize int64 `yaml:"max_upload_size"`

	// Sessions
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
}

// Load reads configuration from environment variables with defaults.
// If CONFIG_FILE is set, the YAML file is read first and environment
// variables override its values.
func Load() (*Config, error) {
	base := &Config{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, base); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr:         envOr("LISTEN_ADDR", or(base.ListenAddr, ":8080")),
		MetricsAddr:        envOr("METRICS_ADDR", or(base.MetricsAddr, ":9090")),
		TLSCertFile:        envOr("TLS_CERT_FILE", base.TLSCertFile),
		TLSKeyFile:         envOr("TLS_KEY_FILE", base.TLSKeyFile),
		LogLevel:           envOr("LOG_LEVEL", or(base.LogLevel, "info")),
		LogFormat:          envOr("LOG_FORMAT", or(base.LogFormat, "json")),
		StorageBackend:     envOr("STORAGE_BACKEND", or(base.StorageBackend, "databricks")),
		VolumePath:         envOr("VOLUME_PATH", base.VolumePath),
		DatabricksHost:     envOr("DATABRICKS_HOST", base.DatabricksHost),
		DatabricksToken:    envOr("DATABRICKS_TOKEN", base.DatabricksToken),
		HTTPTimeout:        envDuration("HTTP_TIMEOUT", base.HTTPTimeout), // 0 = client default
		S3Endpoint:         envOr("S3_ENDPOINT", or(base.S3Endpoint, "http://localhost:9000")),
		S3Bucket:           envOr("S3_BUCKET", or(base.S3Bucket, "volumes")),
		S3AccessKey:        envOr("S3_ACCESS_KEY", or(base.S3AccessKey, "minioadmin")),
		S3SecretKey:        envOr("S3_SECRET_KEY", or(base.S3SecretKey, "minioadmin")),
		S3Region:           envOr("S3_REGION", or(base.S3Region, "us-east-1")),
		LocalStoragePath:   envOr("LOCAL_STORAGE_PATH", or(base.LocalStoragePath, "/data/volume")),
		MaxUploadSize:      envInt64("MAX_UPLOAD_SIZE", base.MaxUploadSize),
		SessionIdleTimeout: envDuration("SESSION_IDLE_TIMEOUT", durationOr(base.SessionIdleTimeout, 12*time.Hour)),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case "databricks":
		if c.DatabricksHost == "" {
			return fmt.Errorf("DATABRICKS_HOST is required")
		}
		if c.DatabricksToken == "" {
			return fmt.Errorf("DATABRICKS_TOKEN is required")
		}
		if c.VolumePath == "" {
			return fmt.Errorf("VOLUME_PATH is required")
		}
	case "s3", "local":
		if c.VolumePath == "" {
			c.VolumePath = "/"
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}
	return nil
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v != 0 {
		return v
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
