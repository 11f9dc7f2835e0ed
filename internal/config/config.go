// Package config provides configuration for the blog server and the visitor
// runtime.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	blogerrors "github.com/EHam1/very-professional-blog/internal/errors"
	"github.com/EHam1/very-professional-blog/internal/eventstore"
	"github.com/EHam1/very-professional-blog/internal/storage"
)

// Env is the run mode.
type Env string

const (
	EnvDevelopment Env = "development"
	EnvProduction  Env = "production"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "BLOG_"

// EnvFiles are the dotenv files LoadEnvFile reads, in order.
var EnvFiles = []string{".env", ".env.local"}

// Config holds the configuration of the blog services.
type Config struct {
	// Env is the run mode: development or production
	Env Env `json:"env" yaml:"env"`

	// DataDir is the base directory for local data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// gRPC configuration
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`

	// Storage configuration for the event sink
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Archive configuration for object-storage backends
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Content configuration
	Content ContentConfig `json:"content" yaml:"content"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`

	// Tracking configuration for the visitor runtime
	Tracking TrackingConfig `json:"tracking" yaml:"tracking"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP listen address
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether gRPC is enabled
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// StorageConfig selects the durable event store. Both URL and Key are
// optional; without them the sink runs degraded.
type StorageConfig struct {
	// URL selects the backend by scheme (sqlite://, http(s)://, s3://, local://)
	URL string `json:"url" yaml:"url"`

	// Key authenticates REST backends
	Key string `json:"key" yaml:"key"`

	// Table is the event table name
	Table string `json:"table" yaml:"table"`
}

// ArchiveConfig holds object-storage settings for archive backends.
type ArchiveConfig struct {
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 client configuration.
type S3Config struct {
	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle enables path-style addressing
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// ContentConfig holds content provider configuration.
type ContentConfig struct {
	// Dir holds the *.md and *.mdx posts
	Dir string `json:"dir" yaml:"dir"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level" yaml:"level"`

	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// TrackingConfig holds event emitter configuration.
type TrackingConfig struct {
	// Endpoint is the sink URL events are posted to
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Timeout bounds a single transmission
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Env:     EnvDevelopment,
		DataDir: "./data/blog",
		HTTP: HTTPConfig{
			Addr:         ":3000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: false,
		},
		Storage: StorageConfig{
			Table: eventstore.DefaultTable,
		},
		Archive: ArchiveConfig{
			S3: S3Config{Region: storage.DefaultS3Config().Region},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracking: TrackingConfig{
			Endpoint: "http://localhost:3000/api/log",
			Timeout:  5 * time.Second,
		},
	}
}

// Resolve fills paths derived from DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/blog"
	}
	if c.Content.Dir == "" {
		c.Content.Dir = filepath.Join(c.DataDir, "posts")
	}
	if c.Storage.Table == "" {
		c.Storage.Table = eventstore.DefaultTable
	}
}

// Validate validates the configuration. Missing storage settings are not an
// error.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return blogerrors.NewConfigError(fmt.Sprintf("invalid env: %s (must be development or production)", c.Env))
	}

	if c.DataDir == "" {
		return blogerrors.NewConfigError("data_dir is required")
	}
	if c.HTTP.Addr == "" {
		return blogerrors.NewConfigError("http.addr is required")
	}
	if c.GRPC.Enabled && c.GRPC.Addr == "" {
		return blogerrors.NewConfigError("grpc.addr is required when grpc is enabled")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return blogerrors.NewConfigError(fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if c.Tracking.Timeout < 0 {
		return blogerrors.NewConfigError("tracking.timeout must not be negative")
	}

	return nil
}

// IsDevelopment reports whether the run mode is development.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// StorageConfigured reports whether the sink can persist events.
func (c *Config) StorageConfigured() bool {
	return eventstore.Configured(c.Storage.URL, c.Storage.Key)
}

// S3 returns the archive's S3 client settings.
func (c *Config) S3() storage.S3Config {
	return storage.S3Config{
		Region:       c.Archive.S3.Region,
		Endpoint:     c.Archive.S3.Endpoint,
		UsePathStyle: c.Archive.S3.UsePathStyle,
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadEnvFile loads EnvFiles from dir into the process environment. Variables
// already set are never overridden, and missing files are skipped.
func LoadEnvFile(dir string) error {
	for _, name := range EnvFiles {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the BLOG_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := getenv("ENV"); v != "" {
		cfg.Env = Env(v)
	}
	if v := getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP configuration
	if v := getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := getenv("HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = d
		}
	}
	if v := getenv("HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = d
		}
	}

	// gRPC configuration
	if v := getenv("GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
	if v := getenv("GRPC_ENABLED"); v != "" {
		cfg.GRPC.Enabled = v == "true" || v == "1"
	}

	// Storage configuration
	if v := getenv("STORAGE_URL"); v != "" {
		cfg.Storage.URL = v
	}
	if v := getenv("STORAGE_KEY"); v != "" {
		cfg.Storage.Key = v
	}
	if v := getenv("STORAGE_TABLE"); v != "" {
		cfg.Storage.Table = v
	}
	if v := getenv("S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := getenv("S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}
	if v := getenv("S3_USE_PATH_STYLE"); v != "" {
		cfg.Archive.S3.UsePathStyle = v == "true" || v == "1"
	}

	// Content configuration
	if v := getenv("CONTENT_DIR"); v != "" {
		cfg.Content.Dir = v
	}

	// Log configuration
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Tracking configuration
	if v := getenv("TRACKING_ENDPOINT"); v != "" {
		cfg.Tracking.Endpoint = v
	}
	if v := getenv("TRACKING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Tracking.Timeout = d
		}
	}
}

func getenv(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// EnsureDirectories creates the data directory.
func (c *Config) EnsureDirectories() error {
	if c.DataDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.DataDir, err)
	}
	return nil
}
