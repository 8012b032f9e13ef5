// Package config provides unified configuration for the Vanadium
// backend.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the Vanadium backend.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Query service configuration
	Query QueryConfig `json:"query" yaml:"query"`

	// Schema configuration
	Schema SchemaConfig `json:"schema" yaml:"schema"`

	// Warehouse configuration
	Warehouse WarehouseConfig `json:"warehouse" yaml:"warehouse"`

	// Registration store configuration
	Registration RegistrationConfig `json:"registration" yaml:"registration"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`
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

// QueryConfig holds query service configuration.
type QueryConfig struct {
	// DefaultPageSize is used when a request omits page_size
	DefaultPageSize int `json:"default_page_size" yaml:"default_page_size"`

	// MaxPageSize caps page_size; larger requests are clamped
	MaxPageSize int `json:"max_page_size" yaml:"max_page_size"`

	// MaxFilterDepth caps filter tree nesting
	MaxFilterDepth int `json:"max_filter_depth" yaml:"max_filter_depth"`

	// Timeout is the per-query timeout
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// StatsWindow is the retention window for predicate statistics
	StatsWindow time.Duration `json:"stats_window" yaml:"stats_window"`
}

// SchemaConfig holds schema registry configuration.
type SchemaConfig struct {
	// Path is the entity schema file (YAML)
	Path string `json:"path" yaml:"path"`
}

// WarehouseConfig holds warehouse configuration.
type WarehouseConfig struct {
	// Type is the warehouse source: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local sqlite snapshot path (for local type)
	Path string `json:"path" yaml:"path"`

	// Snapshot is the object key of the snapshot to download (for s3 type)
	Snapshot string `json:"snapshot" yaml:"snapshot"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// UsePathStyle forces path-style addressing (for S3-compatible storage)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// RegistrationConfig holds registration store configuration.
type RegistrationConfig struct {
	// DBPath is the registration sqlite database path
	DBPath string `json:"db_path" yaml:"db_path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is the log level: debug, info, warn, error
	Level string `json:"level" yaml:"level"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/vanadium",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Query: QueryConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
			MaxFilterDepth:  10,
			Timeout:         30 * time.Second,
			StatsWindow:     24 * time.Hour,
		},
		Schema: SchemaConfig{
			Path: "./configs/entities.yaml",
		},
		Warehouse: WarehouseConfig{
			Type: "local",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/vanadium"
	}

	if c.Warehouse.Path == "" {
		c.Warehouse.Path = filepath.Join(c.DataDir, "warehouse.db")
	}
	if c.Registration.DBPath == "" {
		c.Registration.DBPath = filepath.Join(c.DataDir, "registrations.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Warehouse.Type != "local" && c.Warehouse.Type != "s3" {
		return fmt.Errorf("invalid warehouse type: %s (must be local or s3)", c.Warehouse.Type)
	}
	if c.Warehouse.Type == "s3" {
		if c.Warehouse.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when warehouse type is s3")
		}
		if c.Warehouse.Snapshot == "" {
			return fmt.Errorf("warehouse.snapshot is required when warehouse type is s3")
		}
	}

	if c.Schema.Path == "" {
		return fmt.Errorf("schema.path is required")
	}

	if c.Query.DefaultPageSize < 1 {
		return fmt.Errorf("query.default_page_size must be positive, got %d", c.Query.DefaultPageSize)
	}
	if c.Query.MaxPageSize < c.Query.DefaultPageSize {
		return fmt.Errorf("query.max_page_size must be >= default_page_size, got %d", c.Query.MaxPageSize)
	}
	if c.Query.MaxFilterDepth < 1 {
		return fmt.Errorf("query.max_filter_depth must be positive, got %d", c.Query.MaxFilterDepth)
	}

	return nil
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

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the VANADIUM_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("VANADIUM_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("VANADIUM_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	if v := os.Getenv("VANADIUM_QUERY_DEFAULT_PAGE_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.DefaultPageSize)
	}
	if v := os.Getenv("VANADIUM_QUERY_MAX_PAGE_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.MaxPageSize)
	}
	if v := os.Getenv("VANADIUM_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Query.Timeout = d
		}
	}

	if v := os.Getenv("VANADIUM_SCHEMA_PATH"); v != "" {
		cfg.Schema.Path = v
	}

	if v := os.Getenv("VANADIUM_WAREHOUSE_TYPE"); v != "" {
		cfg.Warehouse.Type = v
	}
	if v := os.Getenv("VANADIUM_WAREHOUSE_PATH"); v != "" {
		cfg.Warehouse.Path = v
	}
	if v := os.Getenv("VANADIUM_WAREHOUSE_SNAPSHOT"); v != "" {
		cfg.Warehouse.Snapshot = v
	}
	if v := os.Getenv("VANADIUM_S3_BUCKET"); v != "" {
		cfg.Warehouse.S3.Bucket = v
	}
	if v := os.Getenv("VANADIUM_S3_REGION"); v != "" {
		cfg.Warehouse.S3.Region = v
	}
	if v := os.Getenv("VANADIUM_S3_ENDPOINT"); v != "" {
		cfg.Warehouse.S3.Endpoint = v
	}
	if v := os.Getenv("VANADIUM_S3_USE_PATH_STYLE"); v != "" {
		cfg.Warehouse.S3.UsePathStyle = v == "true" || v == "1"
	}

	if v := os.Getenv("VANADIUM_REGISTRATION_DB_PATH"); v != "" {
		cfg.Registration.DBPath = v
	}

	if v := os.Getenv("VANADIUM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.Warehouse.Path),
		filepath.Dir(c.Registration.DBPath),
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
