// Package config loads and validates the shelfd configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (SHELFD_*), for keys the config file sets
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Without a config file the defaults are used as they are and no environment
// variable is read.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/shelfd/shelfd/internal/bytesize"
	"github.com/shelfd/shelfd/pkg/api"
	"github.com/shelfd/shelfd/pkg/catalog"
	s3backend "github.com/shelfd/shelfd/pkg/storage/s3"
	"github.com/shelfd/shelfd/pkg/tasks"
)

// Config represents the shelfd configuration.
//
// Static server aspects live here: logging, telemetry, the catalog database,
// the REST and metrics servers, storage engine knobs, and the maintenance
// worker pool. Dynamic state (locations, buckets, objects) lives in the
// catalog and is managed through the REST API and CLI.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Database configures the catalog database (SQLite or PostgreSQL).
	Database catalog.Config `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains REST API server configuration
	API api.Config `mapstructure:"api" yaml:"api"`

	// Storage contains object-store engine configuration
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Tasks contains maintenance worker pool configuration
	Tasks tasks.Config `mapstructure:"tasks" yaml:"tasks"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StorageConfig carries the object-store engine knobs.
type StorageConfig struct {
	// ClassList maps single-character storage classes to labels.
	// Default: {"S": "Standard", "A": "Archive"}
	ClassList map[string]string `mapstructure:"class_list" yaml:"class_list"`

	// DefaultClass is the storage class for new files. Default: "S"
	DefaultClass string `mapstructure:"default_class" validate:"omitempty,len=1" yaml:"default_class"`

	// DefaultQuotaSize is the quota applied to new buckets (0 = unlimited).
	DefaultQuotaSize bytesize.ByteSize `mapstructure:"default_quota_size" yaml:"default_quota_size"`

	// DefaultMaxFileSize is the per-file cap applied to new buckets (0 = unlimited).
	DefaultMaxFileSize bytesize.ByteSize `mapstructure:"default_max_file_size" yaml:"default_max_file_size"`

	// MinFileSize is the minimum accepted upload size.
	// Default: 1 (empty uploads rejected)
	MinFileSize int64 `mapstructure:"min_file_size" yaml:"min_file_size"`

	// MaxFileSize is the global per-file cap (0 = unlimited).
	MaxFileSize bytesize.ByteSize `mapstructure:"max_file_size" yaml:"max_file_size"`

	// MultipartChunkSizeMin is the smallest accepted part size. Default: 5Mi
	MultipartChunkSizeMin bytesize.ByteSize `mapstructure:"multipart_chunk_size_min" yaml:"multipart_chunk_size_min"`

	// MultipartChunkSizeMax is the largest accepted part size. Default: 5Gi
	MultipartChunkSizeMax bytesize.ByteSize `mapstructure:"multipart_chunk_size_max" yaml:"multipart_chunk_size_max"`

	// MultipartMaxParts is the maximum number of parts. Default: 10000
	MultipartMaxParts int `mapstructure:"multipart_max_parts" yaml:"multipart_max_parts"`

	// MultipartExpires is how long an incomplete upload survives without
	// activity. Default: 96h
	MultipartExpires time.Duration `mapstructure:"multipart_expires" yaml:"multipart_expires"`

	// ObjectKeyMaxLen is the maximum object key length. Default: 255
	ObjectKeyMaxLen int `mapstructure:"object_key_max_len" yaml:"object_key_max_len"`

	// FileURIMaxLen is the maximum blob URI length. Default: 255
	FileURIMaxLen int `mapstructure:"file_uri_max_len" yaml:"file_uri_max_len"`

	// PathDimensions is the number of directory levels in blob URIs. Default: 2
	PathDimensions int `mapstructure:"path_dimensions" yaml:"path_dimensions"`

	// PathSplitLength is the characters per directory level. Default: 2
	PathSplitLength int `mapstructure:"path_split_length" yaml:"path_split_length"`

	// S3 configures the S3 backend; only used by locations that name it.
	S3 s3backend.Config `mapstructure:"s3" yaml:"s3"`
}

// Load reads the configuration from the given file (or the default search
// path when empty), applies environment overrides to the keys the file sets,
// fills defaults, and validates the result. When no config file is found it
// returns GetDefaultConfig() without reading the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variable support and config file search.
// Environment variables use the SHELFD_ prefix with underscores, e.g.
// SHELFD_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SHELFD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(ConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile attempts to read the config file. A missing file is not an
// error; any other read failure is.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// ConfigDir returns the default configuration directory.
func ConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "shelfd")
}

// configDecodeHooks composes the mapstructure hooks used during unmarshal.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// byteSizeDecodeHook converts strings and numbers into bytesize.ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch value := data.(type) {
		case string:
			return bytesize.Parse(value)
		case int:
			return bytesize.ByteSize(value), nil
		case int64:
			return bytesize.ByteSize(value), nil
		case uint64:
			return bytesize.ByteSize(value), nil
		case float64:
			return bytesize.ByteSize(value), nil
		default:
			return data, nil
		}
	}
}

// Validate checks the configuration using struct tags plus cross-field rules
// the tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return err
	}

	if cfg.Storage.DefaultClass != "" {
		if _, ok := cfg.Storage.ClassList[cfg.Storage.DefaultClass]; !ok {
			return fmt.Errorf("default storage class %q not in class list", cfg.Storage.DefaultClass)
		}
	}
	if cfg.Storage.MultipartChunkSizeMin > cfg.Storage.MultipartChunkSizeMax {
		return fmt.Errorf("multipart chunk size min exceeds max")
	}

	return nil
}
