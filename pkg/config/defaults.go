package config

import (
	"time"

	"github.com/shelfd/shelfd/internal/bytesize"
)

// GetDefaultConfig returns a configuration with all defaults applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved. Component-specific defaults are handled by the component
// packages where they own the config type.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyStorageDefaults(&cfg.Storage)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	cfg.Database.ApplyDefaults()
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.ClassList == nil {
		cfg.ClassList = map[string]string{
			"S": "Standard",
			"A": "Archive",
		}
	}
	if cfg.DefaultClass == "" {
		cfg.DefaultClass = "S"
	}
	if cfg.MinFileSize == 0 {
		cfg.MinFileSize = 1
	}
	if cfg.MultipartChunkSizeMin == 0 {
		cfg.MultipartChunkSizeMin = 5 * bytesize.MiB
	}
	if cfg.MultipartChunkSizeMax == 0 {
		cfg.MultipartChunkSizeMax = 5 * bytesize.GiB
	}
	if cfg.MultipartMaxParts == 0 {
		cfg.MultipartMaxParts = 10000
	}
	if cfg.MultipartExpires == 0 {
		cfg.MultipartExpires = 4 * 24 * time.Hour
	}
	if cfg.ObjectKeyMaxLen == 0 {
		cfg.ObjectKeyMaxLen = 255
	}
	if cfg.FileURIMaxLen == 0 {
		cfg.FileURIMaxLen = 255
	}
	if cfg.PathDimensions == 0 {
		cfg.PathDimensions = 2
	}
	if cfg.PathSplitLength == 0 {
		cfg.PathSplitLength = 2
	}
}
