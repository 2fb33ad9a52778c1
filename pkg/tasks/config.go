package tasks

import "time"

// Config holds worker pool and maintenance scheduling configuration.
type Config struct {
	// Workers is the number of concurrent task workers.
	// Default: 4
	Workers int `mapstructure:"workers" yaml:"workers"`

	// QueueSize is the maximum number of pending tasks.
	// Default: 1000
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`

	// FixityFrequency is how often every readable file should be
	// re-verified. Default: 30 days.
	FixityFrequency time.Duration `mapstructure:"fixity_frequency" yaml:"fixity_frequency"`

	// FixityBatchInterval is how often a verification batch is scheduled.
	// Default: 1 hour.
	FixityBatchInterval time.Duration `mapstructure:"fixity_batch_interval" yaml:"fixity_batch_interval"`

	// FixityMaxCount bounds a verification batch by file count (0 = no bound).
	FixityMaxCount int `mapstructure:"fixity_max_count" yaml:"fixity_max_count"`

	// FixityMaxBytes bounds a verification batch by total bytes (0 = no bound).
	FixityMaxBytes int64 `mapstructure:"fixity_max_bytes" yaml:"fixity_max_bytes"`

	// CleanupInterval is how often expired multipart uploads and orphaned
	// files are swept. Default: 1 hour.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// applyDefaults fills in zero values with working defaults.
func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.FixityFrequency <= 0 {
		c.FixityFrequency = 30 * 24 * time.Hour
	}
	if c.FixityBatchInterval <= 0 {
		c.FixityBatchInterval = time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
}
