package api

import "time"

// Config contains REST API server configuration.
type Config struct {
	// Port is the HTTP port for the REST API.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading a request.
	// Uploads stream inside this window; keep it generous.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout is defaulted to 30s; the router applies no per-request
	// timeout from it.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// JWTSecret enables bearer-token principal extraction when set. Requests
	// without a token are treated as anonymous.
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// applyDefaults fills in zero values with working defaults.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}
