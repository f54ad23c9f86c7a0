package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Feed       FeedConfig       `yaml:"feed"`
	Registry   RegistryConfig   `yaml:"registry"`
	Downstream DownstreamConfig `yaml:"downstream"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds the downstream listener settings.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Path     string `yaml:"path"`
	CertFile string `yaml:"cert_file"` // PEM certificate chain; with key_file enables wss
	KeyFile  string `yaml:"key_file"`  // PEM private key
}

// FeedConfig holds upstream market-data feed settings.
type FeedConfig struct {
	URL               string        `yaml:"url"`
	Token             string        `yaml:"token"` // API token, sent as a query parameter
	ReconnectPolicy   string        `yaml:"reconnect_policy"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
}

// RegistryConfig holds subscription registry settings.
type RegistryConfig struct {
	Capacity int `yaml:"capacity"` // Max distinct symbols subscribed at once
}

// DownstreamConfig holds per-connection settings for subscribers.
type DownstreamConfig struct {
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PongWait       time.Duration `yaml:"pong_wait"`
	PingPeriod     time.Duration `yaml:"ping_period"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	MaxPending     int           `yaml:"max_pending"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // Rotated log file; stdout when empty
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// TLSEnabled reports whether the listener should serve wss.
func (s ServerConfig) TLSEnabled() bool {
	return s.CertFile != "" && s.KeyFile != ""
}
