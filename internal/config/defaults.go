package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultServerPort        = 5001
	DefaultServerPath        = "/"
	DefaultFeedURL           = "wss://ws.finnhub.io"
	DefaultReconnectPolicy   = "constant"
	DefaultReconnectDelay    = 5 * time.Second
	DefaultReconnectMaxDelay = 60 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultPingTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultFeedBufferSize    = 1000
	DefaultCapacity          = 50
	DefaultPongWait          = 60 * time.Second
	DefaultPingPeriod        = 50 * time.Second
	DefaultMaxMessageSize    = 4096
	DefaultMaxPending        = 4096
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultLogMaxSizeMB      = 100
	DefaultLogMaxBackups     = 5
	DefaultLogMaxAgeDays     = 28
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
)

// ApplyDefaults fills zero-valued fields.
func (c *RelayConfig) ApplyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.Path == "" {
		c.Server.Path = DefaultServerPath
	}

	// Feed defaults
	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if c.Feed.ReconnectPolicy == "" {
		c.Feed.ReconnectPolicy = DefaultReconnectPolicy
	}
	if c.Feed.ReconnectDelay == 0 {
		c.Feed.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.IdleTimeout == 0 {
		c.Feed.IdleTimeout = DefaultIdleTimeout
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.HandshakeTimeout == 0 {
		c.Feed.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Feed.BufferSize == 0 {
		c.Feed.BufferSize = DefaultFeedBufferSize
	}

	// Registry defaults
	if c.Registry.Capacity == 0 {
		c.Registry.Capacity = DefaultCapacity
	}

	// Downstream defaults
	if c.Downstream.WriteTimeout == 0 {
		c.Downstream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Downstream.PongWait == 0 {
		c.Downstream.PongWait = DefaultPongWait
	}
	if c.Downstream.PingPeriod == 0 {
		c.Downstream.PingPeriod = DefaultPingPeriod
	}
	if c.Downstream.MaxMessageSize == 0 {
		c.Downstream.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Downstream.MaxPending == 0 {
		c.Downstream.MaxPending = DefaultMaxPending
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
