package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with /, got %q", c.Server.Path)
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		return errors.New("server.cert_file and server.key_file must be set together")
	}

	if err := c.Feed.validate(); err != nil {
		return err
	}

	if c.Registry.Capacity < 1 {
		return errors.New("registry.capacity must be >= 1")
	}

	if err := c.Downstream.validate(); err != nil {
		return err
	}

	if err := c.Logging.validate(); err != nil {
		return err
	}

	if err := validatePort("metrics.port", c.Metrics.Port); err != nil {
		return err
	}
	if c.Metrics.Port == c.Server.Port {
		return fmt.Errorf("metrics.port and server.port must differ, both are %d", c.Metrics.Port)
	}

	return nil
}

func (f *FeedConfig) validate() error {
	if f.URL == "" {
		return errors.New("feed.url is required")
	}

	switch f.ReconnectPolicy {
	case "constant", "exponential":
	default:
		return fmt.Errorf("feed.reconnect_policy must be constant or exponential, got %q", f.ReconnectPolicy)
	}

	if f.ReconnectDelay <= 0 {
		return errors.New("feed.reconnect_delay must be > 0")
	}
	if f.ReconnectPolicy == "exponential" && f.ReconnectMaxDelay < f.ReconnectDelay {
		return fmt.Errorf("feed.reconnect_max_delay (%s) cannot be less than reconnect_delay (%s)",
			f.ReconnectMaxDelay, f.ReconnectDelay)
	}
	if f.IdleTimeout <= 0 {
		return errors.New("feed.idle_timeout must be > 0")
	}
	if f.PingTimeout <= 0 {
		return errors.New("feed.ping_timeout must be > 0")
	}
	if f.BufferSize < 1 {
		return errors.New("feed.buffer_size must be >= 1")
	}
	return nil
}

func (d *DownstreamConfig) validate() error {
	if d.PingPeriod >= d.PongWait {
		return fmt.Errorf("downstream.ping_period (%s) must be less than pong_wait (%s)",
			d.PingPeriod, d.PongWait)
	}
	if d.MaxMessageSize < 1 {
		return errors.New("downstream.max_message_size must be >= 1")
	}
	if d.MaxPending < 1 {
		return errors.New("downstream.max_pending must be >= 1")
	}
	return nil
}

func (l *LoggingConfig) validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", l.Format)
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
