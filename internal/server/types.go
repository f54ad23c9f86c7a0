package server

import (
	"errors"
	"time"
)

// Errors
var (
	ErrConnClosed   = errors.New("connection closed")
	ErrSlowConsumer = errors.New("outbox full, consumer too slow")
)

// ConnConfig configures each downstream connection.
type ConnConfig struct {
	WriteTimeout   time.Duration // Write deadline per frame
	PongWait       time.Duration // Read deadline, extended on every frame and pong
	PingPeriod     time.Duration // Server ping interval, must be < PongWait
	MaxMessageSize int64         // Inbound frame limit in bytes
	MaxPending     int           // Queued frames beyond which the connection is dropped
}

// DefaultConnConfig returns sensible defaults.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:   5 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     50 * time.Second,
		MaxMessageSize: 4096,
		MaxPending:     4096,
	}
}

// Config configures the listener.
type Config struct {
	Host     string
	Port     int
	Path     string
	CertFile string // TLS is enabled when both CertFile and KeyFile are set
	KeyFile  string
	Conn     ConnConfig
}

// TLSEnabled reports whether the listener serves wss.
func (c Config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}
