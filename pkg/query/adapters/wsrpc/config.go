package wsrpc

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Config controls how the WebSocket executor connects to a target.
type Config struct {
	// URL is the ws:// or wss:// endpoint of the target's query bridge.
	URL string
	// DialTimeout bounds the WebSocket handshake.
	DialTimeout time.Duration
	// OperationTimeout bounds each request that arrives without its own
	// deadline.
	OperationTimeout time.Duration
	// MaxMessageSize caps inbound frames, in bytes.
	MaxMessageSize int64
	// Logger receives per-request debug records. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		DialTimeout:      5 * time.Second,
		OperationTimeout: 30 * time.Second,
		MaxMessageSize:   4 << 20,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.URL) != "" {
		defaults.URL = c.URL
	}
	if c.DialTimeout != 0 {
		defaults.DialTimeout = c.DialTimeout
	}
	if c.OperationTimeout != 0 {
		defaults.OperationTimeout = c.OperationTimeout
	}
	if c.MaxMessageSize != 0 {
		defaults.MaxMessageSize = c.MaxMessageSize
	}
	if c.Logger != nil {
		defaults.Logger = c.Logger
	}
	return defaults
}

// Validate checks whether the config is usable.
func (c Config) Validate() error {
	url := strings.TrimSpace(c.URL)
	if url == "" {
		return errors.New("url is required")
	}
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return errors.New("url must use the ws or wss scheme")
	}
	if c.DialTimeout < 0 {
		return errors.New("dial_timeout must be zero or positive")
	}
	if c.OperationTimeout < 0 {
		return errors.New("operation_timeout must be zero or positive")
	}
	return nil
}
