package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrStaleConnection   = errors.New("connection stale (no pong)")
	ErrAlreadyClosed     = errors.New("already closed")
	ErrAuthFailed        = errors.New("authentication failed")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// actionMessage is a client-to-server command.
type actionMessage struct {
	Action string `json:"action"` // "auth" or "subscribe"
	Params string `json:"params"`
}

// Status values carried by status events.
const (
	statusConnected   = "connected"
	statusAuthSuccess = "auth_success"
	statusAuthFailed  = "auth_failed"
)

// Event types carried in the "ev" field.
const (
	evStatus = "status"
	evTrade  = "T"
)

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., wss://socket.polygon.io/stocks)
	PingInterval time.Duration // Keepalive ping interval
	PingTimeout  time.Duration // Max time without a pong before the connection is stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}

// StreamerConfig configures the Streamer.
type StreamerConfig struct {
	APIKey             string        // Sent in the auth action
	Subscription       string        // Subscribe params (default: "T.*")
	ReconnectBaseDelay time.Duration // First reconnect delay (default: 1s)
	ReconnectMaxDelay  time.Duration // Reconnect delay cap (default: 10s)
	StaleAfter         time.Duration // Watchdog threshold without trades (default: 30s)
	WatchdogInterval   time.Duration // Watchdog check period (default: 5s)
	Client             ClientConfig
}

// DefaultStreamerConfig returns sensible defaults.
func DefaultStreamerConfig() StreamerConfig {
	return StreamerConfig{
		Subscription:       "T.*",
		ReconnectBaseDelay: time.Second,
		ReconnectMaxDelay:  10 * time.Second,
		StaleAfter:         30 * time.Second,
		WatchdogInterval:   5 * time.Second,
		Client:             DefaultClientConfig(),
	}
}
