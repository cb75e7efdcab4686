package mocapstream

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/mocapstream/mocapstream/pkg/session"
)

// DefaultPort is the standard DataStream server port.
const DefaultPort = 801

// Config is the client configuration.
type Config struct {
	// ServerAddress is the tracking server's host or IP. Required.
	ServerAddress string

	// Port is the server port. Default: 801.
	Port uint16

	// StreamMode selects push or pull streaming. Default: ClientPull.
	StreamMode StreamMode

	// ConnectTimeout bounds each connection attempt including the
	// handshake. Default: 5 seconds.
	ConnectTimeout time.Duration

	// ReadTimeout bounds each wait for a response or pushed frame.
	// Default: 5 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds each command write. Default: 5 seconds.
	WriteTimeout time.Duration

	// AutoReconnect renegotiates after a dropped connection.
	// Default: true.
	AutoReconnect bool

	// InitialBackoff is the first reconnect delay. Default: 1 second.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential reconnect delay. Default: 30 seconds.
	MaxBackoff time.Duration

	// MaxRetries bounds consecutive failed reconnect attempts.
	// 0 retries forever.
	MaxRetries int

	// QueueCapacity is the delivery queue size. 0 delivers frames
	// synchronously on the read-loop goroutine.
	QueueCapacity int

	// DropPolicy applies when the delivery queue is full.
	// Default: DropOldest — for live telemetry, staleness is worse
	// than a gap.
	DropPolicy DropPolicy

	// MalformedThreshold is the number of consecutive undecodable
	// frames tolerated before reconnecting. Default: 8.
	MalformedThreshold int

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger

	// OnError, if set, observes dropped-sample decode errors and
	// reconnect failures. Must not block.
	OnError func(error)

	// Dial overrides the transport dialer. Tests use this; production
	// code should leave it nil for TCP.
	Dial session.Dialer
}

// DefaultConfig returns a Config with sensible defaults for the given
// server host.
func DefaultConfig(host string) Config {
	return Config{
		ServerAddress:      host,
		Port:               DefaultPort,
		StreamMode:         ClientPull,
		ConnectTimeout:     5 * time.Second,
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		AutoReconnect:      true,
		InitialBackoff:     time.Second,
		MaxBackoff:         30 * time.Second,
		QueueCapacity:      16,
		DropPolicy:         DropOldest,
		MalformedThreshold: 8,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.ServerAddress == "" {
		return errors.New("mocapstream: ServerAddress is required")
	}
	if !c.StreamMode.Valid() {
		return fmt.Errorf("mocapstream: invalid stream mode %d", c.StreamMode)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("mocapstream: negative queue capacity %d", c.QueueCapacity)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("mocapstream: negative max retries %d", c.MaxRetries)
	}
	if c.MaxBackoff > 0 && c.InitialBackoff > c.MaxBackoff {
		return fmt.Errorf("mocapstream: initial backoff %v exceeds max %v", c.InitialBackoff, c.MaxBackoff)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// address returns the host:port dial target.
func (c Config) address() string {
	return net.JoinHostPort(c.ServerAddress, strconv.Itoa(int(c.Port)))
}
