package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mocapstream/mocapstream/pkg/protocol"
)

// State is the connection state of a Session.
type State int32

const (
	Disconnected State = iota
	Connected
	Streaming
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connected:
		return "Connected"
	case Streaming:
		return "Streaming"
	default:
		return "Unknown"
	}
}

// Config holds configuration for a Session.
type Config struct {
	// Address is the server address in host:port form.
	Address string

	// ConnectTimeout bounds Connect, including the handshake.
	// Default: 5 seconds.
	ConnectTimeout time.Duration

	// ReadTimeout bounds each wait for a response or pushed frame.
	// Default: 5 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds each command write.
	// Default: 5 seconds.
	WriteTimeout time.Duration

	// Dial opens the transport. Default: DialTCP.
	Dial Dialer

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults for addr.
func DefaultConfig(addr string) Config {
	return Config{
		Address:        addr,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.Dial == nil {
		c.Dial = DialTCP
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Session owns one connection to a DataStream server. All command methods
// serialize internally; drive a Session from a single goroutine.
type Session struct {
	cfg Config
	log *slog.Logger

	// mu enforces the single-outstanding-request discipline: one command
	// on the wire at a time.
	mu sync.Mutex

	// trMu guards tr so Close can interrupt an in-flight read without
	// waiting for mu.
	trMu sync.Mutex
	tr   Transport

	state  atomic.Int32
	mode   atomic.Int32
	seq    atomic.Uint64
	closed atomic.Bool

	errMu   sync.Mutex
	lastErr error
}

// New creates a Session for the given config. No I/O happens until
// Connect.
func New(cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg: cfg,
		log: cfg.Logger.With("component", "session", "address", cfg.Address),
	}
}

// State returns an atomic snapshot of the connection state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Mode returns the negotiated stream mode. Meaningful once Streaming.
func (s *Session) Mode() protocol.StreamMode {
	return protocol.StreamMode(s.mode.Load())
}

// LastError returns the error that last forced the session down, or nil.
func (s *Session) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

func (s *Session) setLastErr(err error) {
	s.errMu.Lock()
	s.lastErr = err
	s.errMu.Unlock()
}

// Connect dials the server and performs the Connect handshake. On
// success the session transitions to Connected. On failure it stays
// Disconnected and returns ErrConnectFailed wrapping the cause; retry
// policy belongs to the caller.
func (s *Session) Connect(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != Disconnected {
		return fmt.Errorf("%w: Connect while %s", ErrInvalidState, st)
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	tr, err := s.cfg.Dial(dctx, s.cfg.Address)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrConnectFailed, err)
		s.setLastErr(err)
		return err
	}
	s.setTransport(tr)

	if _, err := s.roundTrip(dctx, protocol.NewMessage(protocol.CmdConnect, nil), protocol.CmdConnect); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	s.state.Store(int32(Connected))
	s.log.Info("connected")
	return nil
}

// Close tears the session down for good. It interrupts any in-flight
// read and is safe to call from any goroutine, repeatedly.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.trMu.Lock()
	if s.tr != nil {
		_ = s.tr.Close()
		s.tr = nil
	}
	s.trMu.Unlock()
	s.state.Store(int32(Disconnected))
	s.log.Info("session closed")
	return nil
}

// Disconnect drops the connection but leaves the session reusable for a
// later Connect. Used by the dispatcher between reconnect attempts.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked(nil)
}

func (s *Session) setTransport(tr Transport) {
	s.trMu.Lock()
	s.tr = tr
	s.trMu.Unlock()
}

func (s *Session) transport() Transport {
	s.trMu.Lock()
	defer s.trMu.Unlock()
	return s.tr
}

// teardownLocked drops the transport and forces Disconnected. mu must be
// held. cause may be nil for a deliberate disconnect.
func (s *Session) teardownLocked(cause error) {
	s.trMu.Lock()
	if s.tr != nil {
		_ = s.tr.Close()
		s.tr = nil
	}
	s.trMu.Unlock()
	s.state.Store(int32(Disconnected))
	if cause != nil {
		s.setLastErr(cause)
		s.log.Warn("connection lost", "cause", cause)
	}
}

// requireLocked validates the current state against the allowed set.
// mu must be held.
func (s *Session) requireLocked(allowed ...State) error {
	if s.closed.Load() {
		return ErrClosed
	}
	cur := s.State()
	for _, st := range allowed {
		if cur == st {
			return nil
		}
	}
	return fmt.Errorf("%w: state %s", ErrInvalidState, cur)
}

// roundTrip sends one command and waits for its response. mu must be
// held. Any transport failure, timeout, or command-id mismatch tears the
// connection down — once a response goes missing or arrives wrong, the
// stream position cannot be trusted.
func (s *Session) roundTrip(ctx context.Context, m *protocol.Message, want protocol.CommandID) (*protocol.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tr := s.transport()
	if tr == nil {
		return nil, fmt.Errorf("%w: no transport", ErrInvalidState)
	}

	// Poke the deadlines on cancellation so blocked I/O returns promptly.
	stop := context.AfterFunc(ctx, func() {
		_ = tr.SetReadDeadline(time.Now())
		_ = tr.SetWriteDeadline(time.Now())
	})
	defer stop()

	_ = tr.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := protocol.WriteMessage(tr, m); err != nil {
		err = s.classify(ctx, err)
		s.teardownLocked(err)
		return nil, err
	}

	_ = tr.SetReadDeadline(s.readDeadline(ctx))
	resp, err := protocol.ReadMessage(tr)
	if err != nil {
		err = s.classify(ctx, err)
		s.teardownLocked(err)
		return nil, err
	}

	if resp.ID != want {
		err := fmt.Errorf("%w: sent %s, response %s", ErrProtocolViolation, m.ID, resp.ID)
		s.teardownLocked(err)
		return nil, err
	}
	return resp, nil
}

// readPushed reads the next server-pushed message. mu must be held.
func (s *Session) readPushed(ctx context.Context) (*protocol.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tr := s.transport()
	if tr == nil {
		return nil, fmt.Errorf("%w: no transport", ErrInvalidState)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = tr.SetReadDeadline(time.Now())
	})
	defer stop()

	_ = tr.SetReadDeadline(s.readDeadline(ctx))
	m, err := protocol.ReadMessage(tr)
	if err != nil {
		err = s.classify(ctx, err)
		// A cancelled caller is stopping, not a broken stream.
		if ctx.Err() == nil {
			s.teardownLocked(err)
		}
		return nil, err
	}
	return m, nil
}

// readDeadline derives the read deadline from ReadTimeout and any
// earlier context deadline.
func (s *Session) readDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(s.cfg.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

// classify maps raw transport errors to the session error taxonomy.
func (s *Session) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.closed.Load() {
		return ErrClosed
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, protocol.ErrMalformedMessage) || errors.Is(err, protocol.ErrMessageTooLarge) {
		return fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	return err
}
