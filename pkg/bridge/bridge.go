package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mocapstream/mocapstream/pkg/capture"
	"github.com/mocapstream/mocapstream/pkg/session"
)

// Config configures the bridge server.
type Config struct {
	// Address is the listen address (default: ":8080").
	Address string

	// ReadBufferSize is the WebSocket read buffer size (default: 1024).
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size (default: 4096).
	WriteBufferSize int

	// CheckOrigin validates the WebSocket upgrade origin.
	// Default: allow all origins.
	CheckOrigin func(r *http.Request) bool

	// SendQueue is the per-client outbound frame buffer (default: 16).
	// A client whose buffer is full has frames dropped, not queued.
	SendQueue int

	// WriteTimeout bounds each WebSocket write (default: 10s).
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown (default: 10s).
	ShutdownTimeout time.Duration

	// Gatherer serves /metrics (default: prometheus.DefaultGatherer).
	Gatherer prometheus.Gatherer

	// State reports the upstream session state for /healthz.
	// If nil, /healthz reports state "unknown".
	State func() session.State

	// Logger is the structured logger (default: slog.Default).
	Logger *slog.Logger
}

// DefaultConfig returns the default bridge configuration.
func DefaultConfig() Config {
	return Config{
		Address:         ":8080",
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendQueue:       16,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Gatherer:        prometheus.DefaultGatherer,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.SendQueue == 0 {
		c.SendQueue = d.SendQueue
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.Gatherer == nil {
		c.Gatherer = d.Gatherer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Server fans frames out to WebSocket clients and serves the HTTP API.
// It implements dispatch.Sink.
type Server struct {
	cfg Config
	log *slog.Logger

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	clients  map[*client]struct{}
	subjects []subjectInfo
	lastSeq  uint64

	dropped atomic.Uint64

	httpServer *http.Server
}

// New creates a bridge server. Wire it into a client with
// Client.Subscribe(bridge) before StartStreaming.
func New(cfg Config) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg: cfg,
		log: cfg.Logger.With("component", "bridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		clients: make(map[*client]struct{}),
	}
}

// frameJSON is the wire shape of a frame on /ws.
type frameJSON struct {
	Seq      uint64        `json:"seq"`
	Subjects []subjectJSON `json:"subjects"`
}

type subjectJSON struct {
	Name     string        `json:"name"`
	Segments []segmentJSON `json:"segments"`
}

type segmentJSON struct {
	Name        string    `json:"name"`
	Occluded    bool      `json:"occluded"`
	Translation *vec3JSON `json:"translation,omitempty"`
	Rotation    *quatJSON `json:"rotation,omitempty"`
}

type vec3JSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type quatJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// subjectInfo is the last seen shape of a subject, served on /subjects.
type subjectInfo struct {
	Name     string   `json:"name"`
	Segments []string `json:"segments"`
}

func encodeFrame(frame *capture.Frame) ([]byte, []subjectInfo, error) {
	out := frameJSON{Seq: frame.Seq, Subjects: make([]subjectJSON, len(frame.Subjects))}
	info := make([]subjectInfo, len(frame.Subjects))

	for i, sub := range frame.Subjects {
		sj := subjectJSON{Name: sub.Name, Segments: make([]segmentJSON, len(sub.Segments))}
		si := subjectInfo{Name: sub.Name, Segments: make([]string, len(sub.Segments))}
		for j, seg := range sub.Segments {
			ej := segmentJSON{Name: seg.Name, Occluded: seg.Occluded()}
			if seg.Pose != nil {
				ej.Translation = &vec3JSON{X: seg.Pose.Translation.X, Y: seg.Pose.Translation.Y, Z: seg.Pose.Translation.Z}
				ej.Rotation = &quatJSON{X: seg.Pose.Rotation.X, Y: seg.Pose.Rotation.Y, Z: seg.Pose.Rotation.Z, W: seg.Pose.Rotation.W}
			}
			sj.Segments[j] = ej
			si.Segments[j] = seg.Name
		}
		out.Subjects[i] = sj
		info[i] = si
	}

	data, err := json.Marshal(out)
	return data, info, err
}

// Deliver implements dispatch.Sink. The frame is encoded once and fanned
// out to every connected client. A client with a full send buffer misses
// the frame; it is never blocked on.
func (s *Server) Deliver(_ context.Context, frame *capture.Frame) {
	data, info, err := encodeFrame(frame)
	if err != nil {
		s.log.Error("frame encode error", "error", err)
		return
	}

	s.mu.Lock()
	s.subjects = info
	s.lastSeq = frame.Seq
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			s.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Dropped returns the number of frames dropped on slow client buffers.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	s.log.Info("client connected", "remote", c.conn.RemoteAddr(), "clients", n)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()
	if ok {
		c.close()
		s.log.Info("client disconnected", "remote", c.conn.RemoteAddr(), "clients", n)
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails. Cancellation triggers a graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("bridge starting", "address", s.cfg.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-ctx.Done():
		s.log.Info("bridge shutting down")
		return s.Shutdown(context.WithoutCancel(ctx))
	}
}

// Shutdown gracefully shuts down the server, closing all clients.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Error("shutdown error", "error", err)
			return err
		}
	}
	return nil
}
