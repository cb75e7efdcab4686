package mocapstream

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mocapstream/mocapstream/pkg/capture"
	"github.com/mocapstream/mocapstream/pkg/dispatch"
	"github.com/mocapstream/mocapstream/pkg/session"
)

// Client is a DataStream motion-capture client. One Client owns one
// connection; for multiple servers, create multiple Clients.
type Client struct {
	cfg  Config
	log  *slog.Logger
	sess *session.Session

	mu      sync.Mutex
	sinks   []Sink
	disp    *dispatch.Dispatcher
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
	started bool
	stopped bool
}

// New creates a Client for the given configuration. No I/O happens
// until Connect or StartStreaming.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	sess := session.New(session.Config{
		Address:        cfg.address(),
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		Dial:           cfg.Dial,
		Logger:         cfg.Logger,
	})

	return &Client{
		cfg:  cfg,
		log:  cfg.Logger.With("component", "client"),
		sess: sess,
	}, nil
}

// Session exposes the underlying session for direct typed queries
// (subject and segment getters). Do not issue session commands while
// streaming — the read loop owns the connection.
func (c *Client) Session() *session.Session {
	return c.sess
}

// State returns the connection state.
func (c *Client) State() State {
	return c.sess.State()
}

// Connect establishes the connection without starting the stream.
// StartStreaming calls this implicitly; Connect exists for one-shot
// queries like listing subjects.
func (c *Client) Connect(ctx context.Context) error {
	return c.sess.Connect(ctx)
}

// Subscribe registers a frame consumer. All subscribers see every frame
// in order, on the delivery goroutine. Must be called before
// StartStreaming. Sinks must copy any data they retain beyond the call.
func (c *Client) Subscribe(sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("mocapstream: Subscribe after StartStreaming")
	}
	c.sinks = append(c.sinks, sink)
	return nil
}

// StartStreaming negotiates the stream and launches the read loop in a
// background goroutine. It returns once the loop is started; connection
// failures surface through Wait, Err, and the OnError callback, driven
// by the reconnect policy.
func (c *Client) StartStreaming(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return ErrClosed
	}
	if c.started {
		return errors.New("mocapstream: already streaming")
	}
	if len(c.sinks) == 0 {
		return errors.New("mocapstream: StartStreaming with no subscribers")
	}

	c.disp = dispatch.New(c.sess, fanout(c.sinks), dispatch.Config{
		Mode:               c.cfg.StreamMode,
		AutoReconnect:      c.cfg.AutoReconnect,
		InitialBackoff:     c.cfg.InitialBackoff,
		MaxBackoff:         c.cfg.MaxBackoff,
		MaxRetries:         c.cfg.MaxRetries,
		QueueCapacity:      c.cfg.QueueCapacity,
		DropPolicy:         c.cfg.DropPolicy,
		MalformedThreshold: c.cfg.MalformedThreshold,
		OnError:            c.cfg.OnError,
		Logger:             c.cfg.Logger,
	})

	// The loop outlives the caller's ctx; only Stop ends it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true

	go func() {
		defer close(c.done)
		err := c.disp.Run(runCtx)
		c.mu.Lock()
		c.runErr = err
		c.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			c.log.Error("streaming stopped", "error", err)
		}
	}()
	return nil
}

// Wait blocks until the streaming loop exits and returns its error.
func (c *Client) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return errors.New("mocapstream: not streaming")
	}
	<-done
	return c.Err()
}

// Err returns the error that ended the streaming loop, if it has ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runErr
}

// Stats returns a snapshot of streaming counters. Zero before
// StartStreaming.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	disp := c.disp
	c.mu.Unlock()
	if disp == nil {
		return Stats{}
	}
	return disp.Stats()
}

// Stop shuts the client down cooperatively: the read loop exits at its
// next suspension point and the connection closes. Stop is idempotent;
// the client cannot be restarted after.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = c.sess.Close()
	if done != nil {
		<-done
	}
	c.log.Info("client stopped")
}

// fanout delivers one frame to every subscriber in registration order.
func fanout(sinks []Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return dispatch.SinkFunc(func(ctx context.Context, f *capture.Frame) {
		for _, s := range sinks {
			s.Deliver(ctx, f)
		}
	})
}
