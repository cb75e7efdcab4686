package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mocapstream/mocapstream/pkg/capture"
	"github.com/mocapstream/mocapstream/pkg/protocol"
	"github.com/mocapstream/mocapstream/pkg/session"
)

// Sink receives decoded frames. Ownership of each frame transfers to the
// sink on delivery; the dispatcher does not retain or mutate it after.
type Sink interface {
	Deliver(ctx context.Context, f *capture.Frame)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, f *capture.Frame)

// Deliver calls fn(ctx, f).
func (fn SinkFunc) Deliver(ctx context.Context, f *capture.Frame) {
	fn(ctx, f)
}

// DropPolicy decides what happens when the delivery queue is full.
type DropPolicy int

const (
	// DropOldest evicts the stalest queued frame to make room.
	DropOldest DropPolicy = iota

	// Block waits for the sink to catch up, applying backpressure to the
	// read loop.
	Block
)

// String returns the string representation of the policy.
func (p DropPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// Config holds configuration for a Dispatcher.
type Config struct {
	// Mode selects ServerPush or ClientPull streaming.
	Mode protocol.StreamMode

	// AutoReconnect renegotiates after a dropped connection instead of
	// returning from Run.
	AutoReconnect bool

	// InitialBackoff is the first reconnect delay. Default: 1 second.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential reconnect delay. Default: 30 seconds.
	MaxBackoff time.Duration

	// MaxRetries bounds consecutive failed reconnect attempts.
	// 0 means retry forever.
	MaxRetries int

	// QueueCapacity is the delivery queue size. 0 delivers synchronously
	// on the read-loop goroutine.
	QueueCapacity int

	// DropPolicy applies when the queue is full. Default: DropOldest.
	DropPolicy DropPolicy

	// MalformedThreshold is the number of consecutive undecodable frames
	// tolerated before the connection is treated as desynced. Default: 8.
	MalformedThreshold int

	// OnError, if set, observes dropped-sample decode errors and
	// reconnect failures. Must not block.
	OnError func(error)

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MalformedThreshold <= 0 {
		c.MalformedThreshold = 8
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	FramesReceived  uint64 // frames decoded off the wire
	FramesDelivered uint64 // frames handed to the sink
	FramesDropped   uint64 // frames shed by the DropOldest policy
	DecodeErrors    uint64 // undecodable frames (dropped samples)
	Reconnects      uint64 // renegotiations after the initial connect
}

// Dispatcher runs the read loop for one Session and feeds one Sink.
type Dispatcher struct {
	cfg  Config
	sess *session.Session
	sink Sink
	log  *slog.Logger

	framesReceived  atomic.Uint64
	framesDelivered atomic.Uint64
	framesDropped   atomic.Uint64
	decodeErrors    atomic.Uint64
	reconnects      atomic.Uint64
}

// New creates a Dispatcher for the given session and sink.
func New(sess *session.Session, sink Sink, cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:  cfg,
		sess: sess,
		sink: sink,
		log:  cfg.Logger.With("component", "dispatch"),
	}
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		FramesReceived:  d.framesReceived.Load(),
		FramesDelivered: d.framesDelivered.Load(),
		FramesDropped:   d.framesDropped.Load(),
		DecodeErrors:    d.decodeErrors.Load(),
		Reconnects:      d.reconnects.Load(),
	}
}

// Run drives the streaming loop until the context is cancelled, the
// retry budget is exhausted, or — with AutoReconnect off — the
// connection drops. Run owns the session for its duration; no other
// goroutine may issue session commands while it executes.
func (d *Dispatcher) Run(ctx context.Context) error {
	deliver := d.deliverSync
	if d.cfg.QueueCapacity > 0 {
		queue := make(chan *capture.Frame, d.cfg.QueueCapacity)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.consume(ctx, queue)
		}()
		defer wg.Wait()
		defer close(queue)
		deliver = d.queuedDeliverer(queue)
	}

	b := newBackoff(d.cfg.InitialBackoff, d.cfg.MaxBackoff)
	failures := 0
	first := true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !first {
			d.reconnects.Add(1)
		}
		err := d.negotiate(ctx)
		if err == nil {
			first = false
			failures = 0
			b.reset()
			err = d.stream(ctx, deliver)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.log.Warn("stream down", "cause", err)
			d.sess.Disconnect()
		} else {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.report(err)
		}

		if !d.cfg.AutoReconnect {
			return err
		}
		failures++
		if d.cfg.MaxRetries > 0 && failures > d.cfg.MaxRetries {
			return fmt.Errorf("dispatch: retries exhausted after %d attempts: %w", failures-1, err)
		}
		if werr := b.wait(ctx); werr != nil {
			return werr
		}
	}
}

// negotiate runs the full connection handshake. Server-side state is not
// assumed to survive a reconnect, so every step is repeated each time.
func (d *Dispatcher) negotiate(ctx context.Context) error {
	if d.sess.State() == session.Disconnected {
		if err := d.sess.Connect(ctx); err != nil {
			return err
		}
	}
	if err := d.sess.EnableSegmentData(ctx); err != nil {
		return err
	}
	return d.sess.SetStreamMode(ctx, d.cfg.Mode)
}

// stream reads and dispatches frames until the connection dies or the
// context is cancelled.
func (d *Dispatcher) stream(ctx context.Context, deliver func(context.Context, *capture.Frame) error) error {
	badStreak := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var f *capture.Frame
		var err error
		if d.cfg.Mode == protocol.ClientPull {
			f, err = d.sess.GetFrame(ctx)
		} else {
			f, err = d.sess.ReadFrame(ctx)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A decode failure leaves the session Streaming: the message
			// framing was intact, only the sample was bad.
			if d.sess.State() == session.Streaming {
				d.decodeErrors.Add(1)
				d.report(err)
				badStreak++
				if badStreak >= d.cfg.MalformedThreshold {
					return fmt.Errorf("dispatch: %d consecutive malformed frames: %w", badStreak, err)
				}
				continue
			}
			return err
		}

		badStreak = 0
		d.framesReceived.Add(1)
		if err := deliver(ctx, f); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) deliverSync(ctx context.Context, f *capture.Frame) error {
	d.sink.Deliver(ctx, f)
	d.framesDelivered.Add(1)
	return nil
}

// queuedDeliverer returns a delivery function applying the configured
// overflow policy to the bounded queue.
func (d *Dispatcher) queuedDeliverer(queue chan *capture.Frame) func(context.Context, *capture.Frame) error {
	return func(ctx context.Context, f *capture.Frame) error {
		select {
		case queue <- f:
			return nil
		default:
		}

		if d.cfg.DropPolicy == Block {
			select {
			case queue <- f:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		// DropOldest: evict the stalest frame, then retry once. Losing
		// the new frame instead is possible only if the consumer raced a
		// slot away, which still counts as one drop.
		select {
		case <-queue:
			d.framesDropped.Add(1)
		default:
		}
		select {
		case queue <- f:
		default:
			d.framesDropped.Add(1)
		}
		return nil
	}
}

func (d *Dispatcher) consume(ctx context.Context, queue <-chan *capture.Frame) {
	for f := range queue {
		d.sink.Deliver(ctx, f)
		d.framesDelivered.Add(1)
	}
}

func (d *Dispatcher) report(err error) {
	if d.cfg.OnError != nil {
		d.cfg.OnError(err)
	}
}
