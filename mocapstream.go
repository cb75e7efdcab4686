// Package mocapstream provides the public API for the mocapstream
// motion-capture client.
//
// This is the recommended import for most applications:
//
//	import "github.com/mocapstream/mocapstream"
//
// Usage:
//
//	client, err := mocapstream.New(mocapstream.Config{
//	    ServerAddress: "192.168.30.152",
//	})
//	client.Subscribe(mocapstream.SinkFunc(func(ctx context.Context, f *mocapstream.Frame) {
//	    // consume f; it is yours after this call returns
//	}))
//	client.StartStreaming(ctx)
//	defer client.Stop()
package mocapstream

import (
	"github.com/mocapstream/mocapstream/pkg/capture"
	"github.com/mocapstream/mocapstream/pkg/dispatch"
	"github.com/mocapstream/mocapstream/pkg/protocol"
	"github.com/mocapstream/mocapstream/pkg/session"
)

// Decoded frame model (pkg/capture exposed at the root).

// Frame is one complete capture instant.
type Frame = capture.Frame

// Subject is a tracked rigid body.
type Subject = capture.Subject

// Segment is a rigid sub-part of a subject.
type Segment = capture.Segment

// Pose is a segment's translation (meters) and rotation quaternion.
type Pose = capture.Pose

// Vector3 is a 3D translation in meters.
type Vector3 = capture.Vector3

// Quaternion is a rotation in X, Y, Z, W order.
type Quaternion = capture.Quaternion

// Streaming modes.

// StreamMode selects how frames reach the client.
type StreamMode = protocol.StreamMode

const (
	// ServerPush streams frames unsolicited at capture rate.
	ServerPush = protocol.ServerPush

	// ClientPull requests each frame explicitly.
	ClientPull = protocol.ClientPull
)

// Delivery types (pkg/dispatch exposed at the root).

// Sink receives decoded frames from the client.
type Sink = dispatch.Sink

// SinkFunc adapts a function to the Sink interface.
type SinkFunc = dispatch.SinkFunc

// DropPolicy decides what happens when the delivery queue is full.
type DropPolicy = dispatch.DropPolicy

const (
	// DropOldest evicts the stalest queued frame to make room.
	DropOldest = dispatch.DropOldest

	// Block applies backpressure to the read loop instead of dropping.
	Block = dispatch.Block
)

// Stats is a snapshot of streaming counters.
type Stats = dispatch.Stats

// Connection states (pkg/session exposed at the root).

// State is the connection state of the client's session.
type State = session.State

const (
	Disconnected = session.Disconnected
	Connected    = session.Connected
	Streaming    = session.Streaming
)

// Error taxonomy re-exported for errors.Is checks.
var (
	ErrConnectFailed     = session.ErrConnectFailed
	ErrInvalidState      = session.ErrInvalidState
	ErrProtocolViolation = session.ErrProtocolViolation
	ErrTimeout           = session.ErrTimeout
	ErrClosed            = session.ErrClosed
	ErrTruncatedPayload  = capture.ErrTruncatedPayload
)
