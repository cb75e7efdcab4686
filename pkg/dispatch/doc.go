// Package dispatch drives the streaming read loop and delivers decoded
// frames to a Sink.
//
// One Dispatcher owns one Session. Its Run loop is the sole goroutine
// issuing commands: it negotiates the stream (Connect, EnableSegmentData,
// SetStreamMode), then pulls frames in ClientPull mode or drains the
// socket in ServerPush mode, delivering each frame in arrival order.
//
// Delivery is synchronous by default. With a queue capacity configured,
// frames pass through a bounded channel to a consumer goroutine; when the
// sink falls behind, the DropOldest policy sheds the stalest frame and
// counts the drop — for live telemetry, staleness is worse than a gap.
//
// Decode failures are dropped samples: counted, reported through OnError,
// and tolerated up to a consecutive-failure threshold before the
// connection is declared desynced. Transport failures and protocol
// violations tear the connection down; with AutoReconnect the loop
// renegotiates from scratch under exponential backoff.
package dispatch
