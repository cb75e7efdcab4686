// Package bridge exposes a capture stream over HTTP and WebSocket.
//
// The bridge is a Sink: wire it into a Client subscription and every
// delivered frame is fanned out as JSON to connected WebSocket clients.
// It also serves Prometheus metrics, a health endpoint reporting the
// upstream session state, and the set of subjects seen on the stream.
//
// Routes:
//
//	GET /ws       WebSocket frame feed (JSON, one message per frame)
//	GET /subjects Last seen subjects and their segments
//	GET /healthz  Upstream session state and client count
//	GET /metrics  Prometheus metrics
package bridge
