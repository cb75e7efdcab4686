// Package session manages one connection to a DataStream server: the
// transport, the command/response exchanges, and the connection state
// machine.
//
// # State machine
//
//	Disconnected ──Connect──▶ Connected ──SetStreamMode──▶ Streaming
//	      ▲                                                    │
//	      └────── transport error / protocol violation ────────┘
//
// Close is terminal. A transport error or a protocol violation forces the
// session back to Disconnected; the protocol has no resync mechanism, so
// the only safe recovery is a fresh Connect.
//
// # Single-outstanding-request discipline
//
// The protocol carries no request correlation beyond the echoed command
// id, so interleaved requests make responses ambiguous. A Session
// serializes all commands internally and is intended to be driven by one
// goroutine — typically the dispatch read loop. State, Mode, and
// LastError are safe to call from any goroutine.
package session
