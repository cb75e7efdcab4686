package session

import "errors"

// Session errors.
var (
	// ErrConnectFailed wraps a transport-level connection refusal or
	// timeout. Recoverable by retrying Connect.
	ErrConnectFailed = errors.New("session: connect failed")

	// ErrInvalidState is returned when a call is made in a state that
	// forbids it. No I/O is attempted.
	ErrInvalidState = errors.New("session: invalid state for operation")

	// ErrProtocolViolation means a response did not match the outstanding
	// command or arrived unsolicited. The byte stream position is no
	// longer trustworthy, so the session is forced to Disconnected.
	ErrProtocolViolation = errors.New("session: protocol violation")

	// ErrTimeout means a blocking operation exceeded its configured bound.
	ErrTimeout = errors.New("session: operation timed out")

	// ErrClosed is returned after Close; the session cannot be reused.
	ErrClosed = errors.New("session: closed")
)
