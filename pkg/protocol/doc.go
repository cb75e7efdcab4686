// Package protocol implements the binary wire protocol spoken by DataStream
// motion-capture servers.
//
// The protocol is a simple request/response scheme over a persistent TCP
// connection. Every message — command, response, or pushed frame — uses the
// same framing:
//
//	┌──────────────────┬──────────────────┬───────────────────────┐
//	│ Size             │ Command ID       │ Payload               │
//	│ (4 bytes, LE)    │ (4 bytes, LE)    │ (Size - 4 bytes)      │
//	└──────────────────┴──────────────────┴───────────────────────┘
//
// The size field counts the command-id field plus the payload, but not
// itself. All multi-byte integers and floats are little-endian.
//
// # Payload encodings
//
// Scalar command payloads use two string forms:
//
//   - NUL-terminated: subject/segment names in get-style requests and
//     responses ("robot_1\x00")
//   - Length-prefixed: names inside a pushed frame-data block
//     (uint32 length + bytes)
//
// Geometry responses carry raw IEEE-754 float64 arrays: translations are
// 3 doubles (X, Y, Z, millimeters), rotations are 4 doubles (quaternion
// X, Y, Z, W).
//
// # Encoding helpers
//
// Encoder and Decoder provide allocation-conscious little-endian
// primitives. ReadMessage and WriteMessage frame whole messages over an
// io.Reader/io.Writer. The package validates framing only; interpreting a
// frame-data payload is the capture package's job.
package protocol
