package protocol

import (
	"errors"
	"io"
)

// Framing constants.
const (
	// SizeFieldLen is the length of the leading size field in bytes.
	SizeFieldLen = 4

	// CommandFieldLen is the length of the command-id field in bytes.
	CommandFieldLen = 4

	// HeaderLen is the total header length preceding the payload.
	HeaderLen = SizeFieldLen + CommandFieldLen

	// MaxPayloadSize bounds a single message payload (64 MiB). A declared
	// size beyond this is treated as stream corruption, not a large frame.
	MaxPayloadSize = 64 * 1024 * 1024
)

// Framing errors.
var (
	ErrMalformedMessage = errors.New("protocol: malformed message header")
	ErrMessageTooLarge  = errors.New("protocol: message exceeds size limit")
)

// Message is one framed protocol message: a command, a response, or a
// pushed frame-data block.
type Message struct {
	ID      CommandID
	Payload []byte
}

// NewMessage creates a message with the given command id and payload.
func NewMessage(id CommandID, payload []byte) *Message {
	return &Message{ID: id, Payload: payload}
}

// Encode encodes the message to bytes including the size field.
func (m *Message) Encode() []byte {
	size := uint32(CommandFieldLen + len(m.Payload))
	buf := make([]byte, HeaderLen+len(m.Payload))
	putUint32(buf[0:], size)
	putUint32(buf[4:], uint32(m.ID))
	copy(buf[HeaderLen:], m.Payload)
	return buf
}

// DecodeMessage decodes a message from a complete byte buffer.
// The buffer must contain the size field, command id, and full payload.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) < HeaderLen {
		return nil, io.ErrUnexpectedEOF
	}

	size := getUint32(data)
	if size < CommandFieldLen {
		return nil, ErrMalformedMessage
	}
	if size-CommandFieldLen > MaxPayloadSize {
		return nil, ErrMessageTooLarge
	}

	payloadLen := int(size) - CommandFieldLen
	if len(data) < SizeFieldLen+int(size) {
		return nil, io.ErrUnexpectedEOF
	}

	payload := make([]byte, payloadLen)
	copy(payload, data[HeaderLen:HeaderLen+payloadLen])

	return &Message{
		ID:      CommandID(getUint32(data[4:])),
		Payload: payload,
	}, nil
}

// ReadMessage reads one complete message from an io.Reader.
// It blocks until the full message arrives, the reader fails, or a read
// deadline set on the underlying connection expires.
func ReadMessage(r io.Reader) (*Message, error) {
	header := make([]byte, HeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	size := getUint32(header)
	if size < CommandFieldLen {
		return nil, ErrMalformedMessage
	}
	if size-CommandFieldLen > MaxPayloadSize {
		return nil, ErrMessageTooLarge
	}

	payload := make([]byte, size-CommandFieldLen)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	return &Message{
		ID:      CommandID(getUint32(header[4:])),
		Payload: payload,
	}, nil
}

// WriteMessage writes a complete message to an io.Writer.
func WriteMessage(w io.Writer, m *Message) error {
	if len(m.Payload) > MaxPayloadSize {
		return ErrMessageTooLarge
	}
	_, err := w.Write(m.Encode())
	return err
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
