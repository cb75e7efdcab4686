package protocol

import (
	"bytes"
	"errors"
	"io"
	"math"
)

// Allocation limits to keep a corrupt length prefix from forcing a huge
// allocation before the truncation is noticed.
const (
	// MaxStringLen is the maximum length of a length-prefixed string.
	MaxStringLen = 64 * 1024

	// MaxCollectionCount is the maximum number of items in a counted
	// sequence (subjects, segments).
	MaxCollectionCount = 10_000
)

// Common decoding errors.
var (
	ErrStringTooLong      = errors.New("protocol: string length exceeds limit")
	ErrCollectionTooLarge = errors.New("protocol: collection count exceeds limit")
	ErrMissingTerminator  = errors.New("protocol: unterminated string")
)

// Decoder is a little-endian binary decoder that reads from a byte buffer.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder creates a new decoder from the given byte slice.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF returns true if all bytes have been read.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Position returns the current read position.
func (d *Decoder) Position() int {
	return d.pos
}

// ReadByte reads a single byte.
func (d *Decoder) ReadByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes and returns them.
// The returned slice references the decoder's buffer; do not modify.
func (d *Decoder) ReadBytes(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ReadUint32 reads a uint32 in little-endian byte order.
func (d *Decoder) ReadUint32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos:]
	v := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	d.pos += 4
	return v, nil
}

// ReadUint64 reads a uint64 in little-endian byte order.
func (d *Decoder) ReadUint64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := d.buf[d.pos:]
	v := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
	d.pos += 8
	return v, nil
}

// ReadFloat64 reads a float64 in IEEE 754 format (little-endian).
func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadCString reads a NUL-terminated UTF-8 string, consuming the
// terminator.
func (d *Decoder) ReadCString() (string, error) {
	i := bytes.IndexByte(d.buf[d.pos:], 0x00)
	if i < 0 {
		return "", ErrMissingTerminator
	}
	s := string(d.buf[d.pos : d.pos+i])
	d.pos += i + 1
	return s, nil
}

// ReadLPString reads a length-prefixed UTF-8 string.
// Format: uint32 length + string bytes.
func (d *Decoder) ReadLPString() (string, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", ErrStringTooLong
	}
	b, err := d.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadCount reads a uint32 element count and validates it against
// MaxCollectionCount.
func (d *Decoder) ReadCount() (int, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return 0, err
	}
	if n > MaxCollectionCount {
		return 0, ErrCollectionTooLarge
	}
	return int(n), nil
}
