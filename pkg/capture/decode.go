package capture

import (
	"errors"
	"fmt"
	"io"

	"github.com/mocapstream/mocapstream/pkg/protocol"
)

// Decode errors.
var (
	ErrTruncatedPayload = errors.New("capture: truncated frame payload")
	ErrZeroQuaternion   = errors.New("capture: zero-norm rotation quaternion")
)

// DecodeFrame decodes a frame-data payload into a Frame.
//
// Layout, all little-endian:
//
//	uint32 subjectCount
//	per subject:
//	    uint32 nameLen + name bytes
//	    uint32 segmentCount
//	    per segment:
//	        uint32 nameLen + name bytes
//	        3 × float64 translation (X, Y, Z, millimeters)
//	        4 × float64 rotation (X, Y, Z, W)
//
// Decoding is strictly sequential and stateless. Any short read fails the
// whole frame with ErrTruncatedPayload — a partial Frame is never
// returned. Seq is left zero for the caller to assign.
func DecodeFrame(payload []byte) (*Frame, error) {
	d := protocol.NewDecoder(payload)

	subjectCount, err := d.ReadCount()
	if err != nil {
		return nil, truncated(err, d)
	}

	f := &Frame{Subjects: make([]Subject, 0, subjectCount)}
	for i := 0; i < subjectCount; i++ {
		name, err := d.ReadLPString()
		if err != nil {
			return nil, truncated(err, d)
		}

		segmentCount, err := d.ReadCount()
		if err != nil {
			return nil, truncated(err, d)
		}

		subject := Subject{
			Name:     name,
			Segments: make([]Segment, 0, segmentCount),
		}
		for j := 0; j < segmentCount; j++ {
			seg, err := decodeSegment(d)
			if err != nil {
				return nil, err
			}
			subject.Segments = append(subject.Segments, seg)
		}
		f.Subjects = append(f.Subjects, subject)
	}

	if !d.EOF() {
		return nil, fmt.Errorf("capture: %d trailing bytes after frame", d.Remaining())
	}
	return f, nil
}

func decodeSegment(d *protocol.Decoder) (Segment, error) {
	name, err := d.ReadLPString()
	if err != nil {
		return Segment{}, truncated(err, d)
	}

	var t Vector3
	var q Quaternion
	for _, p := range []*float64{&t.X, &t.Y, &t.Z, &q.X, &q.Y, &q.Z, &q.W} {
		v, err := d.ReadFloat64()
		if err != nil {
			return Segment{}, truncated(err, d)
		}
		*p = v
	}

	// An all-zero pose means the segment was occluded this frame.
	if t.IsZero() && q.IsZero() {
		return Segment{Name: name}, nil
	}
	if q.IsZero() {
		return Segment{}, fmt.Errorf("%w: segment %q", ErrZeroQuaternion, name)
	}

	return Segment{
		Name: name,
		Pose: &Pose{
			Translation: Vector3{
				X: t.X * MetersPerMillimeter,
				Y: t.Y * MetersPerMillimeter,
				Z: t.Z * MetersPerMillimeter,
			},
			Rotation: q,
		},
	}, nil
}

// EncodeFrame encodes a Frame back into a frame-data payload, converting
// translations from meters back to wire millimeters. It is the inverse
// of DecodeFrame and exists for simulators and tests.
func EncodeFrame(f *Frame) []byte {
	e := protocol.NewEncoderWithCap(256)
	e.WriteUint32(uint32(len(f.Subjects)))
	for i := range f.Subjects {
		s := &f.Subjects[i]
		e.WriteLPString(s.Name)
		e.WriteUint32(uint32(len(s.Segments)))
		for j := range s.Segments {
			seg := &s.Segments[j]
			e.WriteLPString(seg.Name)
			if seg.Pose == nil {
				for k := 0; k < 7; k++ {
					e.WriteFloat64(0)
				}
				continue
			}
			e.WriteFloat64(seg.Pose.Translation.X / MetersPerMillimeter)
			e.WriteFloat64(seg.Pose.Translation.Y / MetersPerMillimeter)
			e.WriteFloat64(seg.Pose.Translation.Z / MetersPerMillimeter)
			e.WriteFloat64(seg.Pose.Rotation.X)
			e.WriteFloat64(seg.Pose.Rotation.Y)
			e.WriteFloat64(seg.Pose.Rotation.Z)
			e.WriteFloat64(seg.Pose.Rotation.W)
		}
	}
	return e.Bytes()
}

func truncated(err error, d *protocol.Decoder) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w at byte %d", ErrTruncatedPayload, d.Position())
	}
	return err
}
