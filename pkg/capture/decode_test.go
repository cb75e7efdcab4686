package capture

import (
	"errors"
	"math"
	"testing"

	"github.com/mocapstream/mocapstream/pkg/protocol"
)

// buildFramePayload encodes a single-subject, single-segment frame with
// wire-unit (millimeter) translation values.
func buildFramePayload(subject, segment string, t [3]float64, q [4]float64) []byte {
	e := protocol.NewEncoder()
	e.WriteUint32(1)
	e.WriteLPString(subject)
	e.WriteUint32(1)
	e.WriteLPString(segment)
	for _, v := range t {
		e.WriteFloat64(v)
	}
	for _, v := range q {
		e.WriteFloat64(v)
	}
	return e.Bytes()
}

func TestDecodeFrameScenario(t *testing.T) {
	// subjectCount=1, subjectName="robot_1", segmentCount=1,
	// segmentName="robot_1", translation mm, rotation quaternion.
	payload := buildFramePayload("robot_1", "robot_1",
		[3]float64{1234.0, 2345.0, 567.0},
		[4]float64{0.0, 0.0, 0.70710678, 0.70710678})

	f, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}

	if len(f.Subjects) != 1 {
		t.Fatalf("subject count = %d, want 1", len(f.Subjects))
	}
	subject := f.Subject("robot_1")
	if subject == nil {
		t.Fatal("Subject(robot_1) = nil")
	}
	seg := subject.Segment("robot_1")
	if seg == nil {
		t.Fatal("Segment(robot_1) = nil")
	}
	if seg.Occluded() {
		t.Fatal("segment unexpectedly occluded")
	}

	// Millimeters on the wire, meters in the Frame: × 0.001.
	want := Vector3{X: 1.234, Y: 2.345, Z: 0.567}
	got := seg.Pose.Translation
	const eps = 1e-9
	if math.Abs(got.X-want.X) > eps || math.Abs(got.Y-want.Y) > eps || math.Abs(got.Z-want.Z) > eps {
		t.Errorf("translation = %+v, want %+v (meters)", got, want)
	}

	// Rotation passes through bit-exact.
	wantQ := Quaternion{X: 0, Y: 0, Z: 0.70710678, W: 0.70710678}
	if seg.Pose.Rotation != wantQ {
		t.Errorf("rotation = %+v, want %+v", seg.Pose.Rotation, wantQ)
	}
}

func TestDecodeFrameTruncated(t *testing.T) {
	full := buildFramePayload("robot_1", "robot_1",
		[3]float64{1.0, 2.0, 3.0},
		[4]float64{0, 0, 0, 1})

	// Cut the payload at every possible point; none may yield a Frame.
	for cut := 0; cut < len(full); cut++ {
		f, err := DecodeFrame(full[:cut])
		if f != nil {
			t.Fatalf("cut=%d: got partial frame %+v", cut, f)
		}
		if !errors.Is(err, ErrTruncatedPayload) {
			t.Fatalf("cut=%d: error = %v, want ErrTruncatedPayload", cut, err)
		}
	}
}

func TestDecodeFrameOccludedSegment(t *testing.T) {
	payload := buildFramePayload("robot_1", "pelvis",
		[3]float64{0, 0, 0},
		[4]float64{0, 0, 0, 0})

	f, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	seg := f.Subject("robot_1").Segment("pelvis")
	if !seg.Occluded() {
		t.Error("all-zero pose must decode as occluded")
	}
	if seg.Pose != nil {
		t.Errorf("occluded Pose = %+v, want nil", seg.Pose)
	}
}

func TestDecodeFrameZeroQuaternion(t *testing.T) {
	// Nonzero translation with a zero-norm quaternion is corrupt data,
	// not occlusion.
	payload := buildFramePayload("robot_1", "pelvis",
		[3]float64{100.0, 0, 0},
		[4]float64{0, 0, 0, 0})

	f, err := DecodeFrame(payload)
	if f != nil {
		t.Fatalf("got frame %+v, want nil", f)
	}
	if !errors.Is(err, ErrZeroQuaternion) {
		t.Errorf("error = %v, want ErrZeroQuaternion", err)
	}
}

func TestDecodeFrameTrailingBytes(t *testing.T) {
	payload := buildFramePayload("s", "g", [3]float64{1, 2, 3}, [4]float64{0, 0, 0, 1})
	payload = append(payload, 0xAA)

	if f, err := DecodeFrame(payload); err == nil {
		t.Errorf("trailing garbage accepted, frame = %+v", f)
	}
}

func TestDecodeFrameEmpty(t *testing.T) {
	e := protocol.NewEncoder()
	e.WriteUint32(0)

	f, err := DecodeFrame(e.Bytes())
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if len(f.Subjects) != 0 {
		t.Errorf("subject count = %d, want 0", len(f.Subjects))
	}
	if f.Subject("anything") != nil {
		t.Error("Subject() on empty frame must return nil")
	}
}

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	orig := &Frame{
		Subjects: []Subject{
			{
				Name: "robot_1",
				Segments: []Segment{
					{Name: "base", Pose: &Pose{
						Translation: Vector3{X: 1.5, Y: -2.25, Z: 0.125},
						Rotation:    Quaternion{X: 0, Y: 0, Z: 0, W: 1},
					}},
					{Name: "arm"}, // occluded
				},
			},
			{
				Name: "robot_2",
				Segments: []Segment{
					{Name: "base", Pose: &Pose{
						Translation: Vector3{X: 0.5, Y: 0.5, Z: 0.5},
						Rotation:    Quaternion{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5},
					}},
				},
			},
		},
	}

	decoded, err := DecodeFrame(EncodeFrame(orig))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}

	if len(decoded.Subjects) != 2 {
		t.Fatalf("subject count = %d, want 2", len(decoded.Subjects))
	}
	if decoded.Subject("robot_1").Segment("arm").Pose != nil {
		t.Error("occluded segment did not survive round trip")
	}
	got := decoded.Subject("robot_2").Segments[0].Pose
	if got.Rotation != (Quaternion{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5}) {
		t.Errorf("rotation = %+v after round trip", got.Rotation)
	}
	const eps = 1e-12
	if math.Abs(got.Translation.X-0.5) > eps {
		t.Errorf("translation.X = %v after round trip", got.Translation.X)
	}
}

func TestQuaternionNorm(t *testing.T) {
	q := Quaternion{X: 0, Y: 0, Z: 0.70710678, W: 0.70710678}
	if n := q.Norm(); math.Abs(n-1.0) > 1e-7 {
		t.Errorf("Norm() = %v, want ≈1", n)
	}
	if !(Quaternion{}).IsZero() {
		t.Error("zero quaternion must report IsZero")
	}
}
