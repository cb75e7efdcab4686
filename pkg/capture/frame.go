package capture

import "math"

// MetersPerMillimeter converts wire translations to the public unit.
const MetersPerMillimeter = 0.001

// Vector3 is a 3D translation in meters.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is a rotation in X, Y, Z, W order. Decoded quaternions are
// expected to be unit length; the decoder rejects zero-norm values but
// does not renormalize.
type Quaternion struct {
	X, Y, Z, W float64
}

// Norm returns the quaternion magnitude.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// IsZero reports whether every component is exactly zero.
func (q Quaternion) IsZero() bool {
	return q.X == 0 && q.Y == 0 && q.Z == 0 && q.W == 0
}

// IsZero reports whether every component is exactly zero.
func (v Vector3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Pose is a segment's global translation and rotation.
type Pose struct {
	Translation Vector3
	Rotation    Quaternion
}

// Segment is a rigid sub-part of a subject. Pose is nil when the segment
// was occluded for this frame.
type Segment struct {
	Name string
	Pose *Pose
}

// Occluded reports whether the segment had no valid pose this frame.
func (s *Segment) Occluded() bool {
	return s.Pose == nil
}

// Subject is a tracked rigid body. Segment order reflects wire order and
// is not guaranteed stable across frames; look segments up by name.
type Subject struct {
	Name     string
	Segments []Segment
}

// Segment returns the named segment, or nil if the subject has none by
// that name in this frame.
func (s *Subject) Segment(name string) *Segment {
	for i := range s.Segments {
		if s.Segments[i].Name == name {
			return &s.Segments[i]
		}
	}
	return nil
}

// Frame is one complete capture instant. Seq is assigned locally by the
// session in arrival order; the wire carries no sequence number.
type Frame struct {
	Seq      uint64
	Subjects []Subject
}

// Subject returns the named subject, or nil if it was not tracked in
// this frame.
func (f *Frame) Subject(name string) *Subject {
	for i := range f.Subjects {
		if f.Subjects[i].Name == name {
			return &f.Subjects[i]
		}
	}
	return nil
}
