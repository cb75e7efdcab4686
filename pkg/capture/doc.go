// Package capture defines the decoded motion-capture data model and the
// decoder that turns a frame-data payload into it.
//
// A Frame is one complete capture instant: every tracked Subject with its
// Segments and their poses. Frames are immutable once decoded — the
// decoder either produces a complete, internally consistent Frame or
// returns an error and no Frame at all.
//
// # Units
//
// The wire carries translations in millimeters. Decoded Frames expose
// translations in meters (wire value × 0.001). Rotation quaternions are
// passed through unmodified in X, Y, Z, W order.
//
// # Occlusion
//
// A segment the tracking system could not see for a frame arrives with an
// all-zero pose. The decoder maps that to a nil Pose rather than
// surfacing a fake origin pose. A zero-norm quaternion paired with a
// nonzero translation is corrupt data and fails the whole frame.
package capture
