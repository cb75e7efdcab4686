package capture

import "testing"

// FuzzDecodeFrame tests that decoding arbitrary bytes doesn't panic and
// never yields a frame alongside an error.
func FuzzDecodeFrame(f *testing.F) {
	f.Add(buildFramePayload("robot_1", "robot_1",
		[3]float64{1234.0, 2345.0, 567.0},
		[4]float64{0, 0, 0.70710678, 0.70710678}))
	f.Add(buildFramePayload("s", "g", [3]float64{0, 0, 0}, [4]float64{0, 0, 0, 0}))
	f.Add([]byte{0x00, 0x00, 0x00, 0x00})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		frame, err := DecodeFrame(data)
		if frame != nil && err != nil {
			t.Errorf("frame and error both non-nil: %v", err)
		}
	})
}
