package session

import (
	"context"
	"fmt"

	"github.com/mocapstream/mocapstream/pkg/capture"
	"github.com/mocapstream/mocapstream/pkg/protocol"
)

// EnableSegmentData asks the server to include segment data in frames.
// Valid while Connected or Streaming. It changes no local state but is a
// precondition for receiving segment poses.
func (s *Session) EnableSegmentData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Connected, Streaming); err != nil {
		return err
	}
	_, err := s.roundTrip(ctx, protocol.NewMessage(protocol.CmdEnableSegmentData, nil), protocol.CmdEnableSegmentData)
	return err
}

// SetStreamMode negotiates the streaming mode and transitions the
// session to Streaming. Setting the same mode again is idempotent.
func (s *Session) SetStreamMode(ctx context.Context, mode protocol.StreamMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: stream mode %d", ErrInvalidState, mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Connected, Streaming); err != nil {
		return err
	}

	e := protocol.NewEncoder()
	e.WriteUint32(uint32(mode))
	if _, err := s.roundTrip(ctx, protocol.NewMessage(protocol.CmdSetStreamMode, e.Bytes()), protocol.CmdSetStreamMode); err != nil {
		return err
	}

	s.mode.Store(int32(mode))
	s.state.Store(int32(Streaming))
	s.log.Debug("stream mode set", "mode", mode.String())
	return nil
}

// GetFrame requests and decodes the next frame in ClientPull mode.
// A frame that arrives but fails to decode is a dropped sample: the
// error is returned and the connection stays up.
func (s *Session) GetFrame(ctx context.Context) (*capture.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Streaming); err != nil {
		return nil, err
	}
	if s.Mode() != protocol.ClientPull {
		return nil, fmt.Errorf("%w: GetFrame in %s mode", ErrInvalidState, s.Mode())
	}

	resp, err := s.roundTrip(ctx, protocol.NewMessage(protocol.CmdGetFrame, nil), protocol.CmdFrameData)
	if err != nil {
		return nil, err
	}
	return s.decodeFrame(resp.Payload)
}

// ReadFrame blocks for the next server-pushed frame in ServerPush mode.
// Unsolicited non-frame messages are a protocol violation.
func (s *Session) ReadFrame(ctx context.Context) (*capture.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Streaming); err != nil {
		return nil, err
	}
	if s.Mode() != protocol.ServerPush {
		return nil, fmt.Errorf("%w: ReadFrame in %s mode", ErrInvalidState, s.Mode())
	}

	m, err := s.readPushed(ctx)
	if err != nil {
		return nil, err
	}
	if m.ID != protocol.CmdFrameData {
		err := fmt.Errorf("%w: unsolicited %s", ErrProtocolViolation, m.ID)
		s.teardownLocked(err)
		return nil, err
	}
	return s.decodeFrame(m.Payload)
}

func (s *Session) decodeFrame(payload []byte) (*capture.Frame, error) {
	f, err := capture.DecodeFrame(payload)
	if err != nil {
		return nil, err
	}
	f.Seq = s.seq.Add(1)
	return f, nil
}

// GetSubjectCount returns the number of subjects in the current frame.
func (s *Session) GetSubjectCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Connected, Streaming); err != nil {
		return 0, err
	}

	resp, err := s.roundTrip(ctx, protocol.NewMessage(protocol.CmdGetSubjectCount, nil), protocol.CmdGetSubjectCount)
	if err != nil {
		return 0, err
	}
	d := protocol.NewDecoder(resp.Payload)
	n, err := d.ReadUint32()
	if err != nil {
		return 0, s.shortPayload(protocol.CmdGetSubjectCount, err)
	}
	return int(n), nil
}

// GetSubjectName returns the name of the subject at the given index.
func (s *Session) GetSubjectName(ctx context.Context, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Connected, Streaming); err != nil {
		return "", err
	}

	e := protocol.NewEncoder()
	e.WriteUint32(uint32(index))
	resp, err := s.roundTrip(ctx, protocol.NewMessage(protocol.CmdGetSubjectName, e.Bytes()), protocol.CmdGetSubjectName)
	if err != nil {
		return "", err
	}
	name, err := protocol.NewDecoder(resp.Payload).ReadCString()
	if err != nil {
		return "", s.shortPayload(protocol.CmdGetSubjectName, err)
	}
	return name, nil
}

// GetSegmentCount returns the number of segments for the named subject.
func (s *Session) GetSegmentCount(ctx context.Context, subject string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Connected, Streaming); err != nil {
		return 0, err
	}

	e := protocol.NewEncoder()
	e.WriteCString(subject)
	resp, err := s.roundTrip(ctx, protocol.NewMessage(protocol.CmdGetSegmentCount, e.Bytes()), protocol.CmdGetSegmentCount)
	if err != nil {
		return 0, err
	}
	n, err := protocol.NewDecoder(resp.Payload).ReadUint32()
	if err != nil {
		return 0, s.shortPayload(protocol.CmdGetSegmentCount, err)
	}
	return int(n), nil
}

// GetSegmentName returns the name of a subject's segment by index.
func (s *Session) GetSegmentName(ctx context.Context, subject string, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Connected, Streaming); err != nil {
		return "", err
	}

	e := protocol.NewEncoder()
	e.WriteCString(subject)
	e.WriteUint32(uint32(index))
	resp, err := s.roundTrip(ctx, protocol.NewMessage(protocol.CmdGetSegmentName, e.Bytes()), protocol.CmdGetSegmentName)
	if err != nil {
		return "", err
	}
	name, err := protocol.NewDecoder(resp.Payload).ReadCString()
	if err != nil {
		return "", s.shortPayload(protocol.CmdGetSegmentName, err)
	}
	return name, nil
}

// GetSegmentGlobalTranslation returns a segment's global translation in
// meters (the wire carries millimeters).
func (s *Session) GetSegmentGlobalTranslation(ctx context.Context, subject, segment string) (capture.Vector3, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Connected, Streaming); err != nil {
		return capture.Vector3{}, err
	}

	resp, err := s.roundTrip(ctx, segmentQuery(protocol.CmdGetSegmentGlobalTranslation, subject, segment), protocol.CmdGetSegmentGlobalTranslation)
	if err != nil {
		return capture.Vector3{}, err
	}

	d := protocol.NewDecoder(resp.Payload)
	var mm [3]float64
	for i := range mm {
		if mm[i], err = d.ReadFloat64(); err != nil {
			return capture.Vector3{}, s.shortPayload(protocol.CmdGetSegmentGlobalTranslation, err)
		}
	}
	return capture.Vector3{
		X: mm[0] * capture.MetersPerMillimeter,
		Y: mm[1] * capture.MetersPerMillimeter,
		Z: mm[2] * capture.MetersPerMillimeter,
	}, nil
}

// GetSegmentGlobalRotationQuaternion returns a segment's global rotation
// as a quaternion in X, Y, Z, W order.
func (s *Session) GetSegmentGlobalRotationQuaternion(ctx context.Context, subject, segment string) (capture.Quaternion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(Connected, Streaming); err != nil {
		return capture.Quaternion{}, err
	}

	resp, err := s.roundTrip(ctx, segmentQuery(protocol.CmdGetSegmentGlobalRotationQuaternion, subject, segment), protocol.CmdGetSegmentGlobalRotationQuaternion)
	if err != nil {
		return capture.Quaternion{}, err
	}

	d := protocol.NewDecoder(resp.Payload)
	var q [4]float64
	for i := range q {
		if q[i], err = d.ReadFloat64(); err != nil {
			return capture.Quaternion{}, s.shortPayload(protocol.CmdGetSegmentGlobalRotationQuaternion, err)
		}
	}
	return capture.Quaternion{X: q[0], Y: q[1], Z: q[2], W: q[3]}, nil
}

// segmentQuery builds the NUL-terminated subject+segment payload shared
// by the geometry commands.
func segmentQuery(id protocol.CommandID, subject, segment string) *protocol.Message {
	e := protocol.NewEncoder()
	e.WriteCString(subject)
	e.WriteCString(segment)
	return protocol.NewMessage(id, e.Bytes())
}

// shortPayload converts a truncated typed response into a protocol
// violation and tears the session down. mu must be held.
func (s *Session) shortPayload(id protocol.CommandID, cause error) error {
	err := fmt.Errorf("%w: short %s response: %v", ErrProtocolViolation, id, cause)
	s.teardownLocked(err)
	return err
}
