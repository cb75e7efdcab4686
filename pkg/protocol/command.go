package protocol

// CommandID identifies a protocol command or response. Responses echo the
// id of the command they answer; pushed frames carry CmdFrameData.
type CommandID uint32

const (
	CmdConnect                           CommandID = 0  // Connection handshake
	CmdGetFrame                          CommandID = 1  // Request next frame (ClientPull)
	CmdGetSubjectCount                   CommandID = 2  // Number of subjects in frame
	CmdGetSubjectName                    CommandID = 3  // Subject name by index
	CmdGetSegmentCount                   CommandID = 4  // Segment count for a subject
	CmdGetSegmentName                    CommandID = 5  // Segment name by index
	CmdGetSegmentGlobalTranslation       CommandID = 6  // Segment position (3 doubles, mm)
	CmdSetStreamMode                     CommandID = 7  // Select push or pull streaming
	CmdEnableSegmentData                 CommandID = 9  // Opt in to segment data
	CmdGetSegmentGlobalRotationQuaternion CommandID = 12 // Segment rotation (4 doubles, XYZW)
	CmdFrameData                         CommandID = 16 // Full frame block (server → client)
)

// String returns the string representation of the command id.
func (c CommandID) String() string {
	switch c {
	case CmdConnect:
		return "Connect"
	case CmdGetFrame:
		return "GetFrame"
	case CmdGetSubjectCount:
		return "GetSubjectCount"
	case CmdGetSubjectName:
		return "GetSubjectName"
	case CmdGetSegmentCount:
		return "GetSegmentCount"
	case CmdGetSegmentName:
		return "GetSegmentName"
	case CmdGetSegmentGlobalTranslation:
		return "GetSegmentGlobalTranslation"
	case CmdSetStreamMode:
		return "SetStreamMode"
	case CmdEnableSegmentData:
		return "EnableSegmentData"
	case CmdGetSegmentGlobalRotationQuaternion:
		return "GetSegmentGlobalRotationQuaternion"
	case CmdFrameData:
		return "FrameData"
	default:
		return "Unknown"
	}
}

// StreamMode selects how frames reach the client.
type StreamMode uint32

const (
	// ServerPush streams frames unsolicited as soon as they are captured.
	ServerPush StreamMode = 0

	// ClientPull delivers one frame per explicit GetFrame request.
	ClientPull StreamMode = 1
)

// String returns the string representation of the stream mode.
func (m StreamMode) String() string {
	switch m {
	case ServerPush:
		return "ServerPush"
	case ClientPull:
		return "ClientPull"
	default:
		return "Unknown"
	}
}

// Valid reports whether the mode is one of the defined stream modes.
func (m StreamMode) Valid() bool {
	return m == ServerPush || m == ClientPull
}
