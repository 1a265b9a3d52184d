package participantstate

import (
	"github.com/dustin/go-humanize"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/types"
)

type Orientation string

const (
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
)

type State struct {
	SID               livekit.ParticipantID
	Identity          livekit.ParticipantIdentity
	DisplayName       string
	IsLocal           bool
	IsSpeaking        bool
	IsAudioMuted      bool
	IsVideoMuted      bool
	ConnectionQuality livekit.ConnectionQuality
	Metadata          string

	Publications     []types.TrackPublication
	SubscribedTracks []types.TrackPublication
	Camera           types.TrackPublication
	Microphone       types.TrackPublication
	ScreenShare      types.TrackPublication

	// bits per second across all attached tracks, sampled
	Bitrate uint64
}

// CameraOrientation is landscape unless the camera reports a taller than wide frame.
func (s State) CameraOrientation() Orientation {
	if s.Camera == nil {
		return OrientationLandscape
	}
	w, h := s.Camera.Dimensions()
	if h > w {
		return OrientationPortrait
	}
	return OrientationLandscape
}

func (s State) BitrateString() string {
	if s.Bitrate == 0 {
		return ""
	}
	return humanize.SI(float64(s.Bitrate), "bps")
}

func displayName(p types.Participant) string {
	name := string(p.Name())
	if name == "" {
		name = string(p.Identity())
	}
	if p.IsLocal() {
		name += " (You)"
	}
	return name
}
