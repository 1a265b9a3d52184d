package signalclient

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pion/webrtc/v3"

	"github.com/livekit/protocol/livekit"
)

const trackIdSeparator = "|"

func unpackStreamID(packed string) (participantID livekit.ParticipantID, trackID livekit.TrackID) {
	parts := strings.Split(packed, trackIdSeparator)
	if len(parts) > 1 {
		return livekit.ParticipantID(parts[0]), livekit.TrackID(packed[len(parts[0])+1:])
	}
	return livekit.ParticipantID(packed), ""
}

func toProtoSessionDescription(sd webrtc.SessionDescription) *livekit.SessionDescription {
	return &livekit.SessionDescription{
		Type: sd.Type.String(),
		Sdp:  sd.SDP,
	}
}

func fromProtoSessionDescription(sd *livekit.SessionDescription) webrtc.SessionDescription {
	return webrtc.SessionDescription{
		Type: webrtc.NewSDPType(sd.Type),
		SDP:  sd.Sdp,
	}
}

func toProtoTrickle(candidateInit webrtc.ICECandidateInit, target livekit.SignalTarget) (*livekit.TrickleRequest, error) {
	data, err := json.Marshal(candidateInit)
	if err != nil {
		return nil, err
	}
	return &livekit.TrickleRequest{
		CandidateInit: string(data),
		Target:        target,
	}, nil
}

func fromProtoTrickle(trickle *livekit.TrickleRequest) (webrtc.ICECandidateInit, error) {
	ci := webrtc.ICECandidateInit{}
	err := json.Unmarshal([]byte(trickle.CandidateInit), &ci)
	return ci, err
}

func toTrackKind(kind webrtc.RTPCodecType) livekit.TrackType {
	if kind == webrtc.RTPCodecTypeVideo {
		return livekit.TrackType_VIDEO
	}
	return livekit.TrackType_AUDIO
}

func isEOF(err error) bool {
	return err == io.ErrClosedPipe || err == io.EOF
}
