package roomstate

import (
	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/types"
)

// RoomState is the derived view of a session. Participants is non-empty only
// while Room is set.
type RoomState struct {
	Room         types.Session
	IsConnecting bool
	Error        error

	Participants     []types.Participant
	AudioTracks      []types.Track
	ActiveSpeakers   []types.Participant
	CanPlaybackAudio bool
}

func (s RoomState) IsConnected() bool {
	return s.Room != nil
}

func (s RoomState) LocalParticipant() types.Participant {
	for _, p := range s.Participants {
		if p.IsLocal() {
			return p
		}
	}
	return nil
}

func (s RoomState) Participant(sid livekit.ParticipantID) types.Participant {
	for _, p := range s.Participants {
		if p.SID() == sid {
			return p
		}
	}
	return nil
}

func (s RoomState) IsActiveSpeaker(sid livekit.ParticipantID) bool {
	for _, p := range s.ActiveSpeakers {
		if p.SID() == sid {
			return true
		}
	}
	return false
}
