package types

import (
	"github.com/livekit/protocol/livekit"
)

type RoomEvent int

const (
	RoomEventParticipantConnected RoomEvent = iota
	RoomEventParticipantDisconnected
	RoomEventActiveSpeakersChanged
	RoomEventTrackSubscribed
	RoomEventTrackUnsubscribed
	RoomEventLocalTrackPublished
	RoomEventLocalTrackUnpublished
	RoomEventAudioPlaybackStatusChanged
	// terminal, fires once per session
	RoomEventDisconnected
)

func (e RoomEvent) String() string {
	switch e {
	case RoomEventParticipantConnected:
		return "participantConnected"
	case RoomEventParticipantDisconnected:
		return "participantDisconnected"
	case RoomEventActiveSpeakersChanged:
		return "activeSpeakersChanged"
	case RoomEventTrackSubscribed:
		return "trackSubscribed"
	case RoomEventTrackUnsubscribed:
		return "trackUnsubscribed"
	case RoomEventLocalTrackPublished:
		return "localTrackPublished"
	case RoomEventLocalTrackUnpublished:
		return "localTrackUnpublished"
	case RoomEventAudioPlaybackStatusChanged:
		return "audioPlaybackChanged"
	case RoomEventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

type RoomEventData struct {
	Participant Participant
	Publication TrackPublication
	Track       Track
	// set for RoomEventActiveSpeakersChanged
	Speakers []Participant
	// set for RoomEventAudioPlaybackStatusChanged
	CanPlaybackAudio bool
	// set for RoomEventDisconnected when the session ended abnormally
	Err error
}

type ParticipantEvent int

const (
	ParticipantEventTrackMuted ParticipantEvent = iota
	ParticipantEventTrackUnmuted
	ParticipantEventMetadataChanged
	ParticipantEventIsSpeakingChanged
	ParticipantEventTrackPublished
	ParticipantEventTrackUnpublished
	ParticipantEventTrackSubscribed
	ParticipantEventTrackUnsubscribed
	ParticipantEventLocalTrackPublished
	ParticipantEventLocalTrackUnpublished
	ParticipantEventConnectionQualityChanged
)

var AllParticipantEvents = []ParticipantEvent{
	ParticipantEventTrackMuted,
	ParticipantEventTrackUnmuted,
	ParticipantEventMetadataChanged,
	ParticipantEventIsSpeakingChanged,
	ParticipantEventTrackPublished,
	ParticipantEventTrackUnpublished,
	ParticipantEventTrackSubscribed,
	ParticipantEventTrackUnsubscribed,
	ParticipantEventLocalTrackPublished,
	ParticipantEventLocalTrackUnpublished,
	ParticipantEventConnectionQualityChanged,
}

func (e ParticipantEvent) String() string {
	switch e {
	case ParticipantEventTrackMuted:
		return "trackMuted"
	case ParticipantEventTrackUnmuted:
		return "trackUnmuted"
	case ParticipantEventMetadataChanged:
		return "participantMetadataChanged"
	case ParticipantEventIsSpeakingChanged:
		return "isSpeakingChanged"
	case ParticipantEventTrackPublished:
		return "trackPublished"
	case ParticipantEventTrackUnpublished:
		return "trackUnpublished"
	case ParticipantEventTrackSubscribed:
		return "trackSubscribed"
	case ParticipantEventTrackUnsubscribed:
		return "trackUnsubscribed"
	case ParticipantEventLocalTrackPublished:
		return "localTrackPublished"
	case ParticipantEventLocalTrackUnpublished:
		return "localTrackUnpublished"
	case ParticipantEventConnectionQualityChanged:
		return "connectionQualityChanged"
	default:
		return "unknown"
	}
}

type ParticipantEventData struct {
	Publication TrackPublication
	Track       Track
	Metadata    string
	Speaking    bool
	Quality     livekit.ConnectionQuality
}
