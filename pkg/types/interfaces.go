// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"context"
	"time"

	"github.com/pion/rtp"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/events"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

type ConnectOptions struct {
	AutoSubscribe bool
	// publish the selected devices once connected
	PublishAudio  bool
	PublishVideo  bool
	AudioDeviceID string
	VideoDeviceID string
}

//counterfeiter:generate . Connector
type Connector interface {
	Connect(ctx context.Context, url string, token string, opts ConnectOptions) (Session, error)
}

// Session is a connected room. It is owned by the host; the view only keeps a
// reference to it while connected.
type Session interface {
	Name() string
	LocalParticipant() LocalParticipant
	RemoteParticipants() map[livekit.ParticipantID]Participant
	GetParticipant(sid livekit.ParticipantID) Participant
	ActiveSpeakers() []Participant
	CanPlaybackAudio() bool
	StartAudio(ctx context.Context) error
	SwitchActiveDevice(kind DeviceKind, deviceID string) error
	Disconnect()

	On(event RoomEvent, handler func(RoomEventData)) events.Subscription
}

type Participant interface {
	SID() livekit.ParticipantID
	Identity() livekit.ParticipantIdentity
	Name() livekit.ParticipantName
	Metadata() string
	IsLocal() bool
	IsSpeaking() bool
	AudioLevel() float32
	LastSpokeAt() time.Time
	JoinedAt() time.Time
	ConnectionQuality() livekit.ConnectionQuality

	Publications() []TrackPublication
	// Publication returns nil when nothing is published from source
	Publication(source livekit.TrackSource) TrackPublication

	On(event ParticipantEvent, handler func(ParticipantEventData)) events.Subscription
}

type LocalParticipant interface {
	Participant

	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
	SetCameraEnabled(ctx context.Context, enabled bool) error
	SetScreenShareEnabled(ctx context.Context, enabled bool) error
}

type TrackPublication interface {
	SID() livekit.TrackID
	Name() string
	Kind() livekit.TrackType
	Source() livekit.TrackSource
	IsMuted() bool
	IsSubscribed() bool
	// Track is nil until media is attached
	Track() Track
	Dimensions() (width uint32, height uint32)
}

// Track is media that can be shared by several sinks. Attach and Detach are
// reference counted per sink and detaching a sink that is not attached is a no-op.
type Track interface {
	SID() livekit.TrackID
	Kind() livekit.TrackType
	// CurrentBitrate in bits per second
	CurrentBitrate() uint64
	Attach(sink MediaSink)
	Detach(sink MediaSink)
}

type MediaSink interface {
	WriteRTP(pkt *rtp.Packet) error
}
