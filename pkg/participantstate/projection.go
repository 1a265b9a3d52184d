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

package participantstate

import (
	"time"

	"github.com/frostbyte73/core"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/events"
	"github.com/livekit/livekit-roomview/pkg/observable"
	"github.com/livekit/livekit-roomview/pkg/telemetry/prometheus"
	"github.com/livekit/livekit-roomview/pkg/types"
)

const DefaultBitrateInterval = time.Second

type Options struct {
	BitrateInterval time.Duration
	Logger          logger.Logger
}

// Projection follows a single participant's events and keeps a State snapshot
// current. Close must be called to release listeners and the bitrate sampler.
type Projection struct {
	participant types.Participant
	logger      logger.Logger
	interval    time.Duration

	state *observable.Value[State]
	subs  events.Group

	stop        core.Fuse
	samplerDone chan struct{}
}

func New(participant types.Participant, opts Options) *Projection {
	if opts.BitrateInterval <= 0 {
		opts.BitrateInterval = DefaultBitrateInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	p := &Projection{
		participant: participant,
		logger:      opts.Logger.WithValues("participant", participant.Identity(), "pID", participant.SID()),
		interval:    opts.BitrateInterval,
		samplerDone: make(chan struct{}),
	}
	p.state = observable.NewValue(p.initialState(), p.logger)

	p.subs.Add(
		participant.On(types.ParticipantEventTrackMuted, func(d types.ParticipantEventData) { p.onMuteChanged(d, true) }),
		participant.On(types.ParticipantEventTrackUnmuted, func(d types.ParticipantEventData) { p.onMuteChanged(d, false) }),
		participant.On(types.ParticipantEventMetadataChanged, p.onMetadataChanged),
		participant.On(types.ParticipantEventIsSpeakingChanged, p.onSpeakingChanged),
		participant.On(types.ParticipantEventTrackPublished, p.onPublicationsChanged),
		participant.On(types.ParticipantEventTrackUnpublished, p.onPublicationsChanged),
		participant.On(types.ParticipantEventTrackSubscribed, p.onPublicationsChanged),
		participant.On(types.ParticipantEventTrackUnsubscribed, p.onPublicationsChanged),
		participant.On(types.ParticipantEventLocalTrackPublished, p.onPublicationsChanged),
		participant.On(types.ParticipantEventLocalTrackUnpublished, p.onPublicationsChanged),
		participant.On(types.ParticipantEventConnectionQualityChanged, p.onConnectionQualityChanged),
	)

	go p.sampleBitrate()
	return p
}

func (p *Projection) Participant() types.Participant {
	return p.participant
}

func (p *Projection) State() State {
	return p.state.Get()
}

func (p *Projection) Subscribe(fn func(State)) events.Subscription {
	return p.state.Subscribe(fn)
}

// Close releases every listener and stops bitrate sampling. It is safe to call more than once.
func (p *Projection) Close() {
	if p.subs.Close() {
		p.logger.Debugw("participant projection closed")
	}
	p.stop.Break()
}

func (p *Projection) IsClosed() bool {
	return p.stop.IsBroken()
}

func (p *Projection) initialState() State {
	s := State{
		SID:               p.participant.SID(),
		Identity:          p.participant.Identity(),
		IsLocal:           p.participant.IsLocal(),
		ConnectionQuality: p.participant.ConnectionQuality(),
		IsSpeaking:        p.participant.IsSpeaking(),
		Metadata:          p.participant.Metadata(),
	}
	s.DisplayName = displayName(p.participant)
	return p.withPublications(s)
}

func (p *Projection) onMuteChanged(d types.ParticipantEventData, muted bool) {
	if d.Publication == nil {
		return
	}
	kind := d.Publication.Kind()
	p.state.Update(func(s State) State {
		switch kind {
		case livekit.TrackType_AUDIO:
			s.IsAudioMuted = muted
		case livekit.TrackType_VIDEO:
			s.IsVideoMuted = muted
		}
		return s
	})
}

func (p *Projection) onMetadataChanged(types.ParticipantEventData) {
	metadata := p.participant.Metadata()
	if metadata == "" {
		return
	}
	p.state.Update(func(s State) State {
		s.Metadata = metadata
		return s
	})
}

func (p *Projection) onSpeakingChanged(types.ParticipantEventData) {
	speaking := p.participant.IsSpeaking()
	p.state.Update(func(s State) State {
		s.IsSpeaking = speaking
		return s
	})
}

func (p *Projection) onConnectionQualityChanged(types.ParticipantEventData) {
	quality := p.participant.ConnectionQuality()
	p.state.Update(func(s State) State {
		prometheus.RecordQuality(s.Identity, s.ConnectionQuality, quality)
		s.ConnectionQuality = quality
		return s
	})
}

func (p *Projection) onPublicationsChanged(types.ParticipantEventData) {
	p.state.Update(func(s State) State {
		s.DisplayName = displayName(p.participant)
		return p.withPublications(s)
	})
}

// withPublications refreshes publication lookups and re-derives mute flags.
// A kind with no unmuted publication is reported as muted.
func (p *Projection) withPublications(s State) State {
	pubs := p.participant.Publications()

	s.Publications = pubs
	s.SubscribedTracks = s.SubscribedTracks[:0:0]
	audioLive, videoLive := false, false
	for _, pub := range pubs {
		if pub.IsSubscribed() && pub.Track() != nil {
			s.SubscribedTracks = append(s.SubscribedTracks, pub)
		}
		if pub.IsMuted() {
			continue
		}
		switch pub.Kind() {
		case livekit.TrackType_AUDIO:
			audioLive = true
		case livekit.TrackType_VIDEO:
			videoLive = true
		}
	}
	s.IsAudioMuted = !audioLive
	s.IsVideoMuted = !videoLive

	s.Camera = p.participant.Publication(livekit.TrackSource_CAMERA)
	s.Microphone = p.participant.Publication(livekit.TrackSource_MICROPHONE)
	s.ScreenShare = p.participant.Publication(livekit.TrackSource_SCREEN_SHARE)
	return s
}

func (p *Projection) sampleBitrate() {
	defer close(p.samplerDone)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop.Watch():
			return
		case <-ticker.C:
			var total uint64
			for _, pub := range p.participant.Publications() {
				if track := pub.Track(); track != nil {
					total += track.CurrentBitrate()
				}
			}
			if p.stop.IsBroken() {
				return
			}
			if p.state.Get().Bitrate == total {
				continue
			}
			p.state.Update(func(s State) State {
				s.Bitrate = total
				return s
			})
		}
	}
}
