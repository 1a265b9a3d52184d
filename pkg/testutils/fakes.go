package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/attach"
	"github.com/livekit/livekit-roomview/pkg/events"
	"github.com/livekit/livekit-roomview/pkg/types"
)

// FakeTrack is an in-memory track with a settable bitrate.
type FakeTrack struct {
	sid     livekit.TrackID
	kind    livekit.TrackType
	bitrate atomic.Uint64
	sinks   *attach.SinkSet
}

func NewFakeTrack(sid string, kind livekit.TrackType) *FakeTrack {
	return &FakeTrack{
		sid:   livekit.TrackID(sid),
		kind:  kind,
		sinks: attach.NewSinkSet(nil),
	}
}

func (t *FakeTrack) SID() livekit.TrackID                 { return t.sid }
func (t *FakeTrack) Kind() livekit.TrackType              { return t.kind }
func (t *FakeTrack) CurrentBitrate() uint64               { return t.bitrate.Load() }
func (t *FakeTrack) SetBitrate(bps uint64)                { t.bitrate.Store(bps) }
func (t *FakeTrack) Attach(sink types.MediaSink)          { t.sinks.Attach(sink) }
func (t *FakeTrack) Detach(sink types.MediaSink)          { t.sinks.Detach(sink) }
func (t *FakeTrack) Sinks() []types.MediaSink             { return t.sinks.Sinks() }
func (t *FakeTrack) IsAttached(sink types.MediaSink) bool { return t.sinks.IsAttached(sink) }

type FakePublication struct {
	lock       sync.RWMutex
	sid        livekit.TrackID
	name       string
	kind       livekit.TrackType
	source     livekit.TrackSource
	muted      bool
	subscribed bool
	track      *FakeTrack
	width      uint32
	height     uint32
}

func NewFakePublication(sid string, source livekit.TrackSource) *FakePublication {
	kind := livekit.TrackType_VIDEO
	if source == livekit.TrackSource_MICROPHONE || source == livekit.TrackSource_SCREEN_SHARE_AUDIO {
		kind = livekit.TrackType_AUDIO
	}
	return &FakePublication{
		sid:    livekit.TrackID(sid),
		name:   source.String(),
		kind:   kind,
		source: source,
	}
}

func (p *FakePublication) SID() livekit.TrackID        { return p.sid }
func (p *FakePublication) Name() string                { return p.name }
func (p *FakePublication) Kind() livekit.TrackType     { return p.kind }
func (p *FakePublication) Source() livekit.TrackSource { return p.source }

func (p *FakePublication) IsMuted() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.muted
}

func (p *FakePublication) IsSubscribed() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.subscribed
}

func (p *FakePublication) Track() types.Track {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.track == nil {
		return nil
	}
	return p.track
}

func (p *FakePublication) FakeTrack() *FakeTrack {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.track
}

func (p *FakePublication) Dimensions() (uint32, uint32) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.width, p.height
}

func (p *FakePublication) SetDimensions(width, height uint32) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.width, p.height = width, height
}

func (p *FakePublication) setMuted(muted bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.muted = muted
}

func (p *FakePublication) setTrack(track *FakeTrack, subscribed bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.track = track
	p.subscribed = subscribed
}

// FakeParticipant emits participant events synchronously from its mutators.
type FakeParticipant struct {
	lock        sync.RWMutex
	sid         livekit.ParticipantID
	identity    livekit.ParticipantIdentity
	name        livekit.ParticipantName
	metadata    string
	local       bool
	speaking    bool
	audioLevel  float32
	lastSpokeAt time.Time
	joinedAt    time.Time
	quality     livekit.ConnectionQuality
	pubs        *orderedmap.OrderedMap[livekit.TrackSource, *FakePublication]

	emitter *events.Emitter[types.ParticipantEvent, types.ParticipantEventData]
}

func NewFakeParticipant(sid string, identity string, joinedAt time.Time) *FakeParticipant {
	return &FakeParticipant{
		sid:      livekit.ParticipantID(sid),
		identity: livekit.ParticipantIdentity(identity),
		joinedAt: joinedAt,
		quality:  livekit.ConnectionQuality_EXCELLENT,
		pubs:     orderedmap.NewOrderedMap[livekit.TrackSource, *FakePublication](),
		emitter:  events.NewEmitter[types.ParticipantEvent, types.ParticipantEventData](nil),
	}
}

func NewFakeLocalParticipant(sid string, identity string, joinedAt time.Time) *FakeParticipant {
	p := NewFakeParticipant(sid, identity, joinedAt)
	p.local = true
	return p
}

func (p *FakeParticipant) SID() livekit.ParticipantID            { return p.sid }
func (p *FakeParticipant) Identity() livekit.ParticipantIdentity { return p.identity }
func (p *FakeParticipant) IsLocal() bool                         { return p.local }
func (p *FakeParticipant) JoinedAt() time.Time                   { return p.joinedAt }

func (p *FakeParticipant) Name() livekit.ParticipantName {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.name
}

func (p *FakeParticipant) SetName(name string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.name = livekit.ParticipantName(name)
}

func (p *FakeParticipant) Metadata() string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.metadata
}

func (p *FakeParticipant) IsSpeaking() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.speaking
}

func (p *FakeParticipant) AudioLevel() float32 {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.audioLevel
}

func (p *FakeParticipant) LastSpokeAt() time.Time {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.lastSpokeAt
}

func (p *FakeParticipant) ConnectionQuality() livekit.ConnectionQuality {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.quality
}

func (p *FakeParticipant) Publications() []types.TrackPublication {
	p.lock.RLock()
	defer p.lock.RUnlock()
	pubs := make([]types.TrackPublication, 0, p.pubs.Len())
	for el := p.pubs.Front(); el != nil; el = el.Next() {
		pubs = append(pubs, el.Value)
	}
	return pubs
}

func (p *FakeParticipant) Publication(source livekit.TrackSource) types.TrackPublication {
	if pub := p.FakePublication(source); pub != nil {
		return pub
	}
	return nil
}

func (p *FakeParticipant) FakePublication(source livekit.TrackSource) *FakePublication {
	p.lock.RLock()
	defer p.lock.RUnlock()
	pub, _ := p.pubs.Get(source)
	return pub
}

func (p *FakeParticipant) On(event types.ParticipantEvent, handler func(types.ParticipantEventData)) events.Subscription {
	return p.emitter.On(event, handler)
}

// ListenerCount is the number of live listeners across all participant events.
func (p *FakeParticipant) ListenerCount() int {
	return p.emitter.TotalListeners()
}

func (p *FakeParticipant) Emit(event types.ParticipantEvent, data types.ParticipantEventData) {
	p.emitter.Emit(event, data)
}

func (p *FakeParticipant) SetSpeaking(speaking bool, level float32) {
	p.lock.Lock()
	p.speaking = speaking
	p.audioLevel = level
	if speaking {
		p.lastSpokeAt = time.Now()
	}
	p.lock.Unlock()

	p.emitter.Emit(types.ParticipantEventIsSpeakingChanged, types.ParticipantEventData{Speaking: speaking})
}

func (p *FakeParticipant) SetMetadata(metadata string) {
	p.lock.Lock()
	p.metadata = metadata
	p.lock.Unlock()

	p.emitter.Emit(types.ParticipantEventMetadataChanged, types.ParticipantEventData{Metadata: metadata})
}

func (p *FakeParticipant) SetConnectionQuality(quality livekit.ConnectionQuality) {
	p.lock.Lock()
	p.quality = quality
	p.lock.Unlock()

	p.emitter.Emit(types.ParticipantEventConnectionQualityChanged, types.ParticipantEventData{Quality: quality})
}

// AddPublication adds pub without emitting, for building initial state.
func (p *FakeParticipant) AddPublication(pub *FakePublication) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.pubs.Set(pub.Source(), pub)
}

func (p *FakeParticipant) Publish(pub *FakePublication) {
	p.AddPublication(pub)

	event := types.ParticipantEventTrackPublished
	if p.local {
		event = types.ParticipantEventLocalTrackPublished
	}
	p.emitter.Emit(event, types.ParticipantEventData{Publication: pub})
}

func (p *FakeParticipant) Unpublish(source livekit.TrackSource) *FakePublication {
	p.lock.Lock()
	pub, ok := p.pubs.Get(source)
	if ok {
		p.pubs.Delete(source)
	}
	p.lock.Unlock()
	if !ok {
		return nil
	}

	event := types.ParticipantEventTrackUnpublished
	if p.local {
		event = types.ParticipantEventLocalTrackUnpublished
	}
	p.emitter.Emit(event, types.ParticipantEventData{Publication: pub})
	return pub
}

func (p *FakeParticipant) SetMuted(source livekit.TrackSource, muted bool) {
	pub := p.FakePublication(source)
	if pub == nil {
		return
	}
	pub.setMuted(muted)

	event := types.ParticipantEventTrackUnmuted
	if muted {
		event = types.ParticipantEventTrackMuted
	}
	p.emitter.Emit(event, types.ParticipantEventData{Publication: pub})
}

func (p *FakeParticipant) SubscribeTrack(source livekit.TrackSource, track *FakeTrack) *FakePublication {
	pub := p.FakePublication(source)
	if pub == nil {
		return nil
	}
	pub.setTrack(track, true)
	p.emitter.Emit(types.ParticipantEventTrackSubscribed, types.ParticipantEventData{Publication: pub, Track: track})
	return pub
}

func (p *FakeParticipant) UnsubscribeTrack(source livekit.TrackSource) *FakePublication {
	pub := p.FakePublication(source)
	if pub == nil {
		return nil
	}
	track := pub.FakeTrack()
	pub.setTrack(nil, false)
	data := types.ParticipantEventData{Publication: pub}
	if track != nil {
		data.Track = track
	}
	p.emitter.Emit(types.ParticipantEventTrackUnsubscribed, data)
	return pub
}

func (p *FakeParticipant) SetMicrophoneEnabled(ctx context.Context, enabled bool) error {
	return p.setSourceEnabled(livekit.TrackSource_MICROPHONE, enabled)
}

func (p *FakeParticipant) SetCameraEnabled(ctx context.Context, enabled bool) error {
	return p.setSourceEnabled(livekit.TrackSource_CAMERA, enabled)
}

func (p *FakeParticipant) SetScreenShareEnabled(ctx context.Context, enabled bool) error {
	return p.setSourceEnabled(livekit.TrackSource_SCREEN_SHARE, enabled)
}

func (p *FakeParticipant) setSourceEnabled(source livekit.TrackSource, enabled bool) error {
	if !p.local {
		return types.ErrNotSupported
	}
	pub := p.FakePublication(source)
	switch {
	case pub == nil && enabled:
		pub = NewFakePublication("TR_"+string(p.sid)+"_"+source.String(), source)
		pub.setTrack(NewFakeTrack(string(pub.SID()), pub.Kind()), true)
		p.Publish(pub)
	case pub != nil:
		p.SetMuted(source, !enabled)
	}
	return nil
}

// FakeSession is an in-memory room. Mutators emit room events synchronously.
type FakeSession struct {
	lock         sync.RWMutex
	name         string
	local        *FakeParticipant
	remotes      *orderedmap.OrderedMap[livekit.ParticipantID, *FakeParticipant]
	speakers     []types.Participant
	canPlayback  bool
	disconnected bool
	devices      map[types.DeviceKind]string

	disconnectCalls atomic.Int32
	startAudioCalls atomic.Int32

	emitter *events.Emitter[types.RoomEvent, types.RoomEventData]
}

func NewFakeSession(name string, local *FakeParticipant) *FakeSession {
	return &FakeSession{
		name:        name,
		local:       local,
		remotes:     orderedmap.NewOrderedMap[livekit.ParticipantID, *FakeParticipant](),
		canPlayback: true,
		devices:     make(map[types.DeviceKind]string),
		emitter:     events.NewEmitter[types.RoomEvent, types.RoomEventData](nil),
	}
}

func (s *FakeSession) Name() string { return s.name }

func (s *FakeSession) LocalParticipant() types.LocalParticipant { return s.local }

func (s *FakeSession) FakeLocalParticipant() *FakeParticipant { return s.local }

func (s *FakeSession) RemoteParticipants() map[livekit.ParticipantID]types.Participant {
	s.lock.RLock()
	defer s.lock.RUnlock()
	participants := make(map[livekit.ParticipantID]types.Participant, s.remotes.Len())
	for el := s.remotes.Front(); el != nil; el = el.Next() {
		participants[el.Key] = el.Value
	}
	return participants
}

func (s *FakeSession) GetParticipant(sid livekit.ParticipantID) types.Participant {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if p, ok := s.remotes.Get(sid); ok {
		return p
	}
	return nil
}

func (s *FakeSession) ActiveSpeakers() []types.Participant {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]types.Participant(nil), s.speakers...)
}

func (s *FakeSession) CanPlaybackAudio() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.canPlayback
}

func (s *FakeSession) StartAudio(ctx context.Context) error {
	s.startAudioCalls.Inc()
	s.SetCanPlaybackAudio(true)
	return nil
}

func (s *FakeSession) StartAudioCalls() int { return int(s.startAudioCalls.Load()) }

func (s *FakeSession) SwitchActiveDevice(kind types.DeviceKind, deviceID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.devices[kind] = deviceID
	return nil
}

func (s *FakeSession) ActiveDevice(kind types.DeviceKind) string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.devices[kind]
}

// Disconnect emits the terminal disconnected event the first time it is called.
func (s *FakeSession) Disconnect() {
	s.disconnectCalls.Inc()
	s.lock.Lock()
	if s.disconnected {
		s.lock.Unlock()
		return
	}
	s.disconnected = true
	s.lock.Unlock()

	s.emitter.Emit(types.RoomEventDisconnected, types.RoomEventData{})
}

func (s *FakeSession) DisconnectCalls() int { return int(s.disconnectCalls.Load()) }

func (s *FakeSession) On(event types.RoomEvent, handler func(types.RoomEventData)) events.Subscription {
	return s.emitter.On(event, handler)
}

func (s *FakeSession) ListenerCount() int {
	return s.emitter.TotalListeners()
}

func (s *FakeSession) Emit(event types.RoomEvent, data types.RoomEventData) {
	s.emitter.Emit(event, data)
}

// AddRemote adds p without emitting, for building initial state.
func (s *FakeSession) AddRemote(p *FakeParticipant) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.remotes.Set(p.SID(), p)
}

func (s *FakeSession) Join(p *FakeParticipant) {
	s.AddRemote(p)
	s.emitter.Emit(types.RoomEventParticipantConnected, types.RoomEventData{Participant: p})
}

func (s *FakeSession) Leave(sid livekit.ParticipantID) {
	s.lock.Lock()
	p, ok := s.remotes.Get(sid)
	if ok {
		s.remotes.Delete(sid)
	}
	s.lock.Unlock()
	if !ok {
		return
	}
	s.emitter.Emit(types.RoomEventParticipantDisconnected, types.RoomEventData{Participant: p})
}

func (s *FakeSession) SetActiveSpeakers(speakers ...types.Participant) {
	s.lock.Lock()
	s.speakers = append([]types.Participant(nil), speakers...)
	s.lock.Unlock()

	s.emitter.Emit(types.RoomEventActiveSpeakersChanged, types.RoomEventData{Speakers: speakers})
}

func (s *FakeSession) SetCanPlaybackAudio(can bool) {
	s.lock.Lock()
	s.canPlayback = can
	s.lock.Unlock()

	s.emitter.Emit(types.RoomEventAudioPlaybackStatusChanged, types.RoomEventData{CanPlaybackAudio: can})
}

// SubscribeTrack attaches track to the participant's publication and emits at
// participant level first, then room level.
func (s *FakeSession) SubscribeTrack(p *FakeParticipant, source livekit.TrackSource, track *FakeTrack) {
	pub := p.SubscribeTrack(source, track)
	if pub == nil {
		return
	}
	s.emitter.Emit(types.RoomEventTrackSubscribed, types.RoomEventData{Participant: p, Publication: pub, Track: track})
}

func (s *FakeSession) UnsubscribeTrack(p *FakeParticipant, source livekit.TrackSource) {
	pub := p.FakePublication(source)
	if pub == nil {
		return
	}
	track := pub.FakeTrack()
	p.UnsubscribeTrack(source)
	data := types.RoomEventData{Participant: p, Publication: pub}
	if track != nil {
		data.Track = track
	}
	s.emitter.Emit(types.RoomEventTrackUnsubscribed, data)
}

var (
	_ types.Session          = (*FakeSession)(nil)
	_ types.LocalParticipant = (*FakeParticipant)(nil)
	_ types.TrackPublication = (*FakePublication)(nil)
	_ types.Track            = (*FakeTrack)(nil)
)
