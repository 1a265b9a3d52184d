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

package signalclient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/frostbyte73/core"
	"github.com/gammazero/workerpool"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
	"go.uber.org/atomic"
	"google.golang.org/protobuf/proto"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/events"
	"github.com/livekit/livekit-roomview/pkg/scheduler"
	"github.com/livekit/livekit-roomview/pkg/types"
)

var (
	ErrTransportFailed  = errors.New("media transport failed")
	ErrClosedBeforeJoin = errors.New("signal connection closed before join")
)

const publishTimeout = 10 * time.Second

type pendingTrack struct {
	participantID livekit.ParticipantID
	track         *webrtc.TrackRemote
}

// Session is a joined room. Signal responses are handled one per turn on the
// session's queue and every event is emitted from that queue.
type Session struct {
	params  ConnectorParams
	opts    types.ConnectOptions
	conn    *websocket.Conn
	wsLock  sync.Mutex
	logger  logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	queue   *scheduler.Queue
	emitter *events.Emitter[types.RoomEvent, types.RoomEventData]

	writesLock sync.RWMutex
	writes     *workerpool.WorkerPool

	publisher  *webrtc.PeerConnection
	subscriber *webrtc.PeerConnection

	lock           sync.RWMutex
	roomName       string
	local          *localParticipant
	remotes        *orderedmap.OrderedMap[livekit.ParticipantID, *participant]
	speakers       []types.Participant
	pendingTracks  map[livekit.TrackID]pendingTrack
	pendingPublish map[string]chan *livekit.TrackInfo
	devices        map[types.DeviceKind]string
	refreshToken   string

	negotiationLock sync.Mutex
	offerPending    bool
	renegotiate     bool

	// queue only
	pendingCandidates map[livekit.SignalTarget][]webrtc.ICECandidateInit

	canPlayback atomic.Bool
	joined      core.Fuse
	closed      core.Fuse
	closeOnce   sync.Once
	closeErr    error
}

func newSession(conn *websocket.Conn, params ConnectorParams, opts types.ConnectOptions, l logger.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		params:            params,
		opts:              opts,
		conn:              conn,
		logger:            l,
		ctx:               ctx,
		cancel:            cancel,
		queue:             scheduler.NewQueue(l, "session"),
		writes:            workerpool.New(1),
		emitter:           events.NewEmitter[types.RoomEvent, types.RoomEventData](l),
		remotes:           orderedmap.NewOrderedMap[livekit.ParticipantID, *participant](),
		pendingTracks:     make(map[livekit.TrackID]pendingTrack),
		pendingPublish:    make(map[string]chan *livekit.TrackInfo),
		pendingCandidates: make(map[livekit.SignalTarget][]webrtc.ICECandidateInit),
		devices: map[types.DeviceKind]string{
			types.DeviceKindAudioInput: opts.AudioDeviceID,
			types.DeviceKindVideoInput: opts.VideoDeviceID,
		},
	}
	s.canPlayback.Store(!params.StartAudioMuted)
	s.queue.Start()
	return s
}

func (s *Session) Name() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.roomName
}

func (s *Session) LocalParticipant() types.LocalParticipant {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.local == nil {
		return nil
	}
	return s.local
}

func (s *Session) RemoteParticipants() map[livekit.ParticipantID]types.Participant {
	s.lock.RLock()
	defer s.lock.RUnlock()

	remotes := make(map[livekit.ParticipantID]types.Participant, s.remotes.Len())
	for el := s.remotes.Front(); el != nil; el = el.Next() {
		remotes[el.Key] = el.Value
	}
	return remotes
}

func (s *Session) GetParticipant(sid livekit.ParticipantID) types.Participant {
	return s.participantBySID(sid)
}

func (s *Session) participantBySID(sid livekit.ParticipantID) types.Participant {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.local != nil && s.local.SID() == sid {
		return s.local
	}
	if p, ok := s.remotes.Get(sid); ok {
		return p
	}
	return nil
}

func (s *Session) ActiveSpeakers() []types.Participant {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]types.Participant(nil), s.speakers...)
}

func (s *Session) CanPlaybackAudio() bool {
	return s.canPlayback.Load()
}

// StartAudio allows remote audio to reach attached sinks.
func (s *Session) StartAudio(_ context.Context) error {
	if s.closed.IsBroken() {
		return types.ErrNotConnected
	}
	if s.canPlayback.Swap(true) {
		return nil
	}
	s.queue.Enqueue(func() {
		s.emitter.Emit(types.RoomEventAudioPlaybackStatusChanged, types.RoomEventData{CanPlaybackAudio: true})
	})
	return nil
}

// SwitchActiveDevice selects the device used for the next publish of kind.
// A live local track of that kind switches immediately.
func (s *Session) SwitchActiveDevice(kind types.DeviceKind, deviceID string) error {
	s.lock.Lock()
	s.devices[kind] = deviceID
	local := s.local
	s.lock.Unlock()

	if local == nil || kind == types.DeviceKindAudioOutput {
		return nil
	}
	return local.switchDevice(kind, deviceID)
}

// devicePath resolves the selected device of kind, falling back to the first
// listed one. An empty path publishes generated media.
func (s *Session) devicePath(ctx context.Context, kind types.DeviceKind) (string, error) {
	s.lock.RLock()
	id := s.devices[kind]
	s.lock.RUnlock()
	if id != "" || s.params.Devices == nil {
		return id, nil
	}

	devices, err := s.params.Devices.ListDevices(ctx, kind)
	if err != nil {
		return "", errors.Wrapf(err, "could not list %s devices", kind)
	}
	if len(devices) == 0 {
		return "", nil
	}
	return devices[0].ID, nil
}

func (s *Session) RefreshToken() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.refreshToken
}

// SetSubscribed changes the subscription of remote tracks when auto subscribe is off.
func (s *Session) SetSubscribed(trackIDs []livekit.TrackID, subscribed bool) error {
	sids := make([]string, 0, len(trackIDs))
	for _, id := range trackIDs {
		sids = append(sids, string(id))
	}
	return s.sendRequest(&livekit.SignalRequest{
		Message: &livekit.SignalRequest_Subscription{
			Subscription: &livekit.UpdateSubscription{
				TrackSids: sids,
				Subscribe: subscribed,
			},
		},
	})
}

func (s *Session) On(event types.RoomEvent, handler func(types.RoomEventData)) events.Subscription {
	return s.emitter.On(event, handler)
}

func (s *Session) Disconnect() {
	s.close(nil, true)
}

func (s *Session) close(cause error, sendLeave bool) {
	s.closeOnce.Do(func() {
		s.closeErr = cause
		s.closed.Break()
		s.logger.Infow("closing session", "error", cause)

		if sendLeave {
			_ = s.sendRequest(&livekit.SignalRequest{
				Message: &livekit.SignalRequest_Leave{
					Leave: &livekit.LeaveRequest{},
				},
			})
		}
		_ = s.conn.Close()

		s.lock.RLock()
		local := s.local
		s.lock.RUnlock()
		if local != nil {
			local.stopWriters()
		}
		if s.publisher != nil {
			_ = s.publisher.Close()
		}
		if s.subscriber != nil {
			_ = s.subscriber.Close()
		}
		s.writesLock.Lock()
		s.writes.Stop()
		s.writesLock.Unlock()
		s.cancel()

		s.queue.Enqueue(func() {
			s.emitter.Emit(types.RoomEventDisconnected, types.RoomEventData{Err: cause})
			s.queue.Stop()
		})
	})
}

func (s *Session) sendRequest(msg *livekit.SignalRequest) error {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return err
	}

	s.wsLock.Lock()
	defer s.wsLock.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, payload)
}

// sendAsync is used from pion callbacks which must not block on the socket.
func (s *Session) sendAsync(msg *livekit.SignalRequest) {
	s.writesLock.RLock()
	defer s.writesLock.RUnlock()
	if s.closed.IsBroken() {
		return
	}
	s.writes.Submit(func() {
		if err := s.sendRequest(msg); err != nil && !s.closed.IsBroken() {
			s.logger.Warnw("could not send signal request", err)
		}
	})
}

func (s *Session) readResponse() (*livekit.SignalResponse, error) {
	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}

		msg := &livekit.SignalResponse{}
		switch messageType {
		case websocket.PingMessage:
			s.wsLock.Lock()
			_ = s.conn.WriteMessage(websocket.PongMessage, nil)
			s.wsLock.Unlock()
			continue
		case websocket.BinaryMessage:
			err := proto.Unmarshal(payload, msg)
			return msg, err
		default:
			return nil, fmt.Errorf("unexpected message received: %v", messageType)
		}
	}
}

func (s *Session) readLoop() {
	for {
		res, err := s.readResponse()
		if err != nil {
			if !s.closed.IsBroken() {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					err = nil
				} else {
					err = errors.Wrap(err, "signal connection lost")
				}
				s.close(err, false)
			}
			return
		}
		s.queue.Enqueue(func() { s.handleResponse(res) })
	}
}

func (s *Session) handleResponse(res *livekit.SignalResponse) {
	if s.closed.IsBroken() {
		return
	}

	switch msg := res.Message.(type) {
	case *livekit.SignalResponse_Join:
		s.onJoin(msg.Join)
	case *livekit.SignalResponse_Update:
		s.onParticipantUpdate(msg.Update.Participants)
	case *livekit.SignalResponse_SpeakersChanged:
		s.onSpeakersChanged(msg.SpeakersChanged.Speakers)
	case *livekit.SignalResponse_ConnectionQuality:
		s.onConnectionQuality(msg.ConnectionQuality.Updates)
	case *livekit.SignalResponse_Mute:
		// off the queue, a publish holding the local participant waits on it
		if local := s.localParticipant(); local != nil {
			go local.onServerMute(livekit.TrackID(msg.Mute.Sid), msg.Mute.Muted)
		}
	case *livekit.SignalResponse_Leave:
		s.logger.Infow("server requested leave")
		s.close(nil, false)
	case *livekit.SignalResponse_Offer:
		s.onOffer(fromProtoSessionDescription(msg.Offer))
	case *livekit.SignalResponse_Answer:
		s.onAnswer(fromProtoSessionDescription(msg.Answer))
	case *livekit.SignalResponse_Trickle:
		s.onTrickle(msg.Trickle)
	case *livekit.SignalResponse_TrackPublished:
		s.lock.Lock()
		ch := s.pendingPublish[msg.TrackPublished.Cid]
		delete(s.pendingPublish, msg.TrackPublished.Cid)
		s.lock.Unlock()
		if ch != nil {
			ch <- msg.TrackPublished.Track
		}
	case *livekit.SignalResponse_TrackUnpublished:
		if local := s.localParticipant(); local != nil {
			go local.onUnpublished(livekit.TrackID(msg.TrackUnpublished.TrackSid))
		}
	case *livekit.SignalResponse_RefreshToken:
		s.lock.Lock()
		s.refreshToken = msg.RefreshToken
		s.lock.Unlock()
	}
}

func (s *Session) localParticipant() *localParticipant {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.local
}

func (s *Session) onJoin(join *livekit.JoinResponse) {
	if s.joined.IsBroken() {
		return
	}

	if err := s.createTransports(join.IceServers); err != nil {
		s.close(errors.Wrap(err, "could not create transports"), true)
		return
	}

	s.lock.Lock()
	s.roomName = join.Room.GetName()
	s.local = newLocalParticipant(join.Participant, s, s.logger)
	for _, info := range join.OtherParticipants {
		p := newParticipant(&livekit.ParticipantInfo{}, false, s.logger)
		p.applyInfo(info, true)
		s.remotes.Set(livekit.ParticipantID(info.Sid), p)
	}
	s.lock.Unlock()

	s.logger.Infow("joined room",
		"room", s.roomName,
		"participant", join.Participant.Identity,
		"others", len(join.OtherParticipants),
	)
	s.joined.Break()
}

func (s *Session) onParticipantUpdate(infos []*livekit.ParticipantInfo) {
	for _, info := range infos {
		sid := livekit.ParticipantID(info.Sid)

		if local := s.localParticipant(); local != nil && local.SID() == sid {
			if diff := local.applyInfo(info, false); diff.metadataChanged {
				local.emit(types.ParticipantEventMetadataChanged, types.ParticipantEventData{Metadata: info.Metadata})
			}
			continue
		}

		s.lock.Lock()
		p, existing := s.remotes.Get(sid)
		if info.State == livekit.ParticipantInfo_DISCONNECTED {
			s.remotes.Delete(sid)
		} else if !existing {
			p = newParticipant(&livekit.ParticipantInfo{Metadata: info.Metadata}, false, s.logger)
			s.remotes.Set(sid, p)
		}
		s.lock.Unlock()

		switch {
		case info.State == livekit.ParticipantInfo_DISCONNECTED:
			if existing {
				s.onParticipantLeft(p)
			}
		case !existing:
			s.applyRemoteDiff(p, p.applyInfo(info, true))
			s.emitter.Emit(types.RoomEventParticipantConnected, types.RoomEventData{Participant: p})
		default:
			s.applyRemoteDiff(p, p.applyInfo(info, true))
		}
	}
}

func (s *Session) applyRemoteDiff(p *participant, diff infoDiff) {
	for _, pub := range diff.published {
		p.emit(types.ParticipantEventTrackPublished, types.ParticipantEventData{Publication: pub})
		s.bindPending(p, pub)
	}
	for _, pub := range diff.muted {
		p.emit(types.ParticipantEventTrackMuted, types.ParticipantEventData{Publication: pub, Track: pub.Track()})
	}
	for _, pub := range diff.unmuted {
		p.emit(types.ParticipantEventTrackUnmuted, types.ParticipantEventData{Publication: pub, Track: pub.Track()})
	}
	for _, u := range diff.unpublished {
		s.unbindTrack(p, u.pub, u.track)
		p.emit(types.ParticipantEventTrackUnpublished, types.ParticipantEventData{Publication: u.pub})
	}
	if diff.metadataChanged {
		p.emit(types.ParticipantEventMetadataChanged, types.ParticipantEventData{Metadata: p.Metadata()})
	}
}

func (s *Session) onParticipantLeft(p *participant) {
	for _, pub := range p.Publications() {
		pub := pub.(*publication)
		s.unbindTrack(p, pub, pub.Track())
	}

	s.lock.Lock()
	speakers := funk.Filter(s.speakers, func(sp types.Participant) bool {
		return sp.SID() != p.SID()
	}).([]types.Participant)
	changed := len(speakers) != len(s.speakers)
	s.speakers = speakers
	s.lock.Unlock()

	s.emitter.Emit(types.RoomEventParticipantDisconnected, types.RoomEventData{Participant: p})
	if changed {
		s.emitter.Emit(types.RoomEventActiveSpeakersChanged, types.RoomEventData{Speakers: speakers})
	}
}

// onSpeakersChanged applies a partial speaker update. The active list holds
// every speaking participant, loudest first.
func (s *Session) onSpeakersChanged(infos []*livekit.SpeakerInfo) {
	now := time.Now()
	for _, info := range infos {
		var target *participant
		switch p := s.participantBySID(livekit.ParticipantID(info.Sid)).(type) {
		case *participant:
			target = p
		case *localParticipant:
			target = p.participant
		default:
			continue
		}
		if target.setSpeaking(info.Active, info.Level, now) {
			target.emit(types.ParticipantEventIsSpeakingChanged, types.ParticipantEventData{Speaking: info.Active})
		}
	}

	s.lock.Lock()
	var active []types.Participant
	if s.local != nil && s.local.IsSpeaking() {
		active = append(active, s.local)
	}
	for el := s.remotes.Front(); el != nil; el = el.Next() {
		if el.Value.IsSpeaking() {
			active = append(active, el.Value)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].AudioLevel() > active[j].AudioLevel()
	})
	s.speakers = active
	s.lock.Unlock()

	s.emitter.Emit(types.RoomEventActiveSpeakersChanged, types.RoomEventData{Speakers: append([]types.Participant(nil), active...)})
}

func (s *Session) onConnectionQuality(updates []*livekit.ConnectionQualityInfo) {
	for _, update := range updates {
		var target *participant
		switch p := s.participantBySID(livekit.ParticipantID(update.ParticipantSid)).(type) {
		case *participant:
			target = p
		case *localParticipant:
			target = p.participant
		default:
			continue
		}
		if target.setQuality(update.Quality) {
			target.emit(types.ParticipantEventConnectionQualityChanged, types.ParticipantEventData{Quality: update.Quality})
		}
	}
}

// transports

func (s *Session) createTransports(servers []*livekit.ICEServer) error {
	iceServers := s.params.ICEServers
	for _, server := range servers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       server.Urls,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}

	var err error
	if s.publisher, err = newPeerConnection(iceServers, s.logger); err != nil {
		return err
	}
	if s.subscriber, err = newPeerConnection(iceServers, s.logger); err != nil {
		return err
	}

	s.publisher.OnICECandidate(func(ic *webrtc.ICECandidate) {
		s.sendCandidate(ic, livekit.SignalTarget_PUBLISHER)
	})
	s.subscriber.OnICECandidate(func(ic *webrtc.ICECandidate) {
		s.sendCandidate(ic, livekit.SignalTarget_SUBSCRIBER)
	})
	s.subscriber.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		participantID, trackID := unpackStreamID(track.StreamID())
		if trackID == "" {
			trackID = livekit.TrackID(track.ID())
		}
		s.queue.Enqueue(func() { s.onTrack(participantID, trackID, track) })
	})
	s.subscriber.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Debugw("subscriber connection state changed", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			s.close(ErrTransportFailed, true)
		}
	})
	return nil
}

func (s *Session) sendCandidate(ic *webrtc.ICECandidate, target livekit.SignalTarget) {
	if ic == nil {
		return
	}
	trickle, err := toProtoTrickle(ic.ToJSON(), target)
	if err != nil {
		s.logger.Warnw("could not encode candidate", err)
		return
	}
	s.sendAsync(&livekit.SignalRequest{
		Message: &livekit.SignalRequest_Trickle{Trickle: trickle},
	})
}

func (s *Session) transport(target livekit.SignalTarget) *webrtc.PeerConnection {
	if target == livekit.SignalTarget_PUBLISHER {
		return s.publisher
	}
	return s.subscriber
}

func (s *Session) onTrickle(trickle *livekit.TrickleRequest) {
	candidate, err := fromProtoTrickle(trickle)
	if err != nil {
		s.logger.Warnw("could not decode candidate", err)
		return
	}
	pc := s.transport(trickle.Target)
	if pc == nil {
		return
	}
	if pc.RemoteDescription() == nil {
		s.pendingCandidates[trickle.Target] = append(s.pendingCandidates[trickle.Target], candidate)
		return
	}
	if err = pc.AddICECandidate(candidate); err != nil {
		s.logger.Warnw("could not add candidate", err, "target", trickle.Target)
	}
}

func (s *Session) flushCandidates(target livekit.SignalTarget) {
	pc := s.transport(target)
	for _, candidate := range s.pendingCandidates[target] {
		if err := pc.AddICECandidate(candidate); err != nil {
			s.logger.Warnw("could not add candidate", err, "target", target)
		}
	}
	delete(s.pendingCandidates, target)
}

func (s *Session) onOffer(offer webrtc.SessionDescription) {
	if s.subscriber == nil {
		return
	}
	if err := s.subscriber.SetRemoteDescription(offer); err != nil {
		s.logger.Errorw("could not set remote offer", err)
		return
	}
	s.flushCandidates(livekit.SignalTarget_SUBSCRIBER)

	answer, err := s.subscriber.CreateAnswer(nil)
	if err != nil {
		s.logger.Errorw("could not create answer", err)
		return
	}
	if err = s.subscriber.SetLocalDescription(answer); err != nil {
		s.logger.Errorw("could not set local answer", err)
		return
	}
	if err = s.sendRequest(&livekit.SignalRequest{
		Message: &livekit.SignalRequest_Answer{Answer: toProtoSessionDescription(answer)},
	}); err != nil {
		s.logger.Warnw("could not send answer", err)
	}
}

// negotiate sends a publisher offer. Requests made while an offer is
// outstanding are folded into one renegotiation after the answer.
func (s *Session) negotiate() {
	s.negotiationLock.Lock()
	defer s.negotiationLock.Unlock()

	if s.offerPending {
		s.renegotiate = true
		return
	}

	offer, err := s.publisher.CreateOffer(nil)
	if err != nil {
		s.logger.Errorw("could not create offer", err)
		return
	}
	if err = s.publisher.SetLocalDescription(offer); err != nil {
		s.logger.Errorw("could not set local offer", err)
		return
	}
	s.offerPending = true
	s.sendAsync(&livekit.SignalRequest{
		Message: &livekit.SignalRequest_Offer{Offer: toProtoSessionDescription(offer)},
	})
}

func (s *Session) onAnswer(answer webrtc.SessionDescription) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.SetRemoteDescription(answer); err != nil {
		s.logger.Errorw("could not set remote answer", err)
	}
	s.flushCandidates(livekit.SignalTarget_PUBLISHER)

	s.negotiationLock.Lock()
	s.offerPending = false
	again := s.renegotiate
	s.renegotiate = false
	s.negotiationLock.Unlock()

	if again {
		s.negotiate()
	}
}

// remote tracks

func (s *Session) onTrack(participantID livekit.ParticipantID, trackID livekit.TrackID, track *webrtc.TrackRemote) {
	s.lock.Lock()
	p, _ := s.remotes.Get(participantID)
	var pub *publication
	if p != nil {
		pub = p.getPublication(trackID)
	}
	if pub == nil {
		// media can arrive before the participant update
		s.pendingTracks[trackID] = pendingTrack{participantID: participantID, track: track}
		s.lock.Unlock()
		return
	}
	s.lock.Unlock()

	s.bindTrack(p, pub, track)
}

func (s *Session) bindPending(p *participant, pub *publication) {
	s.lock.Lock()
	pending, ok := s.pendingTracks[pub.SID()]
	if ok && pending.participantID == p.SID() {
		delete(s.pendingTracks, pub.SID())
	}
	s.lock.Unlock()

	if ok && pending.participantID == p.SID() {
		s.bindTrack(p, pub, pending.track)
	}
}

func (s *Session) bindTrack(p *participant, pub *publication, track *webrtc.TrackRemote) {
	l := s.logger.WithValues("participant", p.Identity(), "trackID", pub.SID())
	rt := newRemoteTrack(pub.SID(), track, l)
	rt.canPlayback = s.CanPlaybackAudio
	rt.requestKeyFrame = pliRequester(s.subscriber, l)

	pub.setTrack(rt)
	p.emit(types.ParticipantEventTrackSubscribed, types.ParticipantEventData{Publication: pub, Track: rt})
	s.emitter.Emit(types.RoomEventTrackSubscribed, types.RoomEventData{Participant: p, Publication: pub, Track: rt})

	go func() {
		rt.readLoop()
		s.queue.Enqueue(func() { s.unbindTrack(p, pub, rt) })
	}()
}

func (s *Session) unbindTrack(p *participant, pub *publication, track types.Track) {
	if track == nil || !pub.clearTrack(track) {
		return
	}
	p.emit(types.ParticipantEventTrackUnsubscribed, types.ParticipantEventData{Publication: pub, Track: track})
	s.emitter.Emit(types.RoomEventTrackUnsubscribed, types.RoomEventData{Participant: p, Publication: pub, Track: track})
}

// local tracks

func (s *Session) addTrack(ctx context.Context, req *livekit.AddTrackRequest) (*livekit.TrackInfo, error) {
	ch := make(chan *livekit.TrackInfo, 1)
	s.lock.Lock()
	s.pendingPublish[req.Cid] = ch
	s.lock.Unlock()
	defer func() {
		s.lock.Lock()
		delete(s.pendingPublish, req.Cid)
		s.lock.Unlock()
	}()

	if err := s.sendRequest(&livekit.SignalRequest{
		Message: &livekit.SignalRequest_AddTrack{AddTrack: req},
	}); err != nil {
		return nil, errors.Wrap(err, "could not send add track request")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	select {
	case info := <-ch:
		return info, nil
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "could not publish track")
	case <-s.closed.Watch():
		return nil, types.ErrNotConnected
	}
}

var _ types.Session = (*Session)(nil)
