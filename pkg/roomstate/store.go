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

package roomstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-roomview/pkg/events"
	"github.com/livekit/livekit-roomview/pkg/observable"
	"github.com/livekit/livekit-roomview/pkg/ordering"
	"github.com/livekit/livekit-roomview/pkg/scheduler"
	"github.com/livekit/livekit-roomview/pkg/telemetry/prometheus"
	"github.com/livekit/livekit-roomview/pkg/types"
)

var ErrStoreClosed = errors.New("room state store is closed")

type Options struct {
	// Ordering defaults to ordering.Default
	Ordering ordering.Func
	// Scheduler runs deferred work. When nil the store starts its own queue.
	Scheduler *scheduler.Queue
	Logger    logger.Logger
	// OnConnected is called once listeners are registered for a new session.
	OnConnected func(types.Session)
}

// Store owns a session's lifecycle and keeps RoomState in sync with its events.
// At most one session is live at a time.
type Store struct {
	connector   types.Connector
	order       ordering.Func
	queue       *scheduler.Queue
	ownQueue    bool
	logger      logger.Logger
	onConnected func(types.Session)

	state      *observable.Value[RoomState]
	connecting atomic.Bool

	lock         sync.Mutex
	session      types.Session
	sessionEnded bool
	connectedAt  time.Time
	subs         *events.Group
	pendingClear scheduler.Task
	closed       bool
}

func NewStore(connector types.Connector, opts Options) *Store {
	if opts.Ordering == nil {
		opts.Ordering = ordering.Default
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}

	s := &Store{
		connector:   connector,
		order:       opts.Ordering,
		queue:       opts.Scheduler,
		logger:      opts.Logger,
		onConnected: opts.OnConnected,
	}
	if s.queue == nil {
		s.queue = scheduler.NewQueue(opts.Logger, "roomstate")
		s.queue.Start()
		s.ownQueue = true
	}
	s.state = observable.NewValue(RoomState{}, opts.Logger)
	return s
}

func (s *Store) State() RoomState {
	return s.state.Get()
}

func (s *Store) Subscribe(fn func(RoomState)) events.Subscription {
	return s.state.Subscribe(fn)
}

// Session returns the live session, or nil.
func (s *Store) Session() types.Session {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.session
}

// Connect joins a room. A failed connection is not returned as an error: it is
// recorded in State().Error and a nil session is returned. The error is only
// set when Connect was called out of turn.
func (s *Store) Connect(ctx context.Context, url string, token string, opts types.ConnectOptions) (types.Session, error) {
	if !s.connecting.CompareAndSwap(false, true) {
		return nil, types.ErrConnectInProgress
	}
	defer s.connecting.Store(false)

	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil, ErrStoreClosed
	}
	if s.session != nil && !s.sessionEnded {
		s.lock.Unlock()
		return nil, types.ErrAlreadyConnected
	}
	// a previous session ended but its clear has not run yet
	if s.pendingClear != nil {
		s.pendingClear.Cancel()
		s.pendingClear = nil
	}
	s.session = nil
	s.lock.Unlock()

	s.state.Set(RoomState{IsConnecting: true})
	prometheus.RecordConnectAttempt()
	start := time.Now()

	session, err := s.dial(ctx, url, token, opts)
	if err != nil {
		prometheus.RecordConnectFailure()
		connErr := types.NewConnectionError(url, err)
		s.logger.Warnw("could not connect to room", err, "url", url)
		s.state.Set(RoomState{Error: connErr})
		return nil, nil
	}

	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		session.Disconnect()
		s.state.Set(RoomState{})
		return nil, ErrStoreClosed
	}
	group := &events.Group{}
	s.session = session
	s.sessionEnded = false
	s.connectedAt = time.Now()
	s.subs = group
	s.lock.Unlock()

	refresh := func(types.RoomEventData) { s.refreshParticipants(session) }
	refreshAudio := func(d types.RoomEventData) { s.refreshAudioTracks(session, d.Track) }
	group.Add(
		session.On(types.RoomEventParticipantConnected, func(types.RoomEventData) { s.refreshAudioTracks(session, nil) }),
		session.On(types.RoomEventParticipantDisconnected, func(types.RoomEventData) { s.refreshAudioTracks(session, nil) }),
		session.On(types.RoomEventActiveSpeakersChanged, refresh),
		session.On(types.RoomEventTrackSubscribed, refreshAudio),
		session.On(types.RoomEventTrackUnsubscribed, refreshAudio),
		session.On(types.RoomEventLocalTrackPublished, refresh),
		session.On(types.RoomEventLocalTrackUnpublished, refresh),
		session.On(types.RoomEventAudioPlaybackStatusChanged, refresh),
		session.On(types.RoomEventDisconnected, func(d types.RoomEventData) { s.onDisconnected(session, group, d) }),
	)

	s.state.Set(RoomState{Room: session})
	s.refreshAudioTracks(session, nil)

	prometheus.RecordConnectSuccess(time.Since(start))
	prometheus.RoomConnected()
	s.logger.Infow("connected to room",
		"room", session.Name(),
		"participants", len(s.State().Participants),
	)

	if s.onConnected != nil {
		s.onConnected(session)
	}
	return session, nil
}

func (s *Store) dial(ctx context.Context, url string, token string, opts types.ConnectOptions) (session types.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			session = nil
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = types.ErrUnknownFailure
			}
		}
	}()

	session, err = s.connector.Connect(ctx, url, token, opts)
	if err == nil && session == nil {
		err = types.ErrUnknownFailure
	}
	return
}

func (s *Store) isCurrent(session types.Session) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.session == session && !s.closed
}

func (s *Store) refreshParticipants(session types.Session) {
	if !s.isCurrent(session) {
		return
	}

	remotes := session.RemoteParticipants()
	all := make([]types.Participant, 0, len(remotes)+1)
	var local types.Participant
	if lp := session.LocalParticipant(); lp != nil {
		local = lp
		all = append(all, lp)
	}
	for _, p := range remotes {
		all = append(all, p)
	}
	participants := s.order(all, local)
	speakers := session.ActiveSpeakers()
	canPlayback := session.CanPlaybackAudio()

	s.state.Update(func(st RoomState) RoomState {
		if st.Room != session {
			return st
		}
		st.Participants = participants
		st.ActiveSpeakers = speakers
		st.CanPlaybackAudio = canPlayback
		return st
	})
	prometheus.SetParticipants(len(participants))
}

// refreshAudioTracks always refreshes participants. The audio track set is
// only rebuilt when track is nil or an audio track.
func (s *Store) refreshAudioTracks(session types.Session, track types.Track) {
	s.refreshParticipants(session)
	if track != nil && track.Kind() != livekit.TrackType_AUDIO {
		return
	}
	if !s.isCurrent(session) {
		return
	}

	var tracks []types.Track
	seen := make(map[livekit.TrackID]struct{})
	for _, p := range s.state.Get().Participants {
		if p.IsLocal() {
			continue
		}
		for _, pub := range p.Publications() {
			if pub.Kind() != livekit.TrackType_AUDIO {
				continue
			}
			t := pub.Track()
			if t == nil {
				continue
			}
			if _, ok := seen[t.SID()]; ok {
				continue
			}
			seen[t.SID()] = struct{}{}
			tracks = append(tracks, t)
		}
	}

	s.state.Update(func(st RoomState) RoomState {
		if st.Room != session {
			return st
		}
		st.AudioTracks = tracks
		return st
	})
	prometheus.SetAudioTracks(len(tracks))
}

func (s *Store) onDisconnected(session types.Session, group *events.Group, d types.RoomEventData) {
	if !group.Close() {
		return
	}

	s.lock.Lock()
	if s.session != session || s.closed {
		s.lock.Unlock()
		return
	}
	s.sessionEnded = true
	connectedAt := s.connectedAt
	s.pendingClear = s.queue.Defer(func() { s.clearSession(session, d.Err) })
	s.lock.Unlock()

	prometheus.RoomDisconnected(connectedAt)
	if d.Err != nil {
		s.logger.Warnw("room disconnected", d.Err, "room", session.Name())
	} else {
		s.logger.Infow("room disconnected", "room", session.Name())
	}
}

func (s *Store) clearSession(session types.Session, cause error) {
	s.lock.Lock()
	if s.session != session {
		s.lock.Unlock()
		return
	}
	s.session = nil
	s.subs = nil
	s.pendingClear = nil
	s.lock.Unlock()

	s.state.Set(RoomState{Error: cause})
	prometheus.SetParticipants(0)
	prometheus.SetAudioTracks(0)
}

// Close disconnects the live session and releases every listener. It is safe
// to call more than once.
func (s *Store) Close() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.closed = true
	session, group, pending := s.session, s.subs, s.pendingClear
	ended, connectedAt := s.sessionEnded, s.connectedAt
	s.session, s.subs, s.pendingClear = nil, nil, nil
	s.lock.Unlock()

	if pending != nil {
		pending.Cancel()
	}
	if group != nil {
		group.Close()
	}
	if session != nil && !ended {
		session.Disconnect()
		prometheus.RoomDisconnected(connectedAt)
	}
	if s.ownQueue {
		s.queue.Stop()
	}

	s.state.Set(RoomState{})
	prometheus.SetParticipants(0)
	prometheus.SetAudioTracks(0)
}

func (s *Store) IsClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}
