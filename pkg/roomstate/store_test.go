package roomstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/scheduler"
	"github.com/livekit/livekit-roomview/pkg/testutils"
	"github.com/livekit/livekit-roomview/pkg/types"
	"github.com/livekit/livekit-roomview/pkg/types/typesfakes"
)

type testRoom struct {
	queue     *scheduler.Queue
	connector *typesfakes.FakeConnector
	session   *testutils.FakeSession
	local     *testutils.FakeParticipant
	store     *Store
}

var base = time.Unix(1000, 0)

func newTestRoom(t *testing.T) *testRoom {
	local := testutils.NewFakeLocalParticipant("PA_a", "a", base)
	session := testutils.NewFakeSession("test-room", local)
	connector := &typesfakes.FakeConnector{}
	connector.ConnectReturns(session, nil)
	queue := scheduler.NewQueue(nil, "test")

	r := &testRoom{
		queue:     queue,
		connector: connector,
		session:   session,
		local:     local,
		store:     NewStore(connector, Options{Scheduler: queue}),
	}
	t.Cleanup(r.store.Close)
	return r
}

func (r *testRoom) connect(t *testing.T) types.Session {
	session, err := r.store.Connect(context.Background(), "ws://localhost:7880", "token", types.ConnectOptions{AutoSubscribe: true})
	require.NoError(t, err)
	return session
}

func participantSIDs(participants []types.Participant) []livekit.ParticipantID {
	out := make([]livekit.ParticipantID, 0, len(participants))
	for _, p := range participants {
		out = append(out, p.SID())
	}
	return out
}

func TestConnectOrdersParticipants(t *testing.T) {
	r := newTestRoom(t)
	require.Equal(t, RoomState{}, r.store.State())

	var sawConnecting bool
	sub := r.store.Subscribe(func(s RoomState) {
		if s.IsConnecting {
			sawConnecting = true
			require.Empty(t, s.Participants)
			require.Nil(t, s.Room)
		}
	})
	defer sub.Close()

	session := r.connect(t)
	require.Equal(t, r.session, session)
	require.True(t, sawConnecting)

	state := r.store.State()
	require.False(t, state.IsConnecting)
	require.NoError(t, state.Error)
	require.Equal(t, []livekit.ParticipantID{"PA_a"}, participantSIDs(state.Participants))

	r.session.Join(testutils.NewFakeParticipant("PA_b", "b", base.Add(time.Second)))
	r.session.Join(testutils.NewFakeParticipant("PA_c", "c", base.Add(2*time.Second)))

	state = r.store.State()
	require.Equal(t, []livekit.ParticipantID{"PA_a", "PA_b", "PA_c"}, participantSIDs(state.Participants))
	require.True(t, state.Participants[0].IsLocal())
	require.Equal(t, r.local, state.LocalParticipant())

	r.session.Leave("PA_b")
	require.Equal(t, []livekit.ParticipantID{"PA_a", "PA_c"}, participantSIDs(r.store.State().Participants))
}

func TestConnectFailures(t *testing.T) {
	t.Run("typed error is wrapped", func(t *testing.T) {
		r := newTestRoom(t)
		cause := errors.New("could not establish signal connection")
		r.connector.ConnectReturns(nil, cause)

		session := r.connect(t)
		require.Nil(t, session)

		state := r.store.State()
		var connErr *types.ConnectionError
		require.ErrorAs(t, state.Error, &connErr)
		require.ErrorIs(t, state.Error, cause)
		require.False(t, state.IsConnecting)
		require.Nil(t, state.Room)
		require.Empty(t, state.Participants)
	})

	t.Run("non-error failure is normalized", func(t *testing.T) {
		r := newTestRoom(t)
		r.connector.ConnectCalls(func(context.Context, string, string, types.ConnectOptions) (types.Session, error) {
			panic("connection refused")
		})

		session := r.connect(t)
		require.Nil(t, session)

		state := r.store.State()
		require.ErrorIs(t, state.Error, types.ErrUnknownFailure)
		require.False(t, state.IsConnecting)
		require.Nil(t, state.Room)
	})

	t.Run("missing session is normalized", func(t *testing.T) {
		r := newTestRoom(t)
		r.connector.ConnectReturns(nil, nil)

		require.Nil(t, r.connect(t))
		require.ErrorIs(t, r.store.State().Error, types.ErrUnknownFailure)
	})

	t.Run("error is cleared by the next attempt", func(t *testing.T) {
		r := newTestRoom(t)
		r.connector.ConnectReturnsOnCall(0, nil, errors.New("unauthorized"))
		require.Nil(t, r.connect(t))
		require.Error(t, r.store.State().Error)

		require.NotNil(t, r.connect(t))
		require.NoError(t, r.store.State().Error)
	})
}

func TestConnectPreconditions(t *testing.T) {
	t.Run("concurrent connect is rejected", func(t *testing.T) {
		r := newTestRoom(t)
		release := make(chan struct{})
		entered := make(chan struct{})
		r.connector.ConnectCalls(func(context.Context, string, string, types.ConnectOptions) (types.Session, error) {
			close(entered)
			<-release
			return r.session, nil
		})

		done := make(chan types.Session)
		go func() {
			s, _ := r.store.Connect(context.Background(), "ws://localhost", "token", types.ConnectOptions{})
			done <- s
		}()
		<-entered

		require.True(t, r.store.State().IsConnecting)
		_, err := r.store.Connect(context.Background(), "ws://localhost", "token", types.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrConnectInProgress)

		close(release)
		require.Equal(t, types.Session(r.session), <-done)
		require.Equal(t, 1, r.connector.ConnectCallCount())
	})

	t.Run("connect while connected is rejected", func(t *testing.T) {
		r := newTestRoom(t)
		r.connect(t)
		_, err := r.store.Connect(context.Background(), "ws://localhost", "token", types.ConnectOptions{})
		require.ErrorIs(t, err, types.ErrAlreadyConnected)
	})

	t.Run("connect after close", func(t *testing.T) {
		r := newTestRoom(t)
		r.store.Close()
		_, err := r.store.Connect(context.Background(), "ws://localhost", "token", types.ConnectOptions{})
		require.ErrorIs(t, err, ErrStoreClosed)
		require.Equal(t, 0, r.connector.ConnectCallCount())
	})
}

func TestAudioTracks(t *testing.T) {
	r := newTestRoom(t)

	// local audio is never part of the set
	localMic := testutils.NewFakePublication("TR_local_mic", livekit.TrackSource_MICROPHONE)
	r.local.AddPublication(localMic)
	r.local.SubscribeTrack(livekit.TrackSource_MICROPHONE, testutils.NewFakeTrack("TR_local_mic", livekit.TrackType_AUDIO))

	b := testutils.NewFakeParticipant("PA_b", "b", base.Add(time.Second))
	b.AddPublication(testutils.NewFakePublication("TR_b_mic", livekit.TrackSource_MICROPHONE))
	b.AddPublication(testutils.NewFakePublication("TR_b_cam", livekit.TrackSource_CAMERA))
	c := testutils.NewFakeParticipant("PA_c", "c", base.Add(2*time.Second))
	c.AddPublication(testutils.NewFakePublication("TR_c_mic", livekit.TrackSource_MICROPHONE))
	r.session.AddRemote(b)
	r.session.AddRemote(c)

	r.connect(t)
	require.Empty(t, r.store.State().AudioTracks)

	trackSIDs := func() []livekit.TrackID {
		var out []livekit.TrackID
		for _, track := range r.store.State().AudioTracks {
			out = append(out, track.SID())
		}
		return out
	}

	r.session.SubscribeTrack(c, livekit.TrackSource_MICROPHONE, testutils.NewFakeTrack("TR_c_mic", livekit.TrackType_AUDIO))
	require.Equal(t, []livekit.TrackID{"TR_c_mic"}, trackSIDs())

	r.session.SubscribeTrack(b, livekit.TrackSource_MICROPHONE, testutils.NewFakeTrack("TR_b_mic", livekit.TrackType_AUDIO))
	// participant order, not subscription order
	require.Equal(t, []livekit.TrackID{"TR_b_mic", "TR_c_mic"}, trackSIDs())

	r.session.SubscribeTrack(b, livekit.TrackSource_CAMERA, testutils.NewFakeTrack("TR_b_cam", livekit.TrackType_VIDEO))
	require.Equal(t, []livekit.TrackID{"TR_b_mic", "TR_c_mic"}, trackSIDs())

	r.session.UnsubscribeTrack(c, livekit.TrackSource_MICROPHONE)
	require.Equal(t, []livekit.TrackID{"TR_b_mic"}, trackSIDs())

	r.session.Leave("PA_b")
	require.Empty(t, trackSIDs())
}

func TestSpeakersAndPlayback(t *testing.T) {
	r := newTestRoom(t)
	b := testutils.NewFakeParticipant("PA_b", "b", base.Add(time.Second))
	r.session.AddRemote(b)
	r.connect(t)
	require.True(t, r.store.State().CanPlaybackAudio)

	r.session.SetActiveSpeakers(b)
	require.True(t, r.store.State().IsActiveSpeaker("PA_b"))
	require.False(t, r.store.State().IsActiveSpeaker("PA_a"))

	r.session.SetCanPlaybackAudio(false)
	require.False(t, r.store.State().CanPlaybackAudio)
}

func TestDisconnectClearsOnNextTurn(t *testing.T) {
	r := newTestRoom(t)
	r.session.AddRemote(testutils.NewFakeParticipant("PA_b", "b", base.Add(time.Second)))
	r.connect(t)
	require.Equal(t, 9, r.session.ListenerCount())

	var roomDuringEvent types.Session
	r.session.On(types.RoomEventDisconnected, func(types.RoomEventData) {
		roomDuringEvent = r.store.State().Room
	})

	r.session.Disconnect()
	require.Equal(t, types.Session(r.session), roomDuringEvent)
	// only the test's own listener is left
	require.Equal(t, 1, r.session.ListenerCount())

	// still visible until the deferred clear runs
	require.Equal(t, types.Session(r.session), r.store.State().Room)
	require.Equal(t, 1, r.queue.Len())

	require.Equal(t, 1, r.queue.Drain())
	state := r.store.State()
	require.Nil(t, state.Room)
	require.Empty(t, state.Participants)
	require.Empty(t, state.AudioTracks)
	require.Nil(t, r.store.Session())

	// disconnected is terminal; a repeat emission changes nothing
	r.session.Emit(types.RoomEventDisconnected, types.RoomEventData{})
	require.Equal(t, 0, r.queue.Drain())
}

func TestReconnectCancelsPendingClear(t *testing.T) {
	r := newTestRoom(t)
	r.connect(t)
	r.session.Disconnect()
	require.Equal(t, 1, r.queue.Len())

	second := testutils.NewFakeSession("second", testutils.NewFakeLocalParticipant("PA_x", "x", base))
	r.connector.ConnectReturns(second, nil)
	require.Equal(t, types.Session(second), r.connect(t))

	// the stale clear must not wipe the new session
	require.Equal(t, 0, r.queue.Drain())
	require.Equal(t, types.Session(second), r.store.State().Room)
	require.Equal(t, []livekit.ParticipantID{"PA_x"}, participantSIDs(r.store.State().Participants))
}

func TestCloseIsIdempotent(t *testing.T) {
	r := newTestRoom(t)
	r.connect(t)
	require.Greater(t, r.session.ListenerCount(), 0)

	r.store.Close()
	require.Equal(t, 0, r.session.ListenerCount())
	require.Equal(t, 1, r.session.DisconnectCalls())
	require.Equal(t, RoomState{}, r.store.State())
	require.True(t, r.store.IsClosed())

	require.NotPanics(t, r.store.Close)
	require.Equal(t, 1, r.session.DisconnectCalls())
	require.Equal(t, 0, r.queue.Drain())
}

func TestCloseCancelsPendingClear(t *testing.T) {
	r := newTestRoom(t)
	r.connect(t)

	var updates int
	r.session.Disconnect()
	sub := r.store.Subscribe(func(RoomState) { updates++ })
	defer sub.Close()

	r.store.Close()
	require.Equal(t, 1, updates)
	// the deferred clear was cancelled and never runs
	require.Equal(t, 0, r.queue.Drain())
	require.Equal(t, 1, updates)
	// the session already ended on its own, Close does not disconnect again
	require.Equal(t, 1, r.session.DisconnectCalls())
}

func TestListenerPanicDoesNotStopRefresh(t *testing.T) {
	r := newTestRoom(t)
	r.session.On(types.RoomEventParticipantConnected, func(types.RoomEventData) {
		panic("host listener failed")
	})
	r.connect(t)

	r.session.Join(testutils.NewFakeParticipant("PA_b", "b", base.Add(time.Second)))
	require.Equal(t, []livekit.ParticipantID{"PA_a", "PA_b"}, participantSIDs(r.store.State().Participants))
}

func TestOnConnected(t *testing.T) {
	local := testutils.NewFakeLocalParticipant("PA_a", "a", base)
	session := testutils.NewFakeSession("room", local)
	connector := &typesfakes.FakeConnector{}
	connector.ConnectReturns(session, nil)

	var connected types.Session
	store := NewStore(connector, Options{OnConnected: func(s types.Session) { connected = s }})
	defer store.Close()

	_, err := store.Connect(context.Background(), "ws://localhost", "token", types.ConnectOptions{})
	require.NoError(t, err)
	require.Equal(t, types.Session(session), connected)

	// with its own queue the clear runs on the store's goroutine
	session.Disconnect()
	testutils.WithTimeout(t, func() string {
		if store.State().Room != nil {
			return "session not cleared"
		}
		return ""
	})
}
