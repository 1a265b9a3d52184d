package signalclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/testutils"
	"github.com/livekit/livekit-roomview/pkg/types"
)

const testToken = "test-token"

// signalServer speaks just enough of the signal protocol to join a room.
type signalServer struct {
	t        *testing.T
	server   *httptest.Server
	join     *livekit.JoinResponse
	requests chan *livekit.SignalRequest

	lock sync.Mutex
	conn *websocket.Conn
}

func newSignalServer(t *testing.T, join *livekit.JoinResponse) *signalServer {
	s := &signalServer{
		t:        t,
		join:     join,
		requests: make(chan *livekit.SignalRequest, 100),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *signalServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/rtc" || r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.lock.Lock()
	s.conn = conn
	s.lock.Unlock()

	if s.join != nil {
		_ = s.write(&livekit.SignalResponse{Message: &livekit.SignalResponse_Join{Join: s.join}})
	}
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		req := &livekit.SignalRequest{}
		if err = proto.Unmarshal(payload, req); err != nil {
			continue
		}
		if add, ok := req.Message.(*livekit.SignalRequest_AddTrack); ok {
			_ = s.write(&livekit.SignalResponse{Message: &livekit.SignalResponse_TrackPublished{
				TrackPublished: &livekit.TrackPublishedResponse{
					Cid: add.AddTrack.Cid,
					Track: &livekit.TrackInfo{
						Sid:    "TR_" + add.AddTrack.Cid,
						Name:   add.AddTrack.Name,
						Type:   add.AddTrack.Type,
						Source: add.AddTrack.Source,
					},
				},
			}})
		}
		s.requests <- req
	}
}

func (s *signalServer) send(res *livekit.SignalResponse) {
	require.NoError(s.t, s.write(res))
}

func (s *signalServer) write(res *livekit.SignalResponse) error {
	payload, err := proto.Marshal(res)
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, payload)
}

// waitForRequest returns the first request matching fn.
func (s *signalServer) waitForRequest(fn func(*livekit.SignalRequest) bool) *livekit.SignalRequest {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case req := <-s.requests:
			if fn(req) {
				return req
			}
		case <-timeout:
			s.t.Fatal("expected signal request was not received")
			return nil
		}
	}
}

func testJoin() *livekit.JoinResponse {
	return &livekit.JoinResponse{
		Room: &livekit.Room{Name: "test-room"},
		Participant: &livekit.ParticipantInfo{
			Sid:      "PA_local",
			Identity: "local",
			JoinedAt: 100,
		},
		OtherParticipants: []*livekit.ParticipantInfo{
			{
				Sid:      "PA_b",
				Identity: "b",
				JoinedAt: 50,
				Tracks: []*livekit.TrackInfo{
					{Sid: "TR_b_audio", Type: livekit.TrackType_AUDIO, Source: livekit.TrackSource_MICROPHONE},
				},
			},
		},
	}
}

func connect(t *testing.T, server *signalServer, params ConnectorParams) *Session {
	session, err := NewConnector(params, nil).Connect(context.Background(), server.server.URL, testToken, types.ConnectOptions{AutoSubscribe: true})
	require.NoError(t, err)
	t.Cleanup(session.Disconnect)
	return session.(*Session)
}

func TestConnect(t *testing.T) {
	server := newSignalServer(t, testJoin())
	session := connect(t, server, ConnectorParams{})

	require.Equal(t, "test-room", session.Name())
	require.Equal(t, livekit.ParticipantID("PA_local"), session.LocalParticipant().SID())
	require.True(t, session.LocalParticipant().IsLocal())
	require.True(t, session.CanPlaybackAudio())

	remotes := session.RemoteParticipants()
	require.Len(t, remotes, 1)
	b := remotes["PA_b"]
	require.NotNil(t, b)
	require.False(t, b.IsLocal())
	require.Equal(t, time.Unix(50, 0), b.JoinedAt())

	pub := b.Publication(livekit.TrackSource_MICROPHONE)
	require.NotNil(t, pub)
	require.False(t, pub.IsSubscribed())
	require.Nil(t, session.GetParticipant("PA_missing"))
}

func TestConnectFailures(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		server := newSignalServer(t, testJoin())
		_, err := NewConnector(ConnectorParams{}, nil).Connect(context.Background(), server.server.URL, "bad", types.ConnectOptions{})
		require.Error(t, err)
	})

	t.Run("no join response", func(t *testing.T) {
		server := newSignalServer(t, nil)
		_, err := NewConnector(ConnectorParams{JoinTimeout: 200 * time.Millisecond}, nil).
			Connect(context.Background(), server.server.URL, testToken, types.ConnectOptions{})
		require.Error(t, err)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := NewConnector(ConnectorParams{}, nil).Connect(context.Background(), "ftp://host", testToken, types.ConnectOptions{})
		require.Error(t, err)
	})
}

func TestParticipantUpdates(t *testing.T) {
	server := newSignalServer(t, testJoin())
	session := connect(t, server, ConnectorParams{})

	connected := make(chan types.Participant, 1)
	disconnected := make(chan types.Participant, 1)
	session.On(types.RoomEventParticipantConnected, func(d types.RoomEventData) { connected <- d.Participant })
	session.On(types.RoomEventParticipantDisconnected, func(d types.RoomEventData) { disconnected <- d.Participant })

	var mutedLock sync.Mutex
	var muted []livekit.TrackID
	session.GetParticipant("PA_b").On(types.ParticipantEventTrackMuted, func(d types.ParticipantEventData) {
		mutedLock.Lock()
		muted = append(muted, d.Publication.SID())
		mutedLock.Unlock()
	})

	server.send(&livekit.SignalResponse{Message: &livekit.SignalResponse_Update{
		Update: &livekit.ParticipantUpdate{Participants: []*livekit.ParticipantInfo{
			{Sid: "PA_c", Identity: "c", JoinedAt: 200, Metadata: "hello"},
			{
				Sid:      "PA_b",
				Identity: "b",
				JoinedAt: 50,
				Tracks: []*livekit.TrackInfo{
					{Sid: "TR_b_audio", Type: livekit.TrackType_AUDIO, Source: livekit.TrackSource_MICROPHONE, Muted: true},
				},
			},
		}},
	}})

	select {
	case p := <-connected:
		require.Equal(t, livekit.ParticipantID("PA_c"), p.SID())
		require.Equal(t, "hello", p.Metadata())
	case <-time.After(5 * time.Second):
		t.Fatal("participant connected event not received")
	}
	testutils.WithTimeout(t, func() string {
		mutedLock.Lock()
		defer mutedLock.Unlock()
		if len(muted) != 1 {
			return "track mute not applied"
		}
		return ""
	})
	require.True(t, session.GetParticipant("PA_b").Publication(livekit.TrackSource_MICROPHONE).IsMuted())
	require.Len(t, session.RemoteParticipants(), 2)

	server.send(&livekit.SignalResponse{Message: &livekit.SignalResponse_Update{
		Update: &livekit.ParticipantUpdate{Participants: []*livekit.ParticipantInfo{
			{Sid: "PA_b", Identity: "b", State: livekit.ParticipantInfo_DISCONNECTED},
		}},
	}})
	select {
	case p := <-disconnected:
		require.Equal(t, livekit.ParticipantID("PA_b"), p.SID())
	case <-time.After(5 * time.Second):
		t.Fatal("participant disconnected event not received")
	}
	require.Len(t, session.RemoteParticipants(), 1)
}

func TestSpeakersAndQuality(t *testing.T) {
	join := testJoin()
	join.OtherParticipants = append(join.OtherParticipants, &livekit.ParticipantInfo{Sid: "PA_c", Identity: "c"})
	server := newSignalServer(t, join)
	session := connect(t, server, ConnectorParams{})

	speakers := make(chan []types.Participant, 10)
	session.On(types.RoomEventActiveSpeakersChanged, func(d types.RoomEventData) { speakers <- d.Speakers })

	server.send(&livekit.SignalResponse{Message: &livekit.SignalResponse_SpeakersChanged{
		SpeakersChanged: &livekit.SpeakersChanged{Speakers: []*livekit.SpeakerInfo{
			{Sid: "PA_b", Level: 0.3, Active: true},
			{Sid: "PA_c", Level: 0.8, Active: true},
		}},
	}})
	select {
	case active := <-speakers:
		require.Len(t, active, 2)
		// loudest first
		require.Equal(t, livekit.ParticipantID("PA_c"), active[0].SID())
		require.Equal(t, livekit.ParticipantID("PA_b"), active[1].SID())
	case <-time.After(5 * time.Second):
		t.Fatal("speakers changed event not received")
	}
	require.True(t, session.GetParticipant("PA_b").IsSpeaking())
	require.False(t, session.GetParticipant("PA_b").LastSpokeAt().IsZero())

	// partial update
	server.send(&livekit.SignalResponse{Message: &livekit.SignalResponse_SpeakersChanged{
		SpeakersChanged: &livekit.SpeakersChanged{Speakers: []*livekit.SpeakerInfo{
			{Sid: "PA_c", Active: false},
		}},
	}})
	select {
	case active := <-speakers:
		require.Len(t, active, 1)
		require.Equal(t, livekit.ParticipantID("PA_b"), active[0].SID())
	case <-time.After(5 * time.Second):
		t.Fatal("speakers changed event not received")
	}

	quality := make(chan livekit.ConnectionQuality, 1)
	session.GetParticipant("PA_c").On(types.ParticipantEventConnectionQualityChanged, func(d types.ParticipantEventData) {
		quality <- d.Quality
	})
	server.send(&livekit.SignalResponse{Message: &livekit.SignalResponse_ConnectionQuality{
		ConnectionQuality: &livekit.ConnectionQualityUpdate{Updates: []*livekit.ConnectionQualityInfo{
			{ParticipantSid: "PA_c", Quality: livekit.ConnectionQuality_POOR},
		}},
	}})
	select {
	case q := <-quality:
		require.Equal(t, livekit.ConnectionQuality_POOR, q)
	case <-time.After(5 * time.Second):
		t.Fatal("quality event not received")
	}
}

func TestDisconnect(t *testing.T) {
	t.Run("client leaves", func(t *testing.T) {
		server := newSignalServer(t, testJoin())
		session := connect(t, server, ConnectorParams{})

		done := make(chan error, 1)
		session.On(types.RoomEventDisconnected, func(d types.RoomEventData) { done <- d.Err })
		session.Disconnect()
		session.Disconnect()

		server.waitForRequest(func(req *livekit.SignalRequest) bool {
			_, ok := req.Message.(*livekit.SignalRequest_Leave)
			return ok
		})
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("disconnected event not received")
		}
		require.ErrorIs(t, session.StartAudio(context.Background()), types.ErrNotConnected)
	})

	t.Run("server leaves", func(t *testing.T) {
		server := newSignalServer(t, testJoin())
		session := connect(t, server, ConnectorParams{})

		done := make(chan error, 1)
		session.On(types.RoomEventDisconnected, func(d types.RoomEventData) { done <- d.Err })
		server.send(&livekit.SignalResponse{Message: &livekit.SignalResponse_Leave{Leave: &livekit.LeaveRequest{}}})
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("disconnected event not received")
		}
	})

	t.Run("connection lost", func(t *testing.T) {
		server := newSignalServer(t, testJoin())
		session := connect(t, server, ConnectorParams{})

		done := make(chan error, 1)
		session.On(types.RoomEventDisconnected, func(d types.RoomEventData) { done <- d.Err })
		server.lock.Lock()
		_ = server.conn.UnderlyingConn().Close()
		server.lock.Unlock()
		select {
		case err := <-done:
			require.Error(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("disconnected event not received")
		}
	})
}

func TestStartAudio(t *testing.T) {
	server := newSignalServer(t, testJoin())
	session := connect(t, server, ConnectorParams{StartAudioMuted: true})
	require.False(t, session.CanPlaybackAudio())

	changed := make(chan bool, 1)
	session.On(types.RoomEventAudioPlaybackStatusChanged, func(d types.RoomEventData) { changed <- d.CanPlaybackAudio })
	require.NoError(t, session.StartAudio(context.Background()))
	require.True(t, session.CanPlaybackAudio())
	select {
	case allowed := <-changed:
		require.True(t, allowed)
	case <-time.After(5 * time.Second):
		t.Fatal("playback event not received")
	}

	// already allowed
	require.NoError(t, session.StartAudio(context.Background()))
}

func TestPublishMicrophone(t *testing.T) {
	server := newSignalServer(t, testJoin())
	session := connect(t, server, ConnectorParams{})
	local := session.LocalParticipant()

	published := make(chan types.RoomEventData, 1)
	session.On(types.RoomEventLocalTrackPublished, func(d types.RoomEventData) { published <- d })

	require.NoError(t, local.SetMicrophoneEnabled(context.Background(), true))
	select {
	case d := <-published:
		require.Equal(t, livekit.TrackSource_MICROPHONE, d.Publication.Source())
		require.Equal(t, livekit.TrackType_AUDIO, d.Track.Kind())
	case <-time.After(5 * time.Second):
		t.Fatal("local track published event not received")
	}
	server.waitForRequest(func(req *livekit.SignalRequest) bool {
		_, ok := req.Message.(*livekit.SignalRequest_Offer)
		return ok
	})

	pub := local.Publication(livekit.TrackSource_MICROPHONE)
	require.NotNil(t, pub)
	require.False(t, pub.IsMuted())

	require.NoError(t, local.SetMicrophoneEnabled(context.Background(), false))
	require.True(t, pub.IsMuted())
	req := server.waitForRequest(func(req *livekit.SignalRequest) bool {
		_, ok := req.Message.(*livekit.SignalRequest_Mute)
		return ok
	})
	require.True(t, req.GetMute().Muted)
	require.Equal(t, string(pub.SID()), req.GetMute().Sid)

	require.ErrorIs(t, local.SetScreenShareEnabled(context.Background(), true), types.ErrNotSupported)
	require.NoError(t, local.SetScreenShareEnabled(context.Background(), false))
}

func TestToSignalURL(t *testing.T) {
	testCases := []struct {
		in       string
		expected string
	}{
		{"http://localhost:7880", "ws://localhost:7880/rtc?auto_subscribe=true&protocol=7"},
		{"https://example.com/", "wss://example.com/rtc?auto_subscribe=true&protocol=7"},
		{"wss://example.com/base", "wss://example.com/base/rtc?auto_subscribe=true&protocol=7"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			u, err := ToSignalURL(tc.in, true)
			require.NoError(t, err)
			require.Equal(t, tc.expected, u)
		})
	}

	_, err := ToSignalURL("ftp://example.com", true)
	require.Error(t, err)
}
