package controls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/testutils"
	"github.com/livekit/livekit-roomview/pkg/types"
)

func newControls() (*Controls, *testutils.FakeSession) {
	local := testutils.NewFakeLocalParticipant("PA_local", "local", time.Now())
	session := testutils.NewFakeSession("room", local)
	return New(session, nil), session
}

func TestToggles(t *testing.T) {
	ctx := context.Background()
	c, session := newControls()
	local := session.FakeLocalParticipant()

	testCases := []struct {
		name    string
		source  livekit.TrackSource
		toggle  func(context.Context) error
		enabled func() bool
	}{
		{"microphone", livekit.TrackSource_MICROPHONE, c.ToggleMicrophone, c.IsMicrophoneEnabled},
		{"camera", livekit.TrackSource_CAMERA, c.ToggleCamera, c.IsCameraEnabled},
		{"screen share", livekit.TrackSource_SCREEN_SHARE, c.ToggleScreenShare, c.IsScreenShareEnabled},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.False(t, tc.enabled())

			require.NoError(t, tc.toggle(ctx))
			require.True(t, tc.enabled())
			require.NotNil(t, local.Publication(tc.source))

			require.NoError(t, tc.toggle(ctx))
			require.False(t, tc.enabled())
			require.True(t, local.Publication(tc.source).IsMuted())
		})
	}
}

func TestStartAudio(t *testing.T) {
	c, session := newControls()
	require.NoError(t, c.StartAudio(context.Background()))
	require.Equal(t, 0, session.StartAudioCalls())

	session.SetCanPlaybackAudio(false)
	require.NoError(t, c.StartAudio(context.Background()))
	require.Equal(t, 1, session.StartAudioCalls())
	require.True(t, session.CanPlaybackAudio())
}

func TestLeave(t *testing.T) {
	c, session := newControls()

	var disconnected bool
	session.On(types.RoomEventDisconnected, func(types.RoomEventData) { disconnected = true })

	var left types.Session
	c.Leave(func(s types.Session) {
		// disconnect happens first
		require.True(t, disconnected)
		left = s
	})
	require.Equal(t, types.Session(session), left)
	require.Equal(t, 1, session.DisconnectCalls())

	require.NotPanics(t, func() { c.Leave(nil) })
}
