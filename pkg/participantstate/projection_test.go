package participantstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/testutils"
	"github.com/livekit/livekit-roomview/pkg/types"
)

func newRemote() *testutils.FakeParticipant {
	p := testutils.NewFakeParticipant("PA_remote", "remote", time.Unix(100, 0))
	p.SetName("Remote User")
	return p
}

func TestProjectionInitialState(t *testing.T) {
	p := newRemote()
	p.SetMetadata("hello")
	p.SetSpeaking(true, 0.5)
	mic := testutils.NewFakePublication("TR_mic", livekit.TrackSource_MICROPHONE)
	p.AddPublication(mic)

	proj := New(p, Options{})
	defer proj.Close()

	s := proj.State()
	require.Equal(t, "hello", s.Metadata)
	require.True(t, s.IsSpeaking)
	require.Len(t, s.Publications, 1)
	require.Equal(t, mic, s.Microphone)
	require.Nil(t, s.Camera)
	require.False(t, s.IsAudioMuted)
	// no video publication at all
	require.True(t, s.IsVideoMuted)
	require.Equal(t, "Remote User", s.DisplayName)
	require.Equal(t, livekit.ConnectionQuality_EXCELLENT, s.ConnectionQuality)
}

func TestProjectionDisplayName(t *testing.T) {
	local := testutils.NewFakeLocalParticipant("PA_local", "alice", time.Unix(100, 0))
	proj := New(local, Options{})
	defer proj.Close()
	require.Equal(t, "alice (You)", proj.State().DisplayName)
	require.True(t, proj.State().IsLocal)
}

func TestProjectionEvents(t *testing.T) {
	p := newRemote()
	proj := New(p, Options{})
	defer proj.Close()

	var updates int
	sub := proj.Subscribe(func(State) { updates++ })
	defer sub.Close()

	t.Run("mute flags with no publications are muted", func(t *testing.T) {
		require.True(t, proj.State().IsAudioMuted)
		require.True(t, proj.State().IsVideoMuted)
	})

	mic := testutils.NewFakePublication("TR_mic", livekit.TrackSource_MICROPHONE)
	cam := testutils.NewFakePublication("TR_cam", livekit.TrackSource_CAMERA)

	t.Run("publishing re-derives mute flags", func(t *testing.T) {
		p.Publish(mic)
		require.False(t, proj.State().IsAudioMuted)
		require.True(t, proj.State().IsVideoMuted)

		p.Publish(cam)
		require.False(t, proj.State().IsVideoMuted)
		require.Equal(t, cam, proj.State().Camera)
	})

	t.Run("mute events are split by kind", func(t *testing.T) {
		p.SetMuted(livekit.TrackSource_MICROPHONE, true)
		require.True(t, proj.State().IsAudioMuted)
		require.False(t, proj.State().IsVideoMuted)

		p.SetMuted(livekit.TrackSource_CAMERA, true)
		require.True(t, proj.State().IsVideoMuted)

		p.SetMuted(livekit.TrackSource_MICROPHONE, false)
		require.False(t, proj.State().IsAudioMuted)
		require.True(t, proj.State().IsVideoMuted)
	})

	t.Run("unpublishing the last audio publication mutes audio", func(t *testing.T) {
		p.Unpublish(livekit.TrackSource_MICROPHONE)
		require.True(t, proj.State().IsAudioMuted)
		require.Nil(t, proj.State().Microphone)
	})

	t.Run("subscribed tracks follow subscriptions", func(t *testing.T) {
		track := testutils.NewFakeTrack("TR_cam", livekit.TrackType_VIDEO)
		p.SubscribeTrack(livekit.TrackSource_CAMERA, track)
		require.Len(t, proj.State().SubscribedTracks, 1)

		p.UnsubscribeTrack(livekit.TrackSource_CAMERA)
		require.Empty(t, proj.State().SubscribedTracks)
	})

	t.Run("empty metadata does not overwrite", func(t *testing.T) {
		p.SetMetadata("first")
		require.Equal(t, "first", proj.State().Metadata)
		p.SetMetadata("")
		require.Equal(t, "first", proj.State().Metadata)
	})

	t.Run("speaking and connection quality", func(t *testing.T) {
		p.SetSpeaking(true, 0.3)
		require.True(t, proj.State().IsSpeaking)
		p.SetSpeaking(false, 0)
		require.False(t, proj.State().IsSpeaking)

		p.SetConnectionQuality(livekit.ConnectionQuality_POOR)
		require.Equal(t, livekit.ConnectionQuality_POOR, proj.State().ConnectionQuality)
	})

	require.Greater(t, updates, 0)
}

func TestProjectionTeardown(t *testing.T) {
	p := newRemote()
	proj := New(p, Options{})
	require.Equal(t, len(types.AllParticipantEvents), p.ListenerCount())

	// every event kind has a listener
	for _, event := range types.AllParticipantEvents {
		p.Emit(event, types.ParticipantEventData{})
	}

	proj.Close()
	require.Equal(t, 0, p.ListenerCount())
	require.True(t, proj.IsClosed())

	require.NotPanics(t, proj.Close)
	require.Equal(t, 0, p.ListenerCount())

	select {
	case <-proj.samplerDone:
	case <-time.After(time.Second):
		t.Fatal("bitrate sampler still running after close")
	}

	before := proj.State()
	p.SetSpeaking(true, 1)
	require.Equal(t, before.IsSpeaking, proj.State().IsSpeaking)
}

func TestProjectionBitrate(t *testing.T) {
	p := newRemote()
	mic := testutils.NewFakePublication("TR_mic", livekit.TrackSource_MICROPHONE)
	cam := testutils.NewFakePublication("TR_cam", livekit.TrackSource_CAMERA)
	p.AddPublication(mic)
	p.AddPublication(cam)
	audio := testutils.NewFakeTrack("TR_mic", livekit.TrackType_AUDIO)
	video := testutils.NewFakeTrack("TR_cam", livekit.TrackType_VIDEO)
	audio.SetBitrate(32_000)
	video.SetBitrate(500_000)
	p.SubscribeTrack(livekit.TrackSource_MICROPHONE, audio)
	p.SubscribeTrack(livekit.TrackSource_CAMERA, video)

	proj := New(p, Options{BitrateInterval: 10 * time.Millisecond})

	testutils.WithTimeout(t, func() string {
		if proj.State().Bitrate != 532_000 {
			return "bitrate not sampled"
		}
		return ""
	})
	require.Equal(t, "532 kbps", proj.State().BitrateString())

	proj.Close()
	<-proj.samplerDone
	video.SetBitrate(0)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, uint64(532_000), proj.State().Bitrate)
}

func TestCameraOrientation(t *testing.T) {
	p := newRemote()
	cam := testutils.NewFakePublication("TR_cam", livekit.TrackSource_CAMERA)
	cam.SetDimensions(720, 1280)
	p.AddPublication(cam)

	proj := New(p, Options{})
	defer proj.Close()
	require.Equal(t, OrientationPortrait, proj.State().CameraOrientation())

	cam.SetDimensions(1280, 720)
	require.Equal(t, OrientationLandscape, proj.State().CameraOrientation())
	require.Equal(t, OrientationLandscape, State{}.CameraOrientation())
}
