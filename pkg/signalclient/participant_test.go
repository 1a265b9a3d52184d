package signalclient

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/testutils"
)

func TestApplyInfo(t *testing.T) {
	p := newParticipant(&livekit.ParticipantInfo{Sid: "PA_a"}, false, nil)

	diff := p.applyInfo(&livekit.ParticipantInfo{
		Sid:      "PA_a",
		Metadata: "m1",
		Tracks: []*livekit.TrackInfo{
			{Sid: "TR_mic", Type: livekit.TrackType_AUDIO},
			{Sid: "TR_cam", Type: livekit.TrackType_VIDEO, Width: 1280, Height: 720},
		},
	}, true)
	require.Len(t, diff.published, 2)
	require.True(t, diff.metadataChanged)
	require.Len(t, p.Publications(), 2)

	// missing source falls back to the track type
	require.Equal(t, livekit.TrackID("TR_mic"), p.Publication(livekit.TrackSource_MICROPHONE).SID())
	cam := p.Publication(livekit.TrackSource_CAMERA)
	width, height := cam.Dimensions()
	require.Equal(t, uint32(1280), width)
	require.Equal(t, uint32(720), height)
	require.Nil(t, p.Publication(livekit.TrackSource_SCREEN_SHARE))

	track := testutils.NewFakeTrack("TR_cam", livekit.TrackType_VIDEO)
	p.getPublication("TR_cam").setTrack(track)

	diff = p.applyInfo(&livekit.ParticipantInfo{
		Sid:      "PA_a",
		Metadata: "m1",
		Tracks: []*livekit.TrackInfo{
			{Sid: "TR_mic", Type: livekit.TrackType_AUDIO, Muted: true},
		},
	}, true)
	require.Empty(t, diff.published)
	require.False(t, diff.metadataChanged)
	require.Len(t, diff.muted, 1)
	require.Len(t, diff.unpublished, 1)
	require.Equal(t, livekit.TrackID("TR_cam"), diff.unpublished[0].pub.SID())
	require.Equal(t, track, diff.unpublished[0].track)
	require.Len(t, p.Publications(), 1)

	diff = p.applyInfo(&livekit.ParticipantInfo{Sid: "PA_a", Metadata: "m2"}, false)
	require.True(t, diff.metadataChanged)
	require.Len(t, p.Publications(), 1)
}

func TestPublicationTrack(t *testing.T) {
	pub := newPublication(&livekit.TrackInfo{Sid: "TR_a", Type: livekit.TrackType_AUDIO, Source: livekit.TrackSource_SCREEN_SHARE_AUDIO})
	require.Equal(t, livekit.TrackSource_SCREEN_SHARE_AUDIO, pub.Source())
	require.False(t, pub.IsSubscribed())

	first := testutils.NewFakeTrack("TR_a", livekit.TrackType_AUDIO)
	second := testutils.NewFakeTrack("TR_a", livekit.TrackType_AUDIO)
	pub.setTrack(first)
	require.True(t, pub.IsSubscribed())

	pub.setTrack(second)
	// a stale track does not clear its replacement
	require.False(t, pub.clearTrack(first))
	require.True(t, pub.clearTrack(second))
	require.Nil(t, pub.Track())

	require.True(t, pub.setMuted(true))
	require.False(t, pub.setMuted(true))
	require.True(t, pub.IsMuted())
}

func TestSpeaking(t *testing.T) {
	p := newParticipant(&livekit.ParticipantInfo{Sid: "PA_a"}, false, nil)
	require.Equal(t, livekit.ConnectionQuality_GOOD, p.ConnectionQuality())

	require.True(t, p.setSpeaking(true, 0.5, testNow))
	require.False(t, p.setSpeaking(true, 0.7, testNow))
	require.Equal(t, float32(0.7), p.AudioLevel())
	require.Equal(t, testNow, p.LastSpokeAt())

	require.True(t, p.setSpeaking(false, 0, testNow.Add(1)))
	require.Equal(t, testNow, p.LastSpokeAt())

	require.True(t, p.setQuality(livekit.ConnectionQuality_POOR))
	require.False(t, p.setQuality(livekit.ConnectionQuality_POOR))
}
