package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/livekit"
)

func TestCountersBeforeAndAfterInit(t *testing.T) {
	before := GetStats()

	RecordConnectAttempt()
	RecordConnectFailure()
	SetParticipants(3)
	IncrementPackets(Incoming, "audio", 2, 200)

	stats := GetStats()
	require.Equal(t, before.ConnectAttempts+1, stats.ConnectAttempts)
	require.Equal(t, before.ConnectFailures+1, stats.ConnectFailures)
	require.EqualValues(t, 3, stats.Participants)
	require.Equal(t, before.PacketsIn+2, stats.PacketsIn)
	require.Equal(t, before.BytesIn+200, stats.BytesIn)

	Init("viewer")
	// a second Init must not register collectors twice
	require.NotPanics(t, func() { Init("viewer") })

	RecordConnectAttempt()
	RecordConnectSuccess(120 * time.Millisecond)
	RoomConnected()
	require.True(t, GetStats().Connected)
	RecordQuality("alice", livekit.ConnectionQuality_EXCELLENT, livekit.ConnectionQuality_POOR)
	SetVisibleTiles(4)
	SetAudioTracks(2)
	require.EqualValues(t, 4, GetStats().VisibleTiles)
	require.EqualValues(t, 2, GetStats().AudioTracks)

	RoomDisconnected(time.Now().Add(-time.Minute))
	require.False(t, GetStats().Connected)
	// disconnecting twice is a no-op
	RoomDisconnected(time.Now())
}
