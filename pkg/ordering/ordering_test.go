package ordering

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/testutils"
	"github.com/livekit/livekit-roomview/pkg/types"
)

func sids(participants []types.Participant) []livekit.ParticipantID {
	out := make([]livekit.ParticipantID, 0, len(participants))
	for _, p := range participants {
		out = append(out, p.SID())
	}
	return out
}

func TestDefault(t *testing.T) {
	base := time.Unix(1000, 0)
	local := testutils.NewFakeLocalParticipant("PA_local", "local", base.Add(5*time.Second))
	b := testutils.NewFakeParticipant("PA_b", "b", base.Add(time.Second))
	c := testutils.NewFakeParticipant("PA_c", "c", base.Add(2*time.Second))
	// same join time as c, smaller sid
	c2 := testutils.NewFakeParticipant("PA_bb", "bb", base.Add(2*time.Second))
	d := testutils.NewFakeParticipant("PA_d", "d", base)

	t.Run("local first then join order with sid tie-break", func(t *testing.T) {
		ordered := Default([]types.Participant{c, local, b, c2, d}, local)
		require.Equal(t, []livekit.ParticipantID{"PA_local", "PA_d", "PA_b", "PA_bb", "PA_c"}, sids(ordered))
		require.True(t, ordered[0].IsLocal())
	})

	t.Run("stable under permutation of input", func(t *testing.T) {
		input := []types.Participant{local, b, c, c2, d}
		expected := sids(Default(input, local))
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < 50; i++ {
			shuffled := append([]types.Participant(nil), input...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			require.Equal(t, expected, sids(Default(shuffled, local)))
		}
	})

	t.Run("does not mutate input", func(t *testing.T) {
		input := []types.Participant{c, b, local}
		_ = Default(input, local)
		require.Equal(t, []livekit.ParticipantID{"PA_c", "PA_b", "PA_local"}, sids(input))
	})

	t.Run("local is not duplicated", func(t *testing.T) {
		ordered := Default([]types.Participant{local, local, b, b}, local)
		require.Equal(t, []livekit.ParticipantID{"PA_local", "PA_b"}, sids(ordered))
	})

	t.Run("only local", func(t *testing.T) {
		require.Equal(t, []livekit.ParticipantID{"PA_local"}, sids(Default(nil, local)))
	})

	t.Run("no local", func(t *testing.T) {
		require.Equal(t, []livekit.ParticipantID{"PA_b"}, sids(Default([]types.Participant{b}, nil)))
	})
}

func TestBySpeakerActivity(t *testing.T) {
	base := time.Unix(1000, 0)
	local := testutils.NewFakeLocalParticipant("PA_local", "local", base)
	quiet := testutils.NewFakeParticipant("PA_quiet", "quiet", base.Add(time.Second))
	loud := testutils.NewFakeParticipant("PA_loud", "loud", base.Add(2*time.Second))
	soft := testutils.NewFakeParticipant("PA_soft", "soft", base.Add(3*time.Second))
	video := testutils.NewFakeParticipant("PA_video", "video", base.Add(4*time.Second))
	video.AddPublication(testutils.NewFakePublication("TR_cam", livekit.TrackSource_CAMERA))

	loud.SetSpeaking(true, 0.9)
	soft.SetSpeaking(true, 0.2)

	ordered := BySpeakerActivity([]types.Participant{quiet, video, soft, local, loud}, local)
	require.Equal(t, []livekit.ParticipantID{"PA_local", "PA_loud", "PA_soft", "PA_video", "PA_quiet"}, sids(ordered))

	// a participant who stopped speaking ranks ahead of those who never spoke
	soft.SetSpeaking(false, 0)
	ordered = BySpeakerActivity([]types.Participant{quiet, video, soft, local, loud}, local)
	require.Equal(t, []livekit.ParticipantID{"PA_local", "PA_loud", "PA_soft", "PA_video", "PA_quiet"}, sids(ordered))
}
