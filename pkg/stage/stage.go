package stage

import (
	"github.com/livekit/livekit-roomview/pkg/participantstate"
	"github.com/livekit/livekit-roomview/pkg/roomstate"
	"github.com/livekit/livekit-roomview/pkg/telemetry/prometheus"
	"github.com/livekit/livekit-roomview/pkg/types"
	"github.com/livekit/livekit-roomview/pkg/visibleset"
)

type Options struct {
	// MaxGridCapacity bounds the grid window when > 0.
	MaxGridCapacity int
}

type View struct {
	Layout   Layout
	Fallback string

	// grid layout
	Grid visibleset.Window

	// speaker and compact layouts
	Main            types.Participant
	MainOrientation participantstate.Orientation
	ScreenShare     *ScreenShare
	Sidebar         []types.Participant

	// audio playback is blocked until StartAudio is called
	NeedsAudioStart bool
}

// Stage holds the per-instance grid window. The window is kept across layout
// changes and dropped by Reset.
type Stage struct {
	selector visibleset.Selector
}

func New(opts Options) *Stage {
	return &Stage{
		selector: visibleset.Selector{MaxCapacity: opts.MaxGridCapacity},
	}
}

func (s *Stage) Compute(state roomstate.RoomState, viewport Viewport, pref Preference) View {
	view := View{
		Layout:          Choose(state, viewport, pref),
		NeedsAudioStart: state.Room != nil && !state.CanPlaybackAudio,
	}

	switch view.Layout {
	case LayoutFallback:
		view.Fallback, _ = Fallback(state)
		prometheus.SetVisibleTiles(0)

	case LayoutGrid:
		view.Grid = s.selector.Update(state.Participants, state.ActiveSpeakers)
		prometheus.SetVisibleTiles(view.Grid.Len())

	case LayoutSpeaker, LayoutCompact:
		view.MainOrientation = participantstate.OrientationLandscape
		if view.Layout == LayoutCompact {
			view.MainOrientation = participantstate.OrientationPortrait
		}
		view.ScreenShare = FindScreenShare(state.Participants)
		if view.ScreenShare != nil {
			view.Main = view.ScreenShare.Participant
		} else {
			view.Main = state.Participants[0]
		}
		view.Sidebar = state.Participants
		prometheus.SetVisibleTiles(len(view.Sidebar) + 1)
	}
	return view
}

func (s *Stage) Reset() {
	s.selector.Reset()
}
