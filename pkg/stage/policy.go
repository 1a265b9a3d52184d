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

package stage

import (
	"fmt"

	"github.com/livekit/protocol/livekit"

	"github.com/livekit/livekit-roomview/pkg/roomstate"
	"github.com/livekit/livekit-roomview/pkg/types"
)

type Layout string

const (
	LayoutFallback Layout = "fallback"
	LayoutGrid     Layout = "grid"
	LayoutSpeaker  Layout = "speaker"
	LayoutCompact  Layout = "compact"
)

type Viewport string

const (
	ViewportDesktop Viewport = "desktop"
	ViewportCompact Viewport = "compact"
)

// CompactBreakpoint is the narrowest width rendered with a desktop layout.
const CompactBreakpoint = 800

func ClassifyViewport(widthPx int) Viewport {
	if widthPx < CompactBreakpoint {
		return ViewportCompact
	}
	return ViewportDesktop
}

type Preference string

const (
	PreferGrid    Preference = "grid"
	PreferSpeaker Preference = "speaker"
)

func ParsePreference(s string) (Preference, error) {
	switch Preference(s) {
	case PreferGrid, "":
		return PreferGrid, nil
	case PreferSpeaker:
		return PreferSpeaker, nil
	default:
		return "", fmt.Errorf("unknown stage layout %q", s)
	}
}

const (
	FallbackConnecting = "connecting"
	FallbackRoomClosed = "room closed"
	FallbackEmptyRoom  = "no one is in the room"
)

// Fallback returns the message to show instead of a stage, if any.
// Checks run in order: error, connecting, no room, no participants.
func Fallback(state roomstate.RoomState) (string, bool) {
	switch {
	case state.Error != nil:
		return "error " + state.Error.Error(), true
	case state.IsConnecting:
		return FallbackConnecting, true
	case state.Room == nil:
		return FallbackRoomClosed, true
	case len(state.Participants) == 0:
		return FallbackEmptyRoom, true
	}
	return "", false
}

type ScreenShare struct {
	Participant types.Participant
	Publication types.TrackPublication
	Track       types.Track
}

// FindScreenShare returns the first participant, in order, with a subscribed
// screen share whose track is attached.
func FindScreenShare(participants []types.Participant) *ScreenShare {
	for _, p := range participants {
		pub := p.Publication(livekit.TrackSource_SCREEN_SHARE)
		if pub == nil || !pub.IsSubscribed() {
			continue
		}
		track := pub.Track()
		if track == nil || track.Kind() != livekit.TrackType_VIDEO {
			continue
		}
		return &ScreenShare{Participant: p, Publication: pub, Track: track}
	}
	return nil
}

// Choose picks a layout from the room state, viewport and preference alone.
func Choose(state roomstate.RoomState, viewport Viewport, pref Preference) Layout {
	if _, ok := Fallback(state); ok {
		return LayoutFallback
	}
	if viewport == ViewportCompact {
		return LayoutCompact
	}
	if pref == PreferSpeaker || FindScreenShare(state.Participants) != nil {
		return LayoutSpeaker
	}
	return LayoutGrid
}
